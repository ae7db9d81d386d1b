// Package codec implements BalanceChain's canonical serialization, hashing,
// signing, key exchange, and symmetric encryption primitives (spec.md
// §4.1). Canonical encoding is the only encoding ever fed to hashing or
// signing — two implementations that agree on canonical() agree on every
// hash and signature in the chain.
package codec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Undefined is a sentinel distinct from Go's nil/"null", matching the
// language the ledger was distilled from, which distinguishes JS
// `undefined` from `null`. Canonical() encodes it as the bareword
// `undefined`, never as a quoted string or JSON null.
type Undefined struct{}

// Canonical renders v as a JSON-compatible string with object keys sorted
// lexicographically at every depth and arrays left in input order. It is
// the single encoding fed to Hash and Sign/Verify (spec.md §4.1).
//
// Supported shapes: nil, Undefined, bool, string, int/int64/float64,
// []any (order preserved), map[string]any (keys sorted).
func Canonical(v any) (string, error) {
	var b strings.Builder
	if err := writeCanonical(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeCanonical(b *strings.Builder, v any) error {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case Undefined:
		b.WriteString("undefined")
	case *Undefined:
		b.WriteString("undefined")
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		b.WriteString(quoteString(val))
	case int:
		b.WriteString(strconv.Itoa(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case uint64:
		b.WriteString(strconv.FormatUint(val, 10))
	case float64:
		b.WriteString(formatNumber(val))
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonical(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quoteString(k))
			b.WriteByte(':')
			if err := writeCanonical(b, val[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		return fmt.Errorf("codec: cannot canonicalize value of type %T", v)
	}
	return nil
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
