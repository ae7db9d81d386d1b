package segment

import (
	"fmt"
	"strings"
)

// ValidateStructure runs the pre-filter checks of spec.md §4.3, before the
// nine validator rules ever see the segment.
func ValidateStructure(s *Segment) error {
	if s.Version < 1 {
		return fmt.Errorf("segment: protocol version must be >= 1, got %d", s.Version)
	}
	if s.Seq < 1 {
		return fmt.Errorf("segment: seq must be >= 1, got %d", s.Seq)
	}
	if s.Timestamp < 0 {
		return fmt.Errorf("segment: timestamp must be >= 0, got %d", s.Timestamp)
	}
	if len(s.Nonce) != 32 || !isHex(s.Nonce) {
		return fmt.Errorf("segment: nonce must be 32 hex chars, got %q", s.Nonce)
	}
	if !ValidTypes[s.Type] {
		return fmt.Errorf("segment: unknown type %q", s.Type)
	}
	if s.Payload == nil {
		return fmt.Errorf("segment: payload object is required")
	}
	if s.PrevHash == "" {
		return fmt.Errorf("segment: prevHash is required")
	}
	if !strings.HasPrefix(s.CurrentOwner, "HID-") {
		return fmt.Errorf("segment: currentOwner must start with HID-, got %q", s.CurrentOwner)
	}
	if s.Author.HID == "" || s.Author.PublicKey == "" {
		return fmt.Errorf("segment: author must carry hid and pubkey")
	}
	if s.Signature == "" {
		return fmt.Errorf("segment: signature is required")
	}
	return nil
}

func isHex(s string) bool {
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}
