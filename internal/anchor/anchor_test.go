package anchor

import "testing"

func TestTrimHexPrefix_RemovesPrefix(t *testing.T) {
	if got := trimHexPrefix("0xabc123"); got != "abc123" {
		t.Errorf("expected prefix stripped, got %q", got)
	}
}

func TestTrimHexPrefix_NoPrefixUnchanged(t *testing.T) {
	if got := trimHexPrefix("abc123"); got != "abc123" {
		t.Errorf("expected unchanged string, got %q", got)
	}
}

func TestCalldata_EncodesHidHeadAndSeq(t *testing.T) {
	data := calldata("HID-deadbeef", "abc123", 42)
	want := "HID-deadbeef|abc123|42"
	if string(data) != want {
		t.Errorf("expected %q, got %q", want, data)
	}
}
