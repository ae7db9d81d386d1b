package integrity

import (
	"testing"

	"github.com/balancechain/core/internal/segment"
)

func TestBackupEligibility_FreshInstall(t *testing.T) {
	canRestore, requiresSync, reason := BackupEligibility(0, "GENESIS", 5, "h")
	if !canRestore || requiresSync || reason != "fresh install" {
		t.Errorf("unexpected result: %v %v %q", canRestore, requiresSync, reason)
	}
}

func TestBackupEligibility_BackupOlder(t *testing.T) {
	canRestore, requiresSync, reason := BackupEligibility(10, "h", 5, "h")
	if canRestore || !requiresSync || reason != "backup older" {
		t.Errorf("unexpected result: %v %v %q", canRestore, requiresSync, reason)
	}
}

func TestBackupEligibility_DivergedFork(t *testing.T) {
	canRestore, requiresSync, reason := BackupEligibility(5, "h1", 8, "h2")
	if canRestore || !requiresSync || reason != "diverged, fork" {
		t.Errorf("unexpected result: %v %v %q", canRestore, requiresSync, reason)
	}
}

func TestBackupEligibility_HeadsMismatchSameLength(t *testing.T) {
	canRestore, requiresSync, reason := BackupEligibility(5, "h1", 5, "h2")
	if canRestore || !requiresSync || reason != "heads mismatch" {
		t.Errorf("unexpected result: %v %v %q", canRestore, requiresSync, reason)
	}
}

func TestBackupEligibility_Match(t *testing.T) {
	canRestore, requiresSync, reason := BackupEligibility(5, "h", 5, "h")
	if !canRestore || requiresSync || reason != "match" {
		t.Errorf("unexpected result: %v %v %q", canRestore, requiresSync, reason)
	}
}

func buildForClone(t *testing.T, seq int64, nonce, signature string) *segment.Segment {
	t.Helper()
	s, err := segment.Build(segment.Author{HID: "HID-TEST", PublicKey: "aa"}, "GENESIS", seq, segment.TypeChatUser, segment.ChatUserPayload("c", "a", "user"), nil, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	s.Nonce = nonce
	s.Signature = signature
	return s
}

func TestDetectClone_SameNonceSameSignatureIsNotClone(t *testing.T) {
	local := buildForClone(t, 3, "aaaa", "sig1")
	incoming := buildForClone(t, 3, "aaaa", "sig1")
	d := DetectClone(local, incoming)
	if d.IsClone {
		t.Error("expected identical segments at the same seq not to be flagged as a clone")
	}
}

func TestDetectClone_DifferentNonceIsClone(t *testing.T) {
	local := buildForClone(t, 3, "aaaa", "sig1")
	incoming := buildForClone(t, 3, "bbbb", "sig1")
	d := DetectClone(local, incoming)
	if !d.IsClone || d.Seq != 3 {
		t.Errorf("expected clone detection at seq 3, got %+v", d)
	}
}

func TestDetectClone_DifferentSeqIsNotCompared(t *testing.T) {
	local := buildForClone(t, 3, "aaaa", "sig1")
	incoming := buildForClone(t, 4, "bbbb", "sig2")
	d := DetectClone(local, incoming)
	if d.IsClone {
		t.Error("expected no clone comparison across different seqs")
	}
}

func TestScanResult_ClassifyCritical(t *testing.T) {
	r := &ScanResult{}
	r.addError(3, CodeHashChainBroken, "broken")
	if r.classify() != SeverityCritical {
		t.Errorf("expected critical severity, got %v", r.classify())
	}
}

func TestScanResult_ClassifyMajor(t *testing.T) {
	r := &ScanResult{}
	r.addError(3, CodeInvalidSig, "bad sig")
	if r.classify() != SeverityMajor {
		t.Errorf("expected major severity, got %v", r.classify())
	}
}

func TestScanResult_ClassifyNoneWhenClean(t *testing.T) {
	r := &ScanResult{}
	if r.classify() != SeverityNone {
		t.Errorf("expected none severity for a clean scan, got %v", r.classify())
	}
}
