// Package protocol holds the consensus-critical constants shared by the
// segment, validator, chain, caps, and capsule packages. These values are
// part of the wire contract (spec.md §6) — changing any of them changes
// what a valid chain looks like.
package protocol

import "time"

const (
	// Version is the segment protocol version (spec.md §6).
	Version = 2

	// InitialUnlocked is the unlocked TVM balance every identity starts
	// with before any mint (spec.md §4.6, §6).
	InitialUnlocked = 1200

	// Caps: rolling counter ceilings (spec.md §4.6, §6).
	DailyCap   = 3600
	MonthlyCap = 36000
	YearlyCap  = 120000

	// MinBlockInterval is the minimum spacing between two segments by the
	// same author (spec.md §4.4 rule 3, §6).
	MinBlockInterval = 1000 * time.Millisecond

	// TimestampTolerance bounds liveness-proof freshness: the allowed drift,
	// either way, between a proof's timestamp and its segment's timestamp
	// (spec.md §4.4 rule 4, §6).
	TimestampTolerance = 720000 * time.Millisecond

	// MinRichScore and MinBusinessScore gate capsule eligibility
	// (spec.md §4.7, §6).
	MinRichScore     = 70
	MinBusinessScore = 70

	// MinECFScore gates capsule eligibility (spec.md §4.7, §6).
	MinECFScore = 0.1

	// CapsuleSimilarityThreshold marks a minted capsule as a match for a
	// candidate (spec.md §4.7, §6).
	CapsuleSimilarityThreshold = 0.9

	// SessionMessageLimit is the minimum message count a session needs to
	// be capsule-eligible (spec.md §4.7, §6).
	SessionMessageLimit = 12

	// TVMPerCapsule is the TVM credited per minted capsule (spec.md §4.7, §6).
	TVMPerCapsule = 1.0

	// NonceLength is the byte length of a segment nonce before hex
	// encoding (spec.md §3, §6).
	NonceLength = 16

	// NoncePurgeAge bounds how long a nonce log entry must be retained
	// before it becomes eligible for purge (spec.md §3, §6).
	NoncePurgeAge = 30 * 24 * time.Hour

	// Genesis is the declared prev_hash / chain_head of an empty chain
	// (spec.md §3).
	Genesis = "GENESIS"

	// AIWorkerTimeout and AIWorkerMaxRetries bound the collaborator AI
	// worker call (spec.md §6).
	AIWorkerTimeout    = 30 * time.Second
	AIWorkerMaxRetries = 3
)

// RichScoreBand names the theme band a rich score falls into
// (spec.md §6, GLOSSARY).
type RichScoreBand string

const (
	BandCoal   RichScoreBand = "coal"
	BandEmber  RichScoreBand = "ember"
	BandBronze RichScoreBand = "bronze"
	BandGold   RichScoreBand = "gold"
)

// Band returns the theme band for a rich score in [0, 100].
// Bands: coal [0,25), ember [25,50), bronze [50,80), gold [80,100].
func Band(richScore float64) RichScoreBand {
	switch {
	case richScore >= 80:
		return BandGold
	case richScore >= 50:
		return BandBronze
	case richScore >= 25:
		return BandEmber
	default:
		return BandCoal
	}
}
