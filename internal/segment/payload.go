package segment

// Type-specific payload builders give the validator well-known fields to
// rely on (spec.md §4.3). Each returns a map[string]any ready for Build.

// ChatUserPayload builds a chat.user payload.
func ChatUserPayload(chatID, text, role string) map[string]any {
	return map[string]any{
		"chatId": chatID,
		"text":   text,
		"role":   role,
	}
}

// AIAdvicePayload builds an ai.advice payload.
func AIAdvicePayload(chatID, text string) map[string]any {
	return map[string]any{
		"chatId": chatID,
		"text":   text,
		"role":   "ai",
	}
}

// BizDecisionPayload builds a biz.decision payload. decision is typically
// "ACCEPT" or "REJECT" (spec.md §4.5 score projection rules).
func BizDecisionPayload(chatID, decision string, decisionSeq int64) map[string]any {
	return map[string]any{
		"chatId":      chatID,
		"decision":    decision,
		"decisionSeq": decisionSeq,
	}
}

// BizOutcomePayload builds a biz.outcome payload. outcome is typically
// "SUCCESS" or "FAILURE".
func BizOutcomePayload(chatID, outcome string, decisionSeq int64) map[string]any {
	return map[string]any{
		"chatId":      chatID,
		"outcome":     outcome,
		"decisionSeq": decisionSeq,
	}
}

// CapsuleMintPayload builds a capsule.mint payload (spec.md §4.7).
func CapsuleMintPayload(capsuleID, sessionID string, richScore, businessScore float64, capsuleHash string) map[string]any {
	return map[string]any{
		"capsuleId":     capsuleID,
		"sessionId":     sessionID,
		"richScore":     richScore,
		"businessScore": businessScore,
		"capsuleHash":   capsuleHash,
	}
}

// ScoresOverride builds the optional `scores` payload field that overrides
// the score projection's default deltas (spec.md §4.5).
func ScoresOverride(richScore, businessScore float64) map[string]any {
	return map[string]any{
		"richScore":     richScore,
		"businessScore": businessScore,
	}
}
