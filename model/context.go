package model

// ContextWindow is the token-bounded, rank-ordered evidence handed to generation.
type ContextWindow struct {
	Items       []*FusedResult `json:"items"`
	TotalTokens int            `json:"total_tokens"` // never exceeds Budget
	Budget      int            `json:"budget"`
}

// Empty reports whether the window holds no evidence.
func (w *ContextWindow) Empty() bool {
	return w == nil || len(w.Items) == 0
}
