package state

// TrustDelta adds Value to the trust of Target
type TrustDelta struct {
	Target string `json:"target" yaml:"target"`
	Value  int    `json:"value" yaml:"value"`
}

// Effect is the state mutation carried by rewards, choice options and
// mini-game successes.
type Effect struct {
	Trust       *TrustDelta `json:"trust,omitempty" yaml:"trust,omitempty"`
	AddTrust    *TrustDelta `json:"addTrust,omitempty" yaml:"addTrust,omitempty"`
	AddFlag     string      `json:"addFlag,omitempty" yaml:"addFlag,omitempty"`
	GlobalBadge string      `json:"globalBadge,omitempty" yaml:"globalBadge,omitempty"` // Persisted outside the playthrough
}

// IsEmpty reports whether applying the effect would change nothing
func (e *Effect) IsEmpty() bool {
	return e == nil || (e.Trust == nil && e.AddTrust == nil && e.AddFlag == "" && e.GlobalBadge == "")
}
