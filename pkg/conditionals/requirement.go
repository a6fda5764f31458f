package conditionals

// Requirement gates a choice option, phone message or menu entry.
// Every clause that is set must hold; unset clauses are ignored.
type Requirement struct {
	Flag          string      `json:"flag,omitempty" yaml:"flag,omitempty"`                   // Flag must be set
	NotFlag       string      `json:"notFlag,omitempty" yaml:"notFlag,omitempty"`             // Flag must be absent
	Trust         *TrustRange `json:"trust,omitempty" yaml:"trust,omitempty"`                 // Trust must fall inside the range
	EventExecuted string      `json:"eventExecuted,omitempty" yaml:"eventExecuted,omitempty"` // Event must be in history
}

// TrustRange is an inclusive bound on one character's trust value.
// A nil bound is open.
type TrustRange struct {
	Target string `json:"target" yaml:"target"`
	Min    *int   `json:"min,omitempty" yaml:"min,omitempty"`
	Max    *int   `json:"max,omitempty" yaml:"max,omitempty"`
}

// StateView provides the minimal interface needed to evaluate requirements.
// This avoids import cycles with the state package.
type StateView interface {
	HasFlag(flag string) bool
	TrustOf(target string) int
	HasExecuted(eventID string) bool
}

// IsEmpty reports whether the requirement has no clauses.
func (r *Requirement) IsEmpty() bool {
	return r == nil || (r.Flag == "" && r.NotFlag == "" && r.Trust == nil && r.EventExecuted == "")
}

// Evaluate checks every clause of req against view.
// A nil or empty requirement always passes. A nil view is treated as a
// fresh state: no flags, zero trust, empty history.
func Evaluate(req *Requirement, view StateView) bool {
	if req.IsEmpty() {
		return true
	}
	if view == nil {
		view = emptyView{}
	}

	if req.Flag != "" && !view.HasFlag(req.Flag) {
		return false
	}
	if req.NotFlag != "" && view.HasFlag(req.NotFlag) {
		return false
	}
	if req.Trust != nil {
		value := view.TrustOf(req.Trust.Target)
		if req.Trust.Min != nil && value < *req.Trust.Min {
			return false
		}
		if req.Trust.Max != nil && value > *req.Trust.Max {
			return false
		}
	}
	if req.EventExecuted != "" && !view.HasExecuted(req.EventExecuted) {
		return false
	}
	return true
}

// Visible returns the indexes of the requirements that pass, in order.
func Visible(reqs []*Requirement, view StateView) []int {
	out := make([]int, 0, len(reqs))
	for i, req := range reqs {
		if Evaluate(req, view) {
			out = append(out, i)
		}
	}
	return out
}

type emptyView struct{}

func (emptyView) HasFlag(string) bool     { return false }
func (emptyView) TrustOf(string) int      { return 0 }
func (emptyView) HasExecuted(string) bool { return false }
