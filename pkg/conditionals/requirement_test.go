package conditionals

import "testing"

// mockStateView implements StateView for testing
type mockStateView struct {
	flags    map[string]bool
	trust    map[string]int
	executed map[string]bool
}

func (m *mockStateView) HasFlag(flag string) bool      { return m.flags[flag] }
func (m *mockStateView) TrustOf(target string) int     { return m.trust[target] }
func (m *mockStateView) HasExecuted(event string) bool { return m.executed[event] }

func intPtr(i int) *int { return &i }

func TestEvaluate(t *testing.T) {
	view := &mockStateView{
		flags:    map[string]bool{"MET_CHEN": true},
		trust:    map[string]int{"chen": 7},
		executed: map[string]bool{"evt_chen_1": true},
	}

	tests := []struct {
		name     string
		req      *Requirement
		view     StateView
		expected bool
	}{
		{name: "nil requirement", req: nil, view: view, expected: true},
		{name: "empty requirement", req: &Requirement{}, view: view, expected: true},
		{name: "flag present", req: &Requirement{Flag: "MET_CHEN"}, view: view, expected: true},
		{name: "flag missing", req: &Requirement{Flag: "MET_LIN"}, view: view, expected: false},
		{name: "notFlag absent", req: &Requirement{NotFlag: "MET_LIN"}, view: view, expected: true},
		{name: "notFlag present", req: &Requirement{NotFlag: "MET_CHEN"}, view: view, expected: false},
		{
			name:     "trust at inclusive min",
			req:      &Requirement{Trust: &TrustRange{Target: "chen", Min: intPtr(7)}},
			view:     view,
			expected: true,
		},
		{
			name:     "trust at inclusive max",
			req:      &Requirement{Trust: &TrustRange{Target: "chen", Max: intPtr(7)}},
			view:     view,
			expected: true,
		},
		{
			name:     "trust below min",
			req:      &Requirement{Trust: &TrustRange{Target: "chen", Min: intPtr(8)}},
			view:     view,
			expected: false,
		},
		{
			name:     "trust above max",
			req:      &Requirement{Trust: &TrustRange{Target: "chen", Min: intPtr(0), Max: intPtr(5)}},
			view:     view,
			expected: false,
		},
		{
			name:     "unknown trust target defaults to zero",
			req:      &Requirement{Trust: &TrustRange{Target: "lin", Max: intPtr(0)}},
			view:     view,
			expected: true,
		},
		{name: "event executed", req: &Requirement{EventExecuted: "evt_chen_1"}, view: view, expected: true},
		{name: "event not executed", req: &Requirement{EventExecuted: "evt_lin_1"}, view: view, expected: false},
		{
			name: "all clauses satisfied",
			req: &Requirement{
				Flag:          "MET_CHEN",
				NotFlag:       "MET_LIN",
				Trust:         &TrustRange{Target: "chen", Min: intPtr(5), Max: intPtr(10)},
				EventExecuted: "evt_chen_1",
			},
			view:     view,
			expected: true,
		},
		{
			name: "one clause fails",
			req: &Requirement{
				Flag:          "MET_CHEN",
				EventExecuted: "evt_lin_1",
			},
			view:     view,
			expected: false,
		},
		{name: "nil view treated as empty state", req: &Requirement{NotFlag: "X"}, view: nil, expected: true},
		{name: "nil view fails flag", req: &Requirement{Flag: "X"}, view: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.req, tt.view); got != tt.expected {
				t.Errorf("Evaluate() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestEvaluate_Monotonic(t *testing.T) {
	// Adding a clause can only narrow the set of passing states
	base := &Requirement{Flag: "A"}
	narrowed := &Requirement{Flag: "A", NotFlag: "B"}

	states := []*mockStateView{
		{flags: map[string]bool{}},
		{flags: map[string]bool{"A": true}},
		{flags: map[string]bool{"A": true, "B": true}},
		{flags: map[string]bool{"B": true}},
	}
	for i, s := range states {
		if Evaluate(narrowed, s) && !Evaluate(base, s) {
			t.Errorf("state %d passes narrowed requirement but not base", i)
		}
	}
}

func TestVisible(t *testing.T) {
	view := &mockStateView{flags: map[string]bool{"A": true}}
	reqs := []*Requirement{nil, {Flag: "B"}, {Flag: "A"}, {NotFlag: "A"}}

	got := Visible(reqs, view)
	expected := []int{0, 2}
	if len(got) != len(expected) {
		t.Fatalf("Visible() = %v, expected %v", got, expected)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Visible()[%d] = %d, expected %d", i, got[i], expected[i])
		}
	}
}
