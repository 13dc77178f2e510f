package engine

import "testing"

func TestDecide(t *testing.T) {
	tests := []struct {
		force, exists, nonEmpty bool
		want                    Action
	}{
		{true, false, false, ActionReload},
		{true, true, true, ActionReload},
		{false, true, true, ActionAttach},
		{false, true, false, ActionCreate},
		{false, false, false, ActionCreate},
	}
	for _, tt := range tests {
		if got := Decide(tt.force, tt.exists, tt.nonEmpty); got != tt.want {
			t.Errorf("Decide(%v, %v, %v) = %s, want %s", tt.force, tt.exists, tt.nonEmpty, got, tt.want)
		}
	}
}
