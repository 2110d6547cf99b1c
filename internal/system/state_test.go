package system

import "testing"

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to SystemState
		ok       bool
	}{
		{StateInitializing, StateRunning, true},
		{StateInitializing, StateError, true},
		{StateRunning, StateStopping, true},
		{StateStopping, StateStopped, true},
		{StateError, StateStopping, true},
		{StateRunning, StateInitializing, false},
		{StateStopped, StateRunning, false},
		{StateStopping, StateRunning, false},
		{SystemState(42), StateRunning, false},
	}

	for _, tc := range tests {
		err := ValidateTransition(tc.from, tc.to)
		if (err == nil) != tc.ok {
			t.Errorf("%s -> %s: err = %v, want ok=%v", tc.from, tc.to, err, tc.ok)
		}
	}
}

func TestSystemStateString(t *testing.T) {
	if got := StateStopping.String(); got != "STOPPING" {
		t.Fatalf("String() = %q", got)
	}
	if got := SystemState(42).String(); got != "UNKNOWN" {
		t.Fatalf("String() = %q", got)
	}
}
