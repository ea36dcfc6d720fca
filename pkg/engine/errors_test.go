package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestBridgeError_Classification(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      *BridgeError
		sentinel error
		check    func(error) bool
	}{
		{"parse", NewParseError("bad toml", cause), ErrParse, IsParse},
		{"type mismatch", NewTypeMismatchError("root is not a table", nil), ErrTypeMismatch, IsTypeMismatch},
		{"missing driver", NewMissingDriverError("no driver"), ErrMissingDriver, IsMissingDriver},
		{"driver failure", NewDriverFailureError("driver panicked", cause), ErrDriverFailure, IsDriverFailure},
		{"optimizer failure", NewOptimizerFailureError("optimizer raised", cause), ErrOptimizerFailure, IsOptimizerFailure},
		{"marshaling", NewMarshalingError("frozen dict", cause), ErrMarshaling, IsMarshaling},
		{"contract", NewContractError("bad length", nil), ErrContract, IsContract},
		{"validation", NewValidationError("maxiter", nil), ErrValidation, IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false", tt.err)
			}
			if !tt.check(tt.err) {
				t.Errorf("class helper returned false for %v", tt.err)
			}

			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !tt.check(wrapped) {
				t.Errorf("class helper returned false for wrapped error")
			}
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is through wrapper = false")
			}

			for _, other := range tests {
				if other.name != tt.name && errors.Is(tt.err, other.sentinel) {
					t.Errorf("%s error matched %s sentinel", tt.name, other.name)
				}
			}
		})
	}
}

func TestBridgeError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewDriverFailureError("driver panicked", cause)

	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
}

func TestBridgeError_IsMatchesCode(t *testing.T) {
	err := NewDriverFailureError("driver panicked", nil).WithCode(ErrCodeDriverPanic)

	if !errors.Is(err, &BridgeError{Class: ErrorClassDriverFailure, Code: ErrCodeDriverPanic}) {
		t.Error("expected match on class and code")
	}
	if errors.Is(err, &BridgeError{Class: ErrorClassDriverFailure, Code: ErrCodeDriverFailed}) {
		t.Error("expected no match on different code")
	}
}

func TestBridgeError_Message(t *testing.T) {
	err := NewParseError("failed to parse TOML", errors.New("line 3")).
		WithOperation("config.parse").
		WithDetail("line", 3)

	msg := err.Error()
	for _, want := range []string{"[parse]", "failed to parse TOML", "operation=config.parse", "line 3"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
	if err.Details["line"] != 3 {
		t.Errorf("Details[line] = %v, want 3", err.Details["line"])
	}
}

func TestClassOf_NonBridgeError(t *testing.T) {
	if got := ClassOf(errors.New("plain")); got != "" {
		t.Errorf("ClassOf(plain) = %q, want empty", got)
	}
	if IsMissingDriver(nil) {
		t.Error("IsMissingDriver(nil) = true")
	}
}

func TestAtomCount(t *testing.T) {
	tests := []struct {
		name    string
		coords  []float64
		want    int
		wantErr bool
	}{
		{"one atom", make([]float64, 3), 1, false},
		{"three atoms", make([]float64, 9), 3, false},
		{"empty", nil, 0, true},
		{"not multiple of three", make([]float64, 7), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AtomCount(tt.coords)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AtomCount() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !IsContract(err) {
				t.Errorf("expected contract error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("AtomCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGradOutput_Validate(t *testing.T) {
	coords := make([]float64, 6)

	if err := (GradOutput{Gradient: make([]float64, 6)}).Validate(coords); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
	err := (GradOutput{Gradient: make([]float64, 3)}).Validate(coords)
	if !IsDriverFailure(err) {
		t.Errorf("Validate() error = %v, want driver failure", err)
	}
}

func TestDriverFunc(t *testing.T) {
	var d Driver = DriverFunc(func(coords []float64, dirname string) GradOutput {
		return GradOutput{Energy: float64(len(coords)), Gradient: make([]float64, len(coords))}
	})

	out := d.CalcNew(make([]float64, 9), "")
	if out.Energy != 9 || len(out.Gradient) != 9 {
		t.Errorf("CalcNew() = %+v", out)
	}
}
