package status

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOfWrappedErrors(t *testing.T) {
	tests := []struct {
		err  error
		want Code
	}{
		{nil, CodeNone},
		{ErrInvalidHandle, CodeInvalidHandle},
		{fmt.Errorf("%w: handle 12", ErrInvalidHandle), CodeInvalidHandle},
		{fmt.Errorf("slot 3: %w", ErrRange), CodeRange},
		{fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrTypeMismatch)), CodeTypeMismatch},
		{ErrInvalidPointer, CodeInvalidPointer},
		{ErrMemory, CodeMemory},
		{ErrReadOnly, CodeReadOnly},
		{errors.New("something else"), CodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Fatalf("CodeOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCodeErrRoundTrip(t *testing.T) {
	for c := CodeGeneric; c <= CodeReadOnly; c++ {
		if got := CodeOf(c.Err()); got != c {
			t.Fatalf("CodeOf(%v.Err()) = %v", c, got)
		}
	}
	if CodeNone.Err() != nil {
		t.Fatal("CodeNone should map to a nil error")
	}
}
