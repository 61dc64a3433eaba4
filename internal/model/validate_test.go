package model

import (
	"strings"
	"testing"
)

func TestValidatePositive(t *testing.T) {
	for _, tc := range []struct {
		n       int
		wantErr bool
	}{
		{1, false},
		{500, false},
		{0, true},
		{-3, true},
	} {
		err := ValidatePositive("count", tc.n)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidatePositive(%d) error = %v, wantErr %v", tc.n, err, tc.wantErr)
		}
		if err != nil && !IsValidation(err) {
			t.Errorf("ValidatePositive(%d) error type = %T, want *ValidationError", tc.n, err)
		}
	}
}

func TestValidateGrowth(t *testing.T) {
	for _, tc := range []struct {
		name    string
		target  int
		current int
		wantErr string
	}{
		{"exact minimum", 150, 100, ""},
		{"below minimum", 149, 100, "must add at least 50"},
		{"shrinking", 10, 100, "must add at least 50"},
		{"empty graph", 50, 0, ""},
		{"zero target", 0, 0, "must be positive"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateGrowth(tc.target, tc.current, 50)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateGrowth() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("ValidateGrowth() error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	var ve ValidationError
	if ve.OrNil() != nil {
		t.Fatal("empty ValidationError should be nil")
	}
	ve.Add("seeds", "must be positive, got %d", 0)
	ve.Add("principals", "is required")
	want := "validation failed: seeds: must be positive, got 0; principals: is required"
	if got := ve.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
