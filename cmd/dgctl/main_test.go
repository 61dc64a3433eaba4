package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/alfredjeanlab/dyngraph/internal/model"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", model.NewValidationError("seeds", "must be positive, got %d", 0), exitUsage},
		{"not found", fmt.Errorf("containment scan: %w", model.ErrNotFound), exitNotFound},
		{"transport", fmt.Errorf("delete nodes: %w", &model.TransportError{Op: "delete", Err: errors.New("refused")}), exitTransport},
		{"protocol", &model.ProtocolError{Reason: "sequence moved backward"}, exitProtocol},
		{"service", &model.ServiceError{Result: 500, Message: "boom"}, exitFailure},
		{"other", errors.New("unknown command"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
