// Package containment asks the service which nodes a set of seed nodes would
// infect and which seeds are the principal spreaders, then records the answer
// as tags on the graph store.
package containment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/dyngraph/internal/client"
	"github.com/alfredjeanlab/dyngraph/internal/graphstore"
	"github.com/alfredjeanlab/dyngraph/internal/model"
)

// DefaultPrincipals is the number of principal nodes callers usually ask
// for. Zero is a valid request and is sent as is.
const DefaultPrincipals = 1

// Analyzer is the slice of the service client the scanner needs.
type Analyzer interface {
	Scan(ctx context.Context, req *client.ScanRequest) (*model.GraphPayload, error)
}

// Request parameterizes a scan.
type Request struct {
	Seeds      int
	Principals int
}

// Result lists the tagged nodes, both ascending.
type Result struct {
	Infected   []model.NodeID
	Principals []model.NodeID
}

// Scanner runs containment scans against one store.
type Scanner struct {
	store    *graphstore.Store
	analyzer Analyzer
	logger   *slog.Logger
}

// New returns a scanner. A nil logger means slog.Default().
func New(store *graphstore.Store, analyzer Analyzer, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{store: store, analyzer: analyzer, logger: logger}
}

// Scan requests a containment analysis. On success the infected and
// principal tags of the store are overwritten with the answer, so repeating a
// scan is idempotent. model.ErrNotFound means the service holds no graph;
// on that and every other error the tags are left untouched.
func (s *Scanner) Scan(ctx context.Context, req Request) (*Result, error) {
	var ve model.ValidationError
	if req.Seeds <= 0 {
		ve.Add("seeds", "must be positive, got %d", req.Seeds)
	}
	if req.Principals < 0 {
		ve.Add("principals", "must not be negative, got %d", req.Principals)
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	p, err := s.analyzer.Scan(ctx, &client.ScanRequest{P: req.Seeds, X: req.Principals})
	if errors.Is(err, model.ErrNotFound) {
		s.logger.Info("containment scan found no graph", "seeds", req.Seeds)
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("containment scan: %w", err)
	}

	s.store.SetTags(model.TagInfected, p.PoisonNodes)
	s.store.SetTags(model.TagPrincipal, p.Principals)
	res := &Result{
		Infected:   s.store.Tagged(model.TagInfected),
		Principals: s.store.Tagged(model.TagPrincipal),
	}
	s.logger.Info("containment scan applied",
		"seeds", req.Seeds,
		"infected", len(res.Infected),
		"principals", res.Principals,
	)
	return res, nil
}
