package containment

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/alfredjeanlab/dyngraph/internal/client"
	"github.com/alfredjeanlab/dyngraph/internal/graphstore"
	"github.com/alfredjeanlab/dyngraph/internal/model"
)

type fakeAnalyzer struct {
	payload *model.GraphPayload
	err     error
	calls   []client.ScanRequest
}

func (f *fakeAnalyzer) Scan(_ context.Context, req *client.ScanRequest) (*model.GraphPayload, error) {
	f.calls = append(f.calls, *req)
	return f.payload, f.err
}

// seeded returns a store holding nodes 0..n-1 and no edges.
func seeded(t *testing.T, n int) *graphstore.Store {
	t.Helper()
	s := graphstore.New(nil, nil)
	gen := s.Reset()
	for i := range n {
		if err := s.ApplyNode(gen, model.NewNode(model.NodeID(i), 0)); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestScanner_TagsAndSortsResult(t *testing.T) {
	store := seeded(t, 8)
	a := &fakeAnalyzer{payload: &model.GraphPayload{
		Result:      model.ResultOK,
		PoisonNodes: []model.NodeID{5, 1, 3, 0},
		Principals:  []model.NodeID{3, 0},
	}}
	sc := New(store, a, nil)

	res, err := sc.Scan(context.Background(), Request{Seeds: 2, Principals: 2})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !slices.Equal(res.Infected, []model.NodeID{0, 1, 3, 5}) {
		t.Errorf("Infected = %v", res.Infected)
	}
	if !slices.Equal(res.Principals, []model.NodeID{0, 3}) {
		t.Errorf("Principals = %v, want ascending [0 3]", res.Principals)
	}
	if a.calls[0] != (client.ScanRequest{P: 2, X: 2}) {
		t.Errorf("request = %+v", a.calls[0])
	}
	n, _ := store.Node(3)
	if !n.HasTag(model.TagInfected) || !n.HasTag(model.TagPrincipal) {
		t.Errorf("node 3 tags = %v", n.Tags)
	}
}

func TestScanner_ZeroPrincipalsIsSentAsIs(t *testing.T) {
	store := seeded(t, 4)
	a := &fakeAnalyzer{payload: &model.GraphPayload{PoisonNodes: []model.NodeID{0, 1}}}

	res, err := New(store, a, nil).Scan(context.Background(), Request{Seeds: 2, Principals: 0})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if a.calls[0] != (client.ScanRequest{P: 2, X: 0}) {
		t.Errorf("request = %+v, want X 0", a.calls[0])
	}
	if len(res.Principals) != 0 || len(store.Tagged(model.TagPrincipal)) != 0 {
		t.Errorf("principals = %v, want none", res.Principals)
	}
}

func TestScanner_RepeatScanOverwrites(t *testing.T) {
	store := seeded(t, 6)
	a := &fakeAnalyzer{payload: &model.GraphPayload{PoisonNodes: []model.NodeID{0, 1, 2}, Principals: []model.NodeID{0}}}
	sc := New(store, a, nil)

	first, err := sc.Scan(context.Background(), Request{Seeds: 1})
	if err != nil {
		t.Fatal(err)
	}
	second, err := sc.Scan(context.Background(), Request{Seeds: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(first.Infected, second.Infected) || !slices.Equal(first.Principals, second.Principals) {
		t.Errorf("repeat scan differs: %+v vs %+v", first, second)
	}

	a.payload = &model.GraphPayload{PoisonNodes: []model.NodeID{4}, Principals: []model.NodeID{4}}
	if _, err := sc.Scan(context.Background(), Request{Seeds: 1}); err != nil {
		t.Fatal(err)
	}
	if got := store.Tagged(model.TagInfected); !slices.Equal(got, []model.NodeID{4}) {
		t.Errorf("tags not overwritten: %v", got)
	}
}

func TestScanner_DefaultPrincipals(t *testing.T) {
	a := &fakeAnalyzer{payload: &model.GraphPayload{}}
	if _, err := New(seeded(t, 1), a, nil).Scan(context.Background(), Request{Seeds: 3}); err != nil {
		t.Fatal(err)
	}
	if a.calls[0].X != DefaultPrincipals {
		t.Errorf("X = %d, want %d", a.calls[0].X, DefaultPrincipals)
	}
}

func TestScanner_ErrorsLeaveTagsUntouched(t *testing.T) {
	for _, tc := range []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", model.ErrNotFound, func(err error) bool { return errors.Is(err, model.ErrNotFound) }},
		{"transport", &model.TransportError{Op: "scan", Err: errors.New("reset")}, model.IsTransport},
		{"service", &model.ServiceError{Result: 500}, func(err error) bool {
			var se *model.ServiceError
			return errors.As(err, &se)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store := seeded(t, 4)
			store.SetTags(model.TagInfected, []model.NodeID{1, 2})
			store.SetTags(model.TagPrincipal, []model.NodeID{1})

			res, err := New(store, &fakeAnalyzer{err: tc.err}, nil).Scan(context.Background(), Request{Seeds: 1})
			if res != nil || !tc.check(err) {
				t.Fatalf("Scan() = %v, %v", res, err)
			}
			if got := store.Tagged(model.TagInfected); !slices.Equal(got, []model.NodeID{1, 2}) {
				t.Errorf("infected tags changed to %v", got)
			}
			if got := store.Tagged(model.TagPrincipal); !slices.Equal(got, []model.NodeID{1}) {
				t.Errorf("principal tags changed to %v", got)
			}
		})
	}
}

func TestScanner_ValidationBeforeRequest(t *testing.T) {
	for _, req := range []Request{{Seeds: 0}, {Seeds: -2}, {Seeds: 3, Principals: -1}} {
		a := &fakeAnalyzer{}
		_, err := New(seeded(t, 1), a, nil).Scan(context.Background(), req)
		if !model.IsValidation(err) {
			t.Errorf("Scan(%+v) error = %v, want validation error", req, err)
		}
		if len(a.calls) != 0 {
			t.Errorf("Scan(%+v) reached the service", req)
		}
	}
}
