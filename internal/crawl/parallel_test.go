package crawl

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/signalscan/internal/auth"
	"github.com/nao1215/signalscan/internal/browser/browsertest"
	"github.com/nao1215/signalscan/internal/delay"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		urls []string
		n    int
		want [][]string
	}{
		{name: "even", urls: []string{"a", "b", "c", "d"}, n: 2, want: [][]string{{"a", "b"}, {"c", "d"}}},
		{name: "remainder goes first", urls: []string{"a", "b", "c", "d", "e"}, n: 3, want: [][]string{{"a", "b"}, {"c", "d"}, {"e"}}},
		{name: "more workers than urls", urls: []string{"a", "b"}, n: 5, want: [][]string{{"a"}, {"b"}}},
		{name: "single worker", urls: []string{"a", "b"}, n: 1, want: [][]string{{"a", "b"}}},
		{name: "no urls", urls: nil, n: 3, want: nil},
		{name: "no workers", urls: []string{"a"}, n: 0, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tt.want, Split(tt.urls, tt.n)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// fleet builds one fake browser per worker and remembers them.
type fleet struct {
	mu       sync.Mutex
	fakes    map[int]*browsertest.Fake
	released map[int]bool
	setup    func(worker int, f *browsertest.Fake)
}

func newFleet() *fleet {
	return &fleet{fakes: make(map[int]*browsertest.Fake), released: make(map[int]bool)}
}

func (fl *fleet) factory(ctx context.Context, worker int) (*Controller, func(), error) {
	fake := browsertest.New(defaultPages())
	if fl.setup != nil {
		fl.setup(worker, fake)
	}
	fl.mu.Lock()
	fl.fakes[worker] = fake
	fl.mu.Unlock()

	release := func() {
		fl.mu.Lock()
		fl.released[worker] = true
		fl.mu.Unlock()
		_ = fake.Close()
	}
	return newController(fake, delay.NewVirtualClock(start)), release, nil
}

func TestRunParallelMergesInWorkerOrder(t *testing.T) {
	t.Parallel()

	fl := newFleet()
	urls := []string{fintechURL, aboutURL, saasURL}

	run, err := RunParallel(context.Background(), urls, 2, fl.factory,
		WithParallelClock(delay.NewVirtualClock(start).Now),
		WithParallelLogger(discardLogger()),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"Jane Doe|Acme Ventures|Partner",
		"John Roe|Beta Capital|Principal",
		"Mia Chen|Gamma Fund|GP",
	}
	if diff := cmp.Diff(want, keys(run.Results())); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(urls, urlsOf(run.Captures())); diff != "" {
		t.Errorf("captures mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(urls, run.TargetURLs); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{fintechURL, aboutURL}, fl.fakes[1].Navigations()); diff != "" {
		t.Errorf("worker 1 navigations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{saasURL}, fl.fakes[2].Navigations()); diff != "" {
		t.Errorf("worker 2 navigations mismatch (-want +got):\n%s", diff)
	}
	for w := 1; w <= 2; w++ {
		if !fl.released[w] {
			t.Errorf("expected worker %d to be released", w)
		}
	}
}

func TestRunParallelAuthFailureKeepsPartialRun(t *testing.T) {
	t.Parallel()

	fl := newFleet()
	fl.setup = func(worker int, f *browsertest.Fake) {
		if worker == 2 {
			f.Redirect(saasURL, auth.DefaultLoginURL)
		}
	}

	run, err := RunParallel(context.Background(), []string{fintechURL, saasURL}, 2, fl.factory,
		WithParallelLogger(discardLogger()),
	)
	if !errors.Is(err, auth.ErrAuthTimeout) {
		t.Fatalf("expected ErrAuthTimeout, got %v", err)
	}
	if run == nil {
		t.Fatal("expected merged run")
	}
	if run.AbortReason == "" {
		t.Error("expected abort reason to be inherited from the worker")
	}
}

func TestRunParallelFactoryError(t *testing.T) {
	t.Parallel()

	errStart := errors.New("chrome not found")
	factory := func(context.Context, int) (*Controller, func(), error) {
		return nil, nil, errStart
	}

	run, err := RunParallel(context.Background(), []string{fintechURL}, 1, factory,
		WithParallelLogger(discardLogger()),
	)
	if !errors.Is(err, errStart) {
		t.Fatalf("expected start error, got %v", err)
	}
	if run == nil || len(run.Captures()) != 0 {
		t.Errorf("expected an empty merged run, got %+v", run)
	}
}

func TestRunParallelInvalidInput(t *testing.T) {
	t.Parallel()

	fl := newFleet()
	if _, err := RunParallel(context.Background(), []string{fintechURL}, 0, fl.factory); !errors.Is(err, ErrInvalidWorkers) {
		t.Errorf("expected ErrInvalidWorkers, got %v", err)
	}
	if _, err := RunParallel(context.Background(), nil, 2, fl.factory); !errors.Is(err, ErrNoURLs) {
		t.Errorf("expected ErrNoURLs, got %v", err)
	}
}
