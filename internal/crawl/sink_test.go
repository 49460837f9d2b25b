package crawl

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/signalscan/internal/model"
)

type recordingSink struct {
	name   string
	err    error
	writes int
	ctxErr error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(ctx context.Context, _ *model.CrawlRun) error {
	s.writes++
	s.ctxErr = ctx.Err()
	return s.err
}

func TestFinalizeAttemptsEverySink(t *testing.T) {
	t.Parallel()

	errDisk := errors.New("disk full")
	csv := &recordingSink{name: "csv", err: errDisk}
	db := &recordingSink{name: "sqlite"}
	run := model.NewCrawlRun([]string{fintechURL}, start)

	err := Finalize(context.Background(), run, discardLogger(), csv, db)

	if !errors.Is(err, errDisk) {
		t.Errorf("expected joined sink error, got %v", err)
	}
	if csv.writes != 1 || db.writes != 1 {
		t.Errorf("expected each sink written once, got csv=%d sqlite=%d", csv.writes, db.writes)
	}
}

func TestFinalizeAfterCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{name: "csv"}
	run := model.NewCrawlRun([]string{fintechURL}, start)

	if err := Finalize(ctx, run, discardLogger(), sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.ctxErr != nil {
		t.Errorf("expected sinks to run with a live context, got %v", sink.ctxErr)
	}
}

func TestFinalizeNilRun(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{name: "csv"}
	if err := Finalize(context.Background(), nil, nil, sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sink.writes != 0 {
		t.Errorf("expected no writes, got %d", sink.writes)
	}
}
