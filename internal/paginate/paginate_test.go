package paginate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/nao1215/signalscan/internal/browser"
	"github.com/nao1215/signalscan/internal/browser/browsertest"
	"github.com/nao1215/signalscan/internal/delay"
	"github.com/nao1215/signalscan/internal/extract"
)

const sourceURL = "https://signal.nfx.com/investor-lists/top-saas-seed-investors"

// listing renders a page with the given number of investor rows followed by
// the button markup.
func listing(rows int, button string) string {
	var b strings.Builder
	b.WriteString("<html><body><table>")
	for i := range rows {
		fmt.Fprintf(&b, `<tr><td><div class="flex"><a href="/investors/i%d"><strong class="sn-investor-name">Investor %d</strong></a>`+
			`<a href="/firms/f%d">Firm %d</a></div></td></tr>`, i, i, i, i)
	}
	b.WriteString("</table>")
	b.WriteString(button)
	b.WriteString("</body></html>")
	return b.String()
}

const (
	enabledButton  = `<button class="btn">LOAD MORE INVESTORS</button>`
	disabledButton = `<button class="btn" disabled>Load more investors</button>`
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDriver(r browser.Renderer, sleeper delay.Sleeper, opts ...Option) *Driver {
	base := []Option{WithSleeper(sleeper), WithLogger(discardLogger())}
	return New(r, extract.New(extract.WithLogger(discardLogger())), append(base, opts...)...)
}

// growingListing adds rowsPerPage rows per click and disables the button
// after k clicks.
func growingListing(fake *browsertest.Fake, k, rowsPerPage int) string {
	clicks := 0
	fake.OnClick = func(f *browsertest.Fake, _ browser.Element) error {
		clicks++
		button := enabledButton
		if clicks >= k {
			button = disabledButton
		}
		f.Show(sourceURL, listing((clicks+1)*rowsPerPage, button))
		return nil
	}
	first := listing(rowsPerPage, enabledButton)
	fake.Show(sourceURL, first)
	return first
}

func TestCollectStopsWhenControlDisables(t *testing.T) {
	t.Parallel()

	for _, k := range []int{1, 3, 7} {
		t.Run(fmt.Sprintf("K=%d", k), func(t *testing.T) {
			t.Parallel()

			fake := browsertest.New(nil)
			first := growingListing(fake, k, 2)
			sleeper := &delay.Recorder{}
			res := newDriver(fake, sleeper).Collect(context.Background(), sourceURL, first)

			if res.Termination != Exhausted {
				t.Errorf("expected exhausted, got %s", res.Termination)
			}
			if res.Clicks != k {
				t.Errorf("expected %d clicks, got %d", k, res.Clicks)
			}
			if res.Pages > k+1 {
				t.Errorf("expected at most %d pages, got %d", k+1, res.Pages)
			}
			if got, want := len(res.Records), (k+1)*2; got != want {
				t.Errorf("expected %d unique records, got %d", want, got)
			}
			if len(sleeper.Calls) != k {
				t.Errorf("expected one wait per click, got %d", len(sleeper.Calls))
			}
			for _, d := range sleeper.Calls {
				if d < DefaultClickWait.Min || d > DefaultClickWait.Max {
					t.Errorf("click wait %v outside %v", d, DefaultClickWait)
				}
			}
		})
	}
}

func TestCollectRespectsCeiling(t *testing.T) {
	t.Parallel()

	fake := browsertest.New(nil)
	first := growingListing(fake, 1000, 1)

	res := newDriver(fake, &delay.Recorder{}, WithCeiling(5)).Collect(context.Background(), sourceURL, first)

	if res.Termination != CeilingReached {
		t.Errorf("expected ceiling reached, got %s", res.Termination)
	}
	if res.Clicks != 5 {
		t.Errorf("expected 5 clicks, got %d", res.Clicks)
	}
	if len(fake.Clicks()) != 5 {
		t.Errorf("expected renderer to see 5 clicks, got %d", len(fake.Clicks()))
	}
	if len(res.Records) != 6 {
		t.Errorf("expected 6 records, got %d", len(res.Records))
	}
}

func TestCollectStallsWithoutProgress(t *testing.T) {
	t.Parallel()

	fake := browsertest.New(nil)
	page := listing(3, enabledButton)
	fake.Show(sourceURL, page)
	fake.OnClick = func(f *browsertest.Fake, _ browser.Element) error {
		f.Show(sourceURL, page)
		return nil
	}

	res := newDriver(fake, &delay.Recorder{}).Collect(context.Background(), sourceURL, page)

	if res.Termination != Stalled {
		t.Errorf("expected stalled, got %s", res.Termination)
	}
	if res.Clicks != DefaultStallPages {
		t.Errorf("expected %d clicks, got %d", DefaultStallPages, res.Clicks)
	}
	if len(res.Records) != 3 {
		t.Errorf("expected 3 records, got %d", len(res.Records))
	}
}

func TestCollectNoControl(t *testing.T) {
	t.Parallel()

	fake := browsertest.New(nil)
	page := listing(2, `<button>Subscribe</button>`)
	fake.Show(sourceURL, page)

	res := newDriver(fake, &delay.Recorder{}).Collect(context.Background(), sourceURL, page)

	if res.Termination != Exhausted || res.Clicks != 0 || res.Pages != 1 {
		t.Errorf("unexpected result: termination=%s clicks=%d pages=%d", res.Termination, res.Clicks, res.Pages)
	}
	if len(res.Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(res.Records))
	}
}

func TestCollectDedupsAcrossPages(t *testing.T) {
	t.Parallel()

	fake := browsertest.New(nil)
	first := listing(2, enabledButton)
	fake.Show(sourceURL, first)
	fake.OnClick = func(f *browsertest.Fake, _ browser.Element) error {
		// The site re-renders earlier rows together with the new ones.
		f.Show(sourceURL, listing(4, disabledButton))
		return nil
	}

	res := newDriver(fake, &delay.Recorder{}).Collect(context.Background(), sourceURL, first)

	if len(res.Records) != 4 {
		t.Fatalf("expected 4 unique records, got %d", len(res.Records))
	}
	for i, rec := range res.Records {
		if want := fmt.Sprintf("Investor %d", i); rec.Name != want {
			t.Errorf("record %d: expected %q, got %q", i, want, rec.Name)
		}
	}
}

func TestCollectInterrupted(t *testing.T) {
	t.Parallel()

	t.Run("click error keeps partial records", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("node detached")
		fake := browsertest.New(nil)
		fake.OnClick = func(*browsertest.Fake, browser.Element) error { return boom }
		page := listing(2, enabledButton)
		fake.Show(sourceURL, page)

		res := newDriver(fake, &delay.Recorder{}).Collect(context.Background(), sourceURL, page)

		if res.Termination != Interrupted || !errors.Is(res.Err, boom) {
			t.Errorf("expected interrupted with %v, got %s (%v)", boom, res.Termination, res.Err)
		}
		if len(res.Records) != 2 {
			t.Errorf("expected partial records, got %d", len(res.Records))
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		fake := browsertest.New(nil)

		res := newDriver(fake, &delay.Recorder{}).Collect(ctx, sourceURL, listing(1, enabledButton))

		if res.Termination != Interrupted || !errors.Is(res.Err, context.Canceled) {
			t.Errorf("expected interrupted by cancellation, got %s (%v)", res.Termination, res.Err)
		}
		if len(res.Records) != 1 {
			t.Errorf("expected the first page to be kept, got %d records", len(res.Records))
		}
	})

	t.Run("page source error", func(t *testing.T) {
		t.Parallel()

		fake := browsertest.New(nil)
		fake.SourceErr = errors.New("target closed")
		fake.OnClick = func(*browsertest.Fake, browser.Element) error { return nil }
		page := listing(1, enabledButton)
		fake.Show(sourceURL, page)

		res := newDriver(fake, &delay.Recorder{}).Collect(context.Background(), sourceURL, page)
		if res.Termination != Interrupted {
			t.Errorf("expected interrupted, got %s", res.Termination)
		}
	})
}

func TestFindControlCaseFolding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		button string
		phrase string
		want   bool
	}{
		{name: "upper case text", button: `<button>LOAD MORE INVESTORS</button>`, phrase: "load more", want: true},
		{name: "mixed case phrase", button: `<button>load more investors</button>`, phrase: "Load More", want: true},
		{name: "sharp s folds", button: `<button>Weitere laden STRASSE</button>`, phrase: "straße", want: true},
		{name: "no match", button: `<button>Show filters</button>`, phrase: "load more", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := browsertest.New(nil)
			fake.Show(sourceURL, "<html><body>"+tt.button+"</body></html>")
			d := newDriver(fake, &delay.Recorder{}, WithPhrase(tt.phrase))

			_, ok, err := d.findControl(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if ok != tt.want {
				t.Errorf("expected %v, got %v", tt.want, ok)
			}
		})
	}
}

func TestTerminationString(t *testing.T) {
	t.Parallel()

	want := map[Termination]string{
		Exhausted:      "exhausted",
		CeilingReached: "ceiling_reached",
		Stalled:        "stalled",
		Interrupted:    "interrupted",
		Termination(9): "unknown",
	}
	for term, s := range want {
		if got := term.String(); got != s {
			t.Errorf("expected %q, got %q", s, got)
		}
	}
}
