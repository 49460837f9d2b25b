package paginate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/nao1215/signalscan/internal/browser"
	"github.com/nao1215/signalscan/internal/delay"
	"github.com/nao1215/signalscan/internal/model"
)

// Defaults for Driver.
const (
	DefaultPhrase     = "load more"
	DefaultSelector   = "button"
	DefaultCeiling    = 100
	DefaultStallPages = 2
)

// DefaultClickWait is the wait after each click for new rows to render.
var DefaultClickWait = delay.Window{Min: 3 * time.Second, Max: 5 * time.Second}

// Termination explains why pagination stopped.
type Termination int

const (
	// Exhausted means no enabled load-more control remained.
	Exhausted Termination = iota
	// CeilingReached means the click ceiling was hit.
	CeilingReached
	// Stalled means consecutive pages produced no new records.
	Stalled
	// Interrupted means the context ended or the renderer failed.
	Interrupted
)

// String returns the termination name.
func (t Termination) String() string {
	switch t {
	case Exhausted:
		return "exhausted"
	case CeilingReached:
		return "ceiling_reached"
	case Stalled:
		return "stalled"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Result is the outcome of Collect.
type Result struct {
	// Records are the unique records across all pages, in first-seen order.
	Records []model.InvestorRecord
	// Pages is the number of DOM states extracted.
	Pages int
	// Clicks is the number of load-more clicks performed.
	Clicks int
	// Termination is why the loop stopped.
	Termination Termination
	// Err is the renderer or context error behind an Interrupted stop.
	Err error
}

// RecordExtractor turns a snapshot into records. *extract.Extractor
// satisfies it.
type RecordExtractor interface {
	Extract(snapshot, sourceURL string) []model.InvestorRecord
}

// Driver runs the load-more loop on one renderer.
type Driver struct {
	renderer   browser.Renderer
	extractor  RecordExtractor
	phrase     string
	selector   string
	ceiling    int
	stallPages int
	clickWait  delay.Window
	sleeper    delay.Sleeper
	fold       cases.Caser
	logger     *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithPhrase sets the text that identifies the load-more control.
func WithPhrase(p string) Option {
	return func(d *Driver) { d.phrase = p }
}

// WithSelector sets the CSS selector of load-more candidates.
func WithSelector(s string) Option {
	return func(d *Driver) { d.selector = s }
}

// WithCeiling sets the maximum number of clicks per URL.
func WithCeiling(n int) Option {
	return func(d *Driver) { d.ceiling = n }
}

// WithStallPages sets how many consecutive pages without new records stop
// the loop.
func WithStallPages(n int) Option {
	return func(d *Driver) { d.stallPages = max(n, 1) }
}

// WithClickWait sets the post-click wait window.
func WithClickWait(w delay.Window) Option {
	return func(d *Driver) { d.clickWait = w }
}

// WithSleeper sets the sleeper used after clicks.
func WithSleeper(s delay.Sleeper) Option {
	return func(d *Driver) { d.sleeper = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// New creates a Driver.
func New(r browser.Renderer, x RecordExtractor, opts ...Option) *Driver {
	d := &Driver{
		renderer:   r,
		extractor:  x,
		phrase:     DefaultPhrase,
		selector:   DefaultSelector,
		ceiling:    DefaultCeiling,
		stallPages: DefaultStallPages,
		clickWait:  DefaultClickWait,
		sleeper:    delay.RealSleeper{},
		fold:       cases.Fold(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Collect extracts snapshot and every page reachable through the load-more
// control.
func (d *Driver) Collect(ctx context.Context, sourceURL, snapshot string) Result {
	res := Result{Records: make([]model.InvestorRecord, 0)}
	seen := model.NewDedupSet()
	idle := 0
	current := snapshot

	for {
		res.Pages++
		added := 0
		for _, rec := range d.extractor.Extract(current, sourceURL) {
			if rec.Valid() && seen.Add(rec.Key()) {
				res.Records = append(res.Records, rec)
				added++
			}
		}
		d.logger.Debug("extracted page", "url", sourceURL, "page", res.Pages, "new", added, "total", len(res.Records))

		if res.Pages > 1 {
			if added == 0 {
				idle++
			} else {
				idle = 0
			}
			if idle >= d.stallPages {
				d.logger.Warn("pagination stalled", "url", sourceURL, "pages", res.Pages, "clicks", res.Clicks)
				res.Termination = Stalled
				return res
			}
		}

		if err := ctx.Err(); err != nil {
			return d.interrupted(res, sourceURL, err)
		}

		control, ok, err := d.findControl(ctx)
		if err != nil {
			return d.interrupted(res, sourceURL, err)
		}
		if !ok || control.Disabled {
			res.Termination = Exhausted
			return res
		}
		if res.Clicks >= d.ceiling {
			d.logger.Warn("pagination ceiling reached", "url", sourceURL, "ceiling", d.ceiling)
			res.Termination = CeilingReached
			return res
		}

		if err := d.renderer.Click(ctx, control); err != nil {
			return d.interrupted(res, sourceURL, err)
		}
		res.Clicks++

		if err := d.sleeper.Sleep(ctx, d.clickWait.Draw()); err != nil {
			return d.interrupted(res, sourceURL, err)
		}
		if current, err = d.renderer.PageSource(ctx); err != nil {
			return d.interrupted(res, sourceURL, err)
		}
	}
}

func (d *Driver) interrupted(res Result, sourceURL string, err error) Result {
	d.logger.Warn("pagination interrupted", "url", sourceURL, "pages", res.Pages, "error", err)
	res.Termination = Interrupted
	res.Err = err
	return res
}

// findControl returns the first candidate whose text contains the phrase,
// compared under Unicode case folding.
func (d *Driver) findControl(ctx context.Context) (browser.Element, bool, error) {
	candidates, err := d.renderer.FindElements(ctx, d.selector)
	if err != nil {
		return browser.Element{}, false, err
	}
	want := d.fold.String(d.phrase)
	for _, el := range candidates {
		if strings.Contains(d.fold.String(el.Text), want) {
			return el, true, nil
		}
	}
	return browser.Element{}, false, nil
}
