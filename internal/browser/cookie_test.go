package browser

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/signalscan/internal/model"
)

func TestFromNetworkCookie(t *testing.T) {
	t.Parallel()

	t.Run("persistent cookie keeps expiry", func(t *testing.T) {
		t.Parallel()

		expiry := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
		got := fromNetworkCookie(&network.Cookie{
			Name:     "_signal_session",
			Value:    "v",
			Domain:   ".signal.nfx.com",
			Path:     "/",
			Expires:  float64(expiry.Unix()),
			Secure:   true,
			HTTPOnly: true,
			SameSite: network.CookieSameSiteLax,
		})

		want := model.Cookie{
			Name:     "_signal_session",
			Value:    "v",
			Domain:   ".signal.nfx.com",
			Path:     "/",
			Expiry:   expiry,
			Secure:   true,
			HTTPOnly: true,
			SameSite: "Lax",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("cookie mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("session cookie has zero expiry", func(t *testing.T) {
		t.Parallel()

		got := fromNetworkCookie(&network.Cookie{Name: "n", Value: "v", Expires: -1})
		if !got.Expiry.IsZero() {
			t.Errorf("expected zero expiry, got %v", got.Expiry)
		}
	})
}

func TestToSetCookie(t *testing.T) {
	t.Parallel()

	expiry := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	p := toSetCookie(model.Cookie{
		Name:     "n",
		Value:    "v",
		Domain:   "signal.nfx.com",
		Expiry:   expiry,
		Secure:   true,
		SameSite: "strict",
	})

	if p.Path != "/" {
		t.Errorf("expected default path /, got %q", p.Path)
	}
	if p.Expires == nil || !p.Expires.Time().Equal(expiry) {
		t.Errorf("expected expiry %v, got %v", expiry, p.Expires)
	}
	if p.SameSite != network.CookieSameSiteStrict {
		t.Errorf("expected Strict, got %q", p.SameSite)
	}
	if !p.Secure {
		t.Error("expected secure flag")
	}
}

func TestSameSite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   network.CookieSameSite
		wantOK bool
	}{
		{in: "Lax", want: network.CookieSameSiteLax, wantOK: true},
		{in: "NONE", want: network.CookieSameSiteNone, wantOK: true},
		{in: "Strict", want: network.CookieSameSiteStrict, wantOK: true},
		{in: "", wantOK: false},
		{in: "bogus", wantOK: false},
	}
	for _, tt := range tests {
		got, ok := sameSite(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("sameSite(%q) = %q, %v; expected %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestAllocatorOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.ExecPath = "/usr/bin/chromium"
	opts.UserDataDir = t.TempDir()

	got := allocatorOptions(opts)
	base := len(chromedp.DefaultExecAllocatorOptions)
	// headless, user agent, window size, exec path, user data dir, plus flags
	want := base + 5 + len(opts.Flags)
	if len(got) != want {
		t.Errorf("expected %d allocator options, got %d", want, len(got))
	}
}
