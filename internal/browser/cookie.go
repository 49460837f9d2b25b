package browser

import (
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"

	"github.com/nao1215/signalscan/internal/model"
)

// fromNetworkCookie converts a DevTools cookie. Expires is seconds since the
// epoch, or a non-positive value for session cookies.
func fromNetworkCookie(c *network.Cookie) model.Cookie {
	out := model.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
		SameSite: c.SameSite.String(),
	}
	if c.Expires > 0 {
		sec := int64(c.Expires)
		nsec := int64((c.Expires - float64(sec)) * float64(time.Second))
		out.Expiry = time.Unix(sec, nsec).UTC()
	}
	return out
}

// toSetCookie builds the DevTools call that injects c.
func toSetCookie(c model.Cookie) *network.SetCookieParams {
	p := network.SetCookie(c.Name, c.Value).
		WithDomain(c.Domain).
		WithSecure(c.Secure).
		WithHTTPOnly(c.HTTPOnly)

	path := c.Path
	if path == "" {
		path = "/"
	}
	p = p.WithPath(path)

	if !c.Expiry.IsZero() {
		ts := cdp.TimeSinceEpoch(c.Expiry)
		p = p.WithExpires(&ts)
	}
	if ss, ok := sameSite(c.SameSite); ok {
		p = p.WithSameSite(ss)
	}
	return p
}

func sameSite(v string) (network.CookieSameSite, bool) {
	switch strings.ToLower(v) {
	case "strict":
		return network.CookieSameSiteStrict, true
	case "lax":
		return network.CookieSameSiteLax, true
	case "none":
		return network.CookieSameSiteNone, true
	default:
		return "", false
	}
}
