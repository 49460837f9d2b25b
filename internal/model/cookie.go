package model

import (
	"log/slog"
	"time"
)

// Cookie is one browser cookie belonging to an authenticated session.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path,omitempty"`
	Expiry   time.Time `json:"expiry,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
	SameSite string    `json:"same_site,omitempty"`
}

// Expired reports whether the cookie has an expiry at or before now.
// Session cookies (zero Expiry) never expire.
func (c Cookie) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !c.Expiry.After(now)
}

// LogValue logs the cookie's identity. The value is left for the log
// handler to mask.
func (c Cookie) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", c.Name),
		slog.String("domain", c.Domain),
		slog.String("value", c.Value),
	)
}
