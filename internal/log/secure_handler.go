package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeys are attribute keys whose values are always masked.
var sensitiveKeys = map[string]bool{
	"cookie":        true,
	"cookies":       true,
	"set-cookie":    true,
	"authorization": true,
	"session":       true,
	"session_id":    true,
	"sessionid":     true,
	"sid":           true,
	"key":           true,
	"session_key":   true,
	"secret":        true,
	"token":         true,
	"csrf":          true,
	"password":      true,
	"value":         true,
}

// sensitiveKeywords mask any key that contains them.
// The bare word "key" is left out here because it matches too much
// ("key_path", "primary_key"); only the exact key is masked.
var sensitiveKeywords = []string{
	"cookie", "password", "passwd", "secret", "token", "credential", "csrf",
}

// sensitivePatterns mask values regardless of their key.
var sensitivePatterns = []*regexp.Regexp{
	// JWT, as issued by the site's auth backend.
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	// Cookie header: name=value pairs joined by "; ".
	regexp.MustCompile(`^[!#$%&'*+\-.^_|~0-9A-Za-z]+=[^;\s]+(;\s*[!#$%&'*+\-.^_|~0-9A-Za-z]+=[^;\s]*)+$`),
	// Long opaque identifiers such as session ids.
	regexp.MustCompile(`^[A-Za-z0-9_-]{40,}$`),
}

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// SecureHandler wraps an slog.Handler and masks cookie values, session keys
// and tokens before records reach the wrapped handler.
//
// Design decision: We use a handler wrapper rather than a custom logger so
// that every component keeps taking a plain *slog.Logger. Values that
// implement slog.LogValuer (model.Cookie does) are resolved first, so a
// cookie passed whole is masked field by field.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, masked)
}

// WithAttrs returns a handler with the masked attributes added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(masked)}
}

// WithGroup returns a handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		masked := make([]slog.Attr, len(group))
		for i, ga := range group {
			masked[i] = sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
	case slog.KindString:
		if isSensitiveValue(a.Value.String()) {
			return slog.String(a.Key, MaskValue)
		}
	}
	return a
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if sensitiveKeys[k] {
		return true
	}
	return containsSensitiveKeyword(k)
}

func containsSensitiveKeyword(key string) bool {
	for _, kw := range sensitiveKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// NewSecureLogger creates a text logger that masks sensitive values.
// verbose lowers the level from Warn to Debug.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelFor(verbose)})))
}

// NewSecureJSONLogger is NewSecureLogger with JSON output.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelFor(verbose)})))
}

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
