package session

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/nao1215/signalscan/internal/model"
)

// Session is the persisted cookie set of an authenticated browser.
type Session struct {
	Cookies []model.Cookie
	SavedAt time.Time
}

// Clone returns a copy of the session with its own cookie slice.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	return &Session{Cookies: slices.Clone(s.Cookies), SavedAt: s.SavedAt}
}

// payload is the plaintext layout inside the encrypted file.
type payload struct {
	SavedAt time.Time      `json:"saved_at"`
	Cookies []model.Cookie `json:"cookies"`
}

// Store reads and writes one encrypted session file.
type Store struct {
	path    string
	keyPath string
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report corrupt sessions.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the clock used to stamp saved sessions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store for the session file at path, encrypted with the
// key at keyPath. Neither file needs to exist yet.
func NewStore(path, keyPath string, opts ...Option) *Store {
	s := &Store{
		path:    path,
		keyPath: keyPath,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the session file path.
func (s *Store) Path() string {
	return s.path
}

// KeyPath returns the key file path.
func (s *Store) KeyPath() string {
	return s.keyPath
}

// Load reads and decrypts the session.
// It returns ErrNotFound when there is no usable session.
func (s *Store) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}

	key, err := os.ReadFile(s.keyPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("session file exists but key file is missing", "path", s.path)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read session key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		s.logger.Warn("session key has invalid length, ignoring session", "length", len(key))
		return nil, ErrNotFound
	}

	sess, err := decode(key, data)
	if err != nil {
		s.logger.Warn("ignoring unreadable session", "path", s.path, "error", err)
		return nil, ErrNotFound
	}
	return sess, nil
}

// Save encrypts and atomically replaces the session file. The key file is
// created on first use.
func (s *Store) Save(sess *Session) error {
	if sess == nil {
		return ErrNilSession
	}

	key, err := s.ensureKey()
	if err != nil {
		return err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}

	savedAt := s.now()
	plain, err := json.Marshal(payload{SavedAt: savedAt, Cookies: sess.Cookies})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plain, nil)

	if err := writeFileAtomic(s.path, sealed, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	sess.SavedAt = savedAt
	return nil
}

// Clear removes the session file. The key file is kept.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// ensureKey returns the existing key or generates and persists a new one.
func (s *Store) ensureKey() ([]byte, error) {
	key, err := os.ReadFile(s.keyPath)
	switch {
	case err == nil:
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("%w: %s has %d bytes", ErrInvalidKey, s.keyPath, len(key))
		}
		return key, nil
	case errors.Is(err, fs.ErrNotExist):
		key = make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate session key: %w", err)
		}
		err := writeFileExclusive(s.keyPath, key, 0o600)
		if errors.Is(err, fs.ErrExist) {
			// Another store sharing this key path won the race; use its key.
			return s.ensureKey()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to write session key: %w", err)
		}
		s.logger.Info("generated new session key", "path", s.keyPath)
		return key, nil
	default:
		return nil, fmt.Errorf("failed to read session key: %w", err)
	}
}

func decode(key, data []byte) (*Session, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionCorrupt, err)
	}
	if len(data) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: file too short", ErrSessionCorrupt)
	}

	nonce, sealed := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionCorrupt, err)
	}

	var p payload
	if err := json.Unmarshal(plain, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionCorrupt, err)
	}
	if p.Cookies == nil {
		p.Cookies = []model.Cookie{}
	}
	return &Session{Cookies: p.Cookies, SavedAt: p.SavedAt}, nil
}

// writeFileExclusive creates path with data only if it does not exist yet.
// The content is complete before the file becomes visible. It returns an
// error wrapping fs.ErrExist when path is already present.
func writeFileExclusive(path string, data []byte, perm fs.FileMode) error {
	tmp, err := writeTemp(path, data, perm)
	if err != nil {
		return err
	}
	defer os.Remove(tmp) //nolint:errcheck // the temp name is unlinked either way
	return os.Link(tmp, path)
}

// writeFileAtomic writes data to a temp file in the target directory, syncs
// it and renames it over path.
func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	tmp, err := writeTemp(path, data, perm)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// writeTemp writes data to a synced temp file next to path and returns its name.
func writeTemp(path string, data []byte, perm fs.FileMode) (name string, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err = tmp.Close(); err != nil {
		return "", err
	}
	if err = os.Chmod(tmp.Name(), perm); err != nil {
		return "", err
	}
	return tmp.Name(), nil
}
