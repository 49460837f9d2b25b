// Package session persists authenticated browser sessions between runs.
//
// A session is the set of cookies the directory site issued after a
// successful interactive login. It is stored encrypted at rest with
// XChaCha20-Poly1305 under a locally generated 32-byte key. The key lives in
// a separate file next to the session file and is never rotated.
//
// File format: a 24-byte random nonce followed by the sealed JSON encoding of
// the cookie list.
//
// Design decision: A session file that is missing, empty, truncated,
// tampered with, or encrypted under a different key is reported as
// ErrNotFound rather than a hard failure. The caller's response is the same
// in every case (perform a fresh login), so distinguishing them only matters
// for the log, where corruption is recorded at warn level.
//
// Both files are replaced atomically (temp file, fsync, rename) so that a
// crash during Save never leaves a half-written session behind.
package session
