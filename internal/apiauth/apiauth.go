// Package apiauth resolves a worker's bearer ApiKey to its ApiUser record.
// It uses the same two-hash scheme the reference corpus uses for its plugin
// API keys: a SHA-256 lookup hash as the document id (for an O(1) indexed
// lookup) plus a bcrypt comparison as the actual security boundary, so the
// bcrypt hash — the only thing that would let an attacker forge a key — is
// never used as a lookup key itself.
package apiauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"

	"github.com/lila-deepq/deepq/internal/apperror"
	"github.com/lila-deepq/deepq/internal/model"
	"github.com/lila-deepq/deepq/internal/store"
)

const (
	usersCollection = "api_users"
	// bcryptCost trades hash latency for brute-force resistance; 10 keeps a
	// single lookup well under typical HTTP timeouts while still being slow
	// enough to matter against offline guessing.
	bcryptCost = 10
	// bcryptInputLimit is bcrypt's own input ceiling; keys longer than this
	// are pre-hashed with SHA-256 before bcrypt ever sees them.
	bcryptInputLimit = 72
)

// userDoc is the jsonb shape of a stored ApiUser. The document id is the
// SHA-256 lookup hash of the plaintext key, never the key or its bcrypt hash.
type userDoc struct {
	ID      string   `json:"id"`
	KeyHash string   `json:"key_hash"`
	Name    string   `json:"name"`
	User    *string  `json:"user,omitempty"`
	Perms   []string `json:"perms"`
}

func (d userDoc) DocID() string { return d.ID }

// Store resolves bearer keys to ApiUsers and registers new ones.
type Store struct {
	store *store.Store
}

// New wraps s for ApiUser lookups.
func New(s *store.Store) *Store {
	return &Store{store: s}
}

// lookupHash is the SHA-256 hex digest of key, used only as an index —
// never compared for equality on its own, since a collision there would
// otherwise be sufficient to impersonate a key.
func lookupHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// bcryptInput prepares key for bcrypt, pre-hashing with SHA-256 if it
// exceeds bcrypt's 72-byte limit so long keys don't silently truncate.
func bcryptInput(key string) []byte {
	if len(key) <= bcryptInputLimit {
		return []byte(key)
	}

	sum := sha256.Sum256([]byte(key))

	return sum[:]
}

// Register stores a new ApiUser under key, bcrypt-hashing it for storage.
func (s *Store) Register(ctx context.Context, key model.ApiKey, user *model.ApiUser) error {
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(string(key)), bcryptCost)
	if err != nil {
		return apperror.Wrap(apperror.Internal, "apiauth: hash api key", err)
	}

	perms := make([]string, len(user.Perms))
	for i, p := range user.Perms {
		perms[i] = p.String()
	}

	doc := userDoc{ID: lookupHash(string(key)), KeyHash: string(hash), Name: user.Name, Perms: perms}

	if user.User != nil {
		u := string(user.User.Canon())
		doc.User = &u
	}

	return store.Upsert(ctx, s.store, usersCollection, doc)
}

// Resolve authenticates key and returns its ApiUser. A dummy bcrypt
// comparison runs on every miss path so a lookup-hash cache miss and a
// bcrypt mismatch take the same time, denying a timing oracle for key
// enumeration.
func (s *Store) Resolve(ctx context.Context, key model.ApiKey) (*model.ApiUser, error) {
	if key == "" {
		bcrypt.CompareHashAndPassword([]byte(dummyHash), bcryptInput("")) //nolint:errcheck

		return nil, apperror.New(apperror.Unauthenticated, "apiauth: no credential presented")
	}

	doc, err := store.FindOne[userDoc](ctx, s.store, usersCollection, store.Filter{
		Where: `id = $1`,
		Args:  []any{lookupHash(string(key))},
	})
	if err != nil {
		bcrypt.CompareHashAndPassword([]byte(dummyHash), bcryptInput(string(key))) //nolint:errcheck

		if apperror.Is(err, apperror.NotFound) {
			return nil, apperror.New(apperror.Forbidden, "apiauth: unknown api key")
		}

		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(doc.KeyHash), bcryptInput(string(key))) != nil {
		// Lookup hash collided but the bcrypt hash didn't verify: treat
		// exactly like an unknown key.
		return nil, apperror.New(apperror.Forbidden, "apiauth: unknown api key")
	}

	perms := make([]model.AnalysisType, 0, len(doc.Perms))

	for _, p := range doc.Perms {
		t, err := model.ParseAnalysisType(p)
		if err != nil {
			continue
		}

		perms = append(perms, t)
	}

	user := &model.ApiUser{Key: key, Name: doc.Name, Perms: perms}

	if doc.User != nil {
		u := model.UserId(*doc.User)
		user.User = &u
	}

	return user, nil
}

// dummyHash is a precomputed bcrypt hash of an arbitrary value, compared
// against on every failure path purely to hold the bcrypt cost constant.
const dummyHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8lnIv.f3X9X3F9b5Rf3gWtFM8VBqKi"
