// Package accessgrant issues and verifies short-lived, permission-scoped
// credentials for direct client access to blob objects. Grants are derived
// from a process-wide secret and never persisted; compromise is bounded by
// the TTL ceiling because there is no revocation path.
package accessgrant

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Permission scopes a grant to a single operation class. Read and write
// scopes are disjoint: a grant for one never validates for the other.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// IsValid reports whether the permission is known.
func (p Permission) IsValid() bool {
	return p == PermissionRead || p == PermissionWrite
}

// Status is the outcome of verifying a grant.
type Status int

const (
	StatusInvalid Status = iota
	StatusExpired
	StatusValid
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Grant is an ephemeral signed access descriptor for one object and one
// permission.
type Grant struct {
	ObjectKey  string     `json:"object_key"`
	Permission Permission `json:"permission"`
	IssuedAt   time.Time  `json:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Signature  string     `json:"signature"`
}

// Values encodes the grant's verifiable fields for embedding in a URL.
func (g Grant) Values() url.Values {
	v := url.Values{}
	v.Set("key", g.ObjectKey)
	v.Set("permission", string(g.Permission))
	v.Set("expires", strconv.FormatInt(g.ExpiresAt.Unix(), 10))
	v.Set("signature", g.Signature)
	return v
}

// ParseValues reconstructs a grant from URL query values for verification.
func ParseValues(v url.Values) (Grant, error) {
	key := strings.TrimSpace(v.Get("key"))
	if key == "" {
		return Grant{}, errors.New("grant key is required")
	}
	perm := Permission(v.Get("permission"))
	if !perm.IsValid() {
		return Grant{}, fmt.Errorf("invalid grant permission %q", v.Get("permission"))
	}
	expires, err := strconv.ParseInt(v.Get("expires"), 10, 64)
	if err != nil {
		return Grant{}, fmt.Errorf("invalid grant expiry: %w", err)
	}
	return Grant{
		ObjectKey:  key,
		Permission: perm,
		ExpiresAt:  time.Unix(expires, 0).UTC(),
		Signature:  v.Get("signature"),
	}, nil
}

// Issuer signs and verifies grants with a process-wide secret. The secret is
// injected at construction and read-only afterwards, so the issuer is safe
// for concurrent use.
type Issuer struct {
	secret []byte
	maxTTL time.Duration
	now    func() time.Time
}

// NewIssuer constructs an issuer. maxTTL caps every requested TTL so no link
// stays valid indefinitely.
func NewIssuer(secret []byte, maxTTL time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret is required")
	}
	if maxTTL <= 0 {
		return nil, errors.New("max ttl must be positive")
	}
	return &Issuer{secret: secret, maxTTL: maxTTL, now: time.Now}, nil
}

// WithClock substitutes the time source; used by tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue mints a grant for the object and permission. TTLs above the ceiling
// are clamped; non-positive TTLs are rejected.
func (i *Issuer) Issue(objectKey string, perm Permission, ttl time.Duration) (Grant, error) {
	if strings.TrimSpace(objectKey) == "" {
		return Grant{}, errors.New("object key is required")
	}
	if !perm.IsValid() {
		return Grant{}, fmt.Errorf("invalid permission %q", perm)
	}
	if ttl <= 0 {
		return Grant{}, errors.New("ttl must be positive")
	}
	if ttl > i.maxTTL {
		ttl = i.maxTTL
	}

	issuedAt := i.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)

	return Grant{
		ObjectKey:  objectKey,
		Permission: perm,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
		Signature:  i.sign(objectKey, perm, expiresAt),
	}, nil
}

// Verify recomputes the signature from the claimed fields and compares in
// constant time, then checks expiry. A grant with a bad signature is invalid
// even when unexpired; a well-signed grant past its expiry is expired.
func (i *Issuer) Verify(g Grant) Status {
	if g.ObjectKey == "" || !g.Permission.IsValid() || g.Signature == "" {
		return StatusInvalid
	}

	want := i.sign(g.ObjectKey, g.Permission, g.ExpiresAt)
	if !hmac.Equal([]byte(want), []byte(g.Signature)) {
		return StatusInvalid
	}
	if !i.now().Before(g.ExpiresAt) {
		return StatusExpired
	}
	return StatusValid
}

func (i *Issuer) sign(objectKey string, perm Permission, expiresAt time.Time) string {
	mac := hmac.New(sha256.New, i.secret)
	fmt.Fprintf(mac, "%s|%s|%d", objectKey, perm, expiresAt.Unix())
	return hex.EncodeToString(mac.Sum(nil))
}
