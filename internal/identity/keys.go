package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnknownKey means no published key matches the token's kid.
	ErrUnknownKey = errors.New("unknown signing key")
	// ErrKeysUnavailable means the key set could not be fetched.
	ErrKeysUnavailable = errors.New("signing keys unavailable")
)

// KeySource resolves the public key for a key id.
type KeySource interface {
	PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// StaticKeys is a fixed key set, used for tests and local development.
type StaticKeys map[string]*rsa.PublicKey

func (s StaticKeys) PublicKey(_ context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := s[kid]; ok {
		return key, nil
	}
	return nil, ErrUnknownKey
}

const (
	defaultJWKSTTL     = time.Hour
	defaultMinRefresh  = time.Minute
	defaultJWKSTimeout = 5 * time.Second
)

// JWKSCache fetches the issuer's published JSON Web Key Set and caches it for the
// lifetime advertised in Cache-Control. An unknown kid triggers a refresh, at most
// once per minRefresh, so rotated keys are picked up without restarts. Concurrent
// refreshes collapse into one request.
type JWKSCache struct {
	url        string
	client     *http.Client
	now        func() time.Time
	minRefresh time.Duration
	defaultTTL time.Duration

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
	lastFetch time.Time

	group singleflight.Group
}

// JWKSOption configures a JWKSCache.
type JWKSOption func(*JWKSCache)

func WithHTTPClient(client *http.Client) JWKSOption {
	return func(c *JWKSCache) {
		if client != nil {
			c.client = client
		}
	}
}

func WithJWKSClock(now func() time.Time) JWKSOption {
	return func(c *JWKSCache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithMinRefreshInterval(d time.Duration) JWKSOption {
	return func(c *JWKSCache) {
		c.minRefresh = d
	}
}

// NewJWKSCache creates a cache for the key set at url. Keys are fetched lazily.
func NewJWKSCache(url string, opts ...JWKSOption) *JWKSCache {
	c := &JWKSCache{
		url:        url,
		client:     &http.Client{Timeout: defaultJWKSTimeout},
		now:        time.Now,
		minRefresh: defaultMinRefresh,
		defaultTTL: defaultJWKSTTL,
		keys:       map[string]*rsa.PublicKey{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PublicKey returns the key for kid, refreshing the set when it is stale or when
// kid is not known yet. A stale key is still served if the refresh fails.
func (c *JWKSCache) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	now := c.now()

	c.mu.RLock()
	key, ok := c.keys[kid]
	fresh := now.Before(c.expiresAt)
	canRefresh := c.lastFetch.IsZero() || now.Sub(c.lastFetch) >= c.minRefresh
	c.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}
	if !fresh || canRefresh {
		if err := c.refresh(ctx); err != nil {
			if ok {
				return key, nil
			}
			return nil, err
		}
		c.mu.RLock()
		key, ok = c.keys[kid]
		c.mu.RUnlock()
	}
	if !ok {
		return nil, ErrUnknownKey
	}
	return key, nil
}

func (c *JWKSCache) refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("jwks", func() (any, error) {
		return nil, c.fetch(ctx)
	})
	return err
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (c *JWKSCache) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrKeysUnavailable, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrKeysUnavailable, resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("%w: decode key set: %v", ErrKeysUnavailable, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := k.rsaPublicKey()
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: key set contains no usable RSA keys", ErrKeysUnavailable)
	}

	now := c.now()
	ttl := maxAge(resp.Header.Get("Cache-Control"), c.defaultTTL)

	c.mu.Lock()
	c.keys = keys
	c.expiresAt = now.Add(ttl)
	c.lastFetch = now
	c.mu.Unlock()
	return nil
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() < 3 {
		return nil, errors.New("invalid RSA exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}, nil
}

// maxAge extracts max-age from a Cache-Control header.
func maxAge(header string, fallback time.Duration) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		secs, err := strconv.Atoi(value)
		if err != nil || secs <= 0 {
			return fallback
		}
		return time.Duration(secs) * time.Second
	}
	return fallback
}
