// Package auth mints and caches the bearer token used to post transcripts.
package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"voice-transcription-service/internal/models"
	"voice-transcription-service/internal/observability/metrics"
)

// DefaultAudience is the audience claim expected by the transcript endpoint.
const DefaultAudience = "https://scrt.salesforce.com"

// SecretStore fetches a named secret value.
type SecretStore interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Config describes the claims of minted tokens.
type Config struct {
	KeyParamName string
	Issuer       string // org id
	Subject      string // call center API name
	Audience     string
	TTL          time.Duration
}

// TokenCache holds one signed token per process and re-mints it when it no
// longer verifies. The lock is not held while fetching or signing, so two
// callers that both miss may each mint; the later write wins.
type TokenCache struct {
	store   SecretStore
	cfg     Config
	now     func() time.Time
	metrics *metrics.Metrics

	mu    sync.Mutex
	token string
	key   *rsa.PrivateKey
}

// Option configures a TokenCache.
type Option func(*TokenCache)

// WithClock overrides the time source used for minting and verification.
func WithClock(now func() time.Time) Option {
	return func(c *TokenCache) { c.now = now }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *TokenCache) { c.metrics = m }
}

// NewTokenCache creates an empty cache.
func NewTokenCache(store SecretStore, cfg Config, opts ...Option) *TokenCache {
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	c := &TokenCache{
		store:   store,
		cfg:     cfg,
		now:     time.Now,
		metrics: metrics.DefaultMetrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a valid bearer token, minting a new one if the cached token
// is missing, expired or does not verify.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	token, key := c.token, c.key
	c.mu.Unlock()

	if token != "" && key != nil && c.verify(token, key) {
		c.metrics.RecordTokenCacheHit()
		return token, nil
	}

	token, key, err := c.mint(ctx)
	c.metrics.RecordTokenMint(err)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.token, c.key = token, key
	c.mu.Unlock()
	return token, nil
}

// Invalidate drops the cached token.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token, c.key = "", nil
	c.mu.Unlock()
}

func (c *TokenCache) verify(token string, key *rsa.PrivateKey) bool {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(c.cfg.Audience),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		log.Debug().Err(err).Msg("Cached token no longer valid")
		return false
	}
	return claims.Subject != "" && claims.ID != ""
}

func (c *TokenCache) mint(ctx context.Context) (string, *rsa.PrivateKey, error) {
	if c.store == nil {
		return "", nil, fmt.Errorf("%w: no secret store configured", models.ErrAuth)
	}
	pemText, err := c.store.GetParameter(ctx, c.cfg.KeyParamName)
	if err != nil {
		return "", nil, fmt.Errorf("%w: fetch signing key %s: %v", models.ErrAuth, c.cfg.KeyParamName, err)
	}
	key, err := ParsePrivateKey(pemText)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", models.ErrAuth, err)
	}

	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    c.cfg.Issuer,
		Subject:   c.cfg.Subject,
		Audience:  jwt.ClaimStrings{c.cfg.Audience},
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.cfg.TTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", nil, fmt.Errorf("%w: sign token: %v", models.ErrAuth, err)
	}

	log.Debug().
		Str("jti", claims.ID).
		Time("expiresAt", claims.ExpiresAt.Time).
		Msg("Minted bearer token")
	return signed, key, nil
}
