package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/c-pro/geche"
	"golang.org/x/crypto/bcrypt"
)

const DefaultTokenExpiry = 24 * time.Hour

var ErrInvalidAdminKey = errors.New("invalid admin key")

// Config for session token verification. Session issuance itself lives
// behind the admin surface; the platform's identity provider is the
// real authority and exchanges its sessions for chat tokens there.
type Config struct {
	Secret      string        `json:"secret"`
	secretBytes []byte        `json:"-"`
	TokenExpiry time.Duration `json:"tokenExpiry"`
	// bcrypt hash of the admin API key; empty disables the admin surface.
	AdminKeyHash string `json:"-"`
}

type Service struct {
	Config
	// token hash -> user id, expiring with the token lifetime
	liveTokens geche.Geche[string, string]
	now        func() time.Time
}

func (c *Config) Validate() error {
	if c.Secret == "" {
		return errors.New("secret is required")
	}

	var err error
	c.secretBytes, err = base64.StdEncoding.DecodeString(c.Secret)
	if err != nil {
		return fmt.Errorf("auth secret is not a valid base64: %w", err)
	}

	if c.TokenExpiry == 0 {
		c.TokenExpiry = DefaultTokenExpiry
	}

	return nil
}

func NewService(ctx context.Context, config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		Config:     config,
		liveTokens: geche.NewMapTTLCache[string, string](ctx, config.TokenExpiry, time.Minute),
		now:        time.Now,
	}, nil
}

// hashToken derives the storage key for a raw token so the raw value
// never sits in memory longer than needed.
func (s *Service) hashToken(token string) string {
	h := hmac.New(sha512.New, s.secretBytes)
	h.Write([]byte(token))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// IssueToken mints a session token for the given user id and returns
// the raw token together with its expiry.
func (s *Service) IssueToken(userID string) (string, int64, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", 0, fmt.Errorf("failed to generate token: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(b)
	s.liveTokens.Set(s.hashToken(token), userID)
	return token, s.now().Add(s.TokenExpiry).Unix(), nil
}

// GetUserID resolves a raw session token to the user id it was issued for.
func (s *Service) GetUserID(token string) (string, error) {
	return s.liveTokens.Get(s.hashToken(token))
}

func (s *Service) Logoff(token string) error {
	return s.liveTokens.Del(s.hashToken(token))
}

// CheckAdminKey compares the presented admin key against the configured
// bcrypt hash in constant time.
func (s *Service) CheckAdminKey(key string) error {
	if s.AdminKeyHash == "" || key == "" {
		return ErrInvalidAdminKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.AdminKeyHash), []byte(key)); err != nil {
		return ErrInvalidAdminKey
	}
	return nil
}

// HashAdminKey produces the bcrypt hash to put in ADMIN_KEY_HASH.
func HashAdminKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
