package mapa

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the validity window for issued session tokens.
const DefaultTokenTTL = 24 * time.Hour

const userIDClaim = "user_id"

// Authenticator issues, validates and revokes per-user session tokens.
//
// A user has at most one valid token at any time: Issue persists the
// new token as the user's sole current token, so any previously issued
// token stops validating the instant the new one is stored, regardless
// of its own expiry. Validate always re-reads the stored token instead
// of trusting the signature alone; that round trip buys the
// single-active-session guarantee.
type Authenticator struct {
	repo   Repository
	tokens *jwtauth.JWTAuth
	ttl    time.Duration
}

// NewAuthenticator creates an Authenticator signing tokens with the
// given HS256 secret. A zero ttl falls back to DefaultTokenTTL.
func NewAuthenticator(repo Repository, secret string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Authenticator{
		repo:   repo,
		tokens: jwtauth.New("HS256", []byte(secret), nil),
		ttl:    ttl,
	}
}

// Issue generates a signed token bound to userID and persists it as
// the user's current session token, replacing any prior one.
func (a *Authenticator) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	claims := map[string]interface{}{userIDClaim: userID.String()}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, a.ttl)

	_, tokenString, err := a.tokens.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	if err := a.repo.SetUserToken(ctx, userID, tokenString); err != nil {
		return "", err
	}
	return tokenString, nil
}

// Validate verifies signature and expiry, then confirms the presented
// token matches the one currently stored for the user. Any mismatch,
// logout and superseded login included, yields ErrUnauthenticated.
func (a *Authenticator) Validate(ctx context.Context, tokenString string) (*User, error) {
	if tokenString == "" {
		return nil, ErrUnauthenticated
	}

	token, err := jwtauth.VerifyToken(a.tokens, tokenString)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	raw, ok := token.Get(userIDClaim)
	if !ok {
		return nil, ErrUnauthenticated
	}
	idStr, ok := raw.(string)
	if !ok {
		return nil, ErrUnauthenticated
	}
	userID, err := uuid.Parse(idStr)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	user, err := a.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if user.Token == "" || user.Token != tokenString {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// Revoke clears the user's stored token, invalidating it for future
// validation.
func (a *Authenticator) Revoke(ctx context.Context, userID uuid.UUID) error {
	return a.repo.SetUserToken(ctx, userID, "")
}
