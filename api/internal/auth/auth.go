package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/idtoken"

	"sipnread/api/internal/apperr"
)

type Identity struct {
	UID     string
	Email   string
	Name    string
	Picture string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// GoogleVerifier checks Google-issued ID tokens for one audience.
type GoogleVerifier struct {
	Audience  string
	validator *idtoken.Validator
}

func NewGoogleVerifier(ctx context.Context, audience string, opts ...idtoken.ClientOption) (*GoogleVerifier, error) {
	v, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("auth: validator: %w", err)
	}
	return &GoogleVerifier{Audience: audience, validator: v}, nil
}

func (g *GoogleVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	p, err := g.validator.Validate(ctx, token, g.Audience)
	if err != nil {
		return Identity{}, &apperr.NotAuthenticatedError{Reason: err.Error()}
	}
	if p.Subject == "" {
		return Identity{}, &apperr.NotAuthenticatedError{Reason: "token has no subject"}
	}
	return Identity{
		UID:     p.Subject,
		Email:   claim(p.Claims, "email"),
		Name:    claim(p.Claims, "name"),
		Picture: claim(p.Claims, "picture"),
	}, nil
}

func claim(c map[string]interface{}, k string) string {
	s, _ := c[k].(string)
	return s
}

type ctxKey struct{}

type result struct {
	id  Identity
	err error
}

// Middleware verifies the bearer token when one is sent and stores the
// outcome on the request context. Handlers decide whether identity is required.
func Middleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := Bearer(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			id, err := v.Verify(r.Context(), tok)
			ctx := context.WithValue(r.Context(), ctxKey{}, result{id: id, err: err})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func Bearer(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, result{id: id})
}

// Require returns the caller identity or a NotAuthenticatedError.
func Require(ctx context.Context) (Identity, error) {
	res, ok := ctx.Value(ctxKey{}).(result)
	if !ok {
		return Identity{}, &apperr.NotAuthenticatedError{Reason: "missing bearer token"}
	}
	if res.err != nil {
		return Identity{}, res.err
	}
	return res.id, nil
}

// StaticVerifier maps fixed tokens to identities.
type StaticVerifier map[string]Identity

func (s StaticVerifier) Verify(_ context.Context, token string) (Identity, error) {
	id, ok := s[token]
	if !ok {
		return Identity{}, &apperr.NotAuthenticatedError{Reason: "unknown token"}
	}
	return id, nil
}
