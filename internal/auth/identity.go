package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"quiz-room-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultCookieName = "access_token"
	issuer            = "quiz-room-service"
)

// Claims is the payload of an access token.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Resolver turns an HTTP request into the identity it was issued for.
type Resolver struct {
	secret     []byte
	cookieName string
}

func NewResolver(secret, cookieName string) *Resolver {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Resolver{secret: []byte(secret), cookieName: cookieName}
}

// Resolve looks for a token in the access cookie, then the Authorization
// header, then the "token" query parameter. Browsers cannot set headers on a
// websocket handshake, hence the fallbacks.
func (r *Resolver) Resolve(req *http.Request) (domain.Identity, error) {
	raw := tokenFromRequest(req, r.cookieName)
	if raw == "" {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	return r.Verify(raw)
}

// Verify validates a signed token and returns its identity.
func (r *Resolver) Verify(raw string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || strings.TrimSpace(claims.Username) == "" {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	return domain.Identity{ID: claims.UserID, Username: claims.Username}, nil
}

func tokenFromRequest(req *http.Request, cookieName string) string {
	if c, err := req.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := req.Header.Get("Authorization"); h != "" {
		if scheme, value, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value)
		}
	}
	return req.URL.Query().Get("token")
}

// Issuer signs access tokens. The service itself never logs users in; it is
// used by the token command and by tests.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for the given identity.
func (i *Issuer) Issue(id domain.Identity) (string, error) {
	if id.Username == "" {
		return "", errors.New("username is required")
	}
	now := i.now()
	claims := &Claims{
		UserID:   id.ID,
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
