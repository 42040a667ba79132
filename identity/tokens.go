package identity

import (
	"errors"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	PurposeSession  = "session"
	PurposeRecovery = "recovery"

	defaultJWKSCacheTTL = 15 * time.Minute
)

// Claims is the payload of issued tokens.
type Claims struct {
	Email   string `json:"email,omitempty"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// Session describes an authenticated bearer token.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenID   string    `json:"-"`
}

// Tokens issues HS256 tokens and validates them. When a JWKS is attached,
// RS256 tokens from the external issuer are accepted as well.
type Tokens struct {
	secret   []byte
	issuer   string
	audience string
	jwks     *keyfunc.JWKS
	parser   *jwt.Parser
	now      func() time.Time

	keyCache    sync.Map
	keyCacheTTL time.Duration
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// NewTokens creates a Tokens signing with secret.
func NewTokens(secret []byte, issuer, audience string) *Tokens {
	if len(secret) == 0 {
		panic("identity.NewTokens: secret is empty")
	}
	return &Tokens{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
		now:      time.Now,
	}
}

// WithJWKS additionally accepts RS256 tokens whose keys are published at jwks.
func (t *Tokens) WithJWKS(jwks *keyfunc.JWKS, cacheTTL time.Duration) *Tokens {
	if cacheTTL <= 0 {
		cacheTTL = defaultJWKSCacheTTL
	}
	t.jwks = jwks
	t.keyCacheTTL = cacheTTL
	t.parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "RS256"}))
	return t
}

// Issue signs a token for the user valid for ttl.
func (t *Tokens) Issue(userID, email, purpose string, ttl time.Duration) (string, Session, error) {
	now := t.now()
	claims := Claims{
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if t.audience != "" {
		claims.Audience = jwt.ClaimStrings{t.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", Session{}, err
	}
	return signed, sessionFromClaims(&claims), nil
}

// Verify parses token and checks its signature and registered claims.
func (t *Tokens) Verify(token string) (Session, error) {
	claims := &Claims{}
	if _, err := t.parser.ParseWithClaims(token, claims, t.keyForToken); err != nil {
		return Session{}, err
	}
	if t.audience != "" && !claims.VerifyAudience(t.audience, true) {
		return Session{}, errors.New("invalid audience")
	}
	if t.issuer != "" && !claims.VerifyIssuer(t.issuer, true) {
		return Session{}, errors.New("invalid issuer")
	}
	if claims.Subject == "" {
		return Session{}, errors.New("missing sub")
	}
	if claims.ExpiresAt == nil {
		return Session{}, errors.New("missing exp")
	}
	return sessionFromClaims(claims), nil
}

func sessionFromClaims(c *Claims) Session {
	s := Session{UserID: c.Subject, Email: c.Email, Purpose: c.Purpose, TokenID: c.ID}
	if s.Purpose == "" {
		s.Purpose = PurposeSession
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s
}

func (t *Tokens) keyForToken(token *jwt.Token) (any, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return t.secret, nil
	case *jwt.SigningMethodRSA:
	default:
		return nil, errors.New("invalid signing method")
	}
	if t.jwks == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" {
		if cached, ok := t.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if t.now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			t.keyCache.Delete(kid)
		}
	}

	key, err := t.jwks.Keyfunc(token)
	if err != nil {
		return nil, err
	}

	if kid != "" {
		t.keyCache.Store(kid, cachedKey{key: key, expiresAt: t.now().Add(t.keyCacheTTL)})
	}
	return key, nil
}
