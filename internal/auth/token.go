package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"liveclass/pkg/types"
)

// Claims are the JWT claims a client presents to the gateway and the REST API
type Claims struct {
	UserID      string     `json:"uid"`
	DisplayName string     `json:"name,omitempty"`
	Role        types.Role `json:"role"`
	jwt.RegisteredClaims
}

// Verifier turns HS256 bearer tokens into identities. Token issuance
// belongs to the identity provider; Issue exists for tooling and tests.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier creates a verifier for tokens signed with secret. A non-empty
// issuer is enforced on verification and stamped on issued tokens.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// Verify validates the token signature, expiry and issuer and returns the
// identity it carries
func (v *Verifier) Verify(tokenString string) (types.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return types.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return types.Identity{}, ErrInvalidToken
	}
	if !types.IsValidUserID(claims.UserID) || !types.IsValidRole(claims.Role) {
		return types.Identity{}, ErrInvalidClaims
	}

	return types.Identity{
		UserID:      claims.UserID,
		DisplayName: claims.DisplayName,
		Role:        claims.Role,
	}, nil
}

// Issue signs a token for identity valid for ttl. A zero ttl never expires.
func (v *Verifier) Issue(identity types.Identity, ttl time.Duration) (string, error) {
	now := v.now()
	claims := &Claims{
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		Role:        identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  identity.UserID,
			Issuer:   v.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
