package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidCredentials is returned by Issue for any pair other than
	// the configured one.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized covers every verification failure: bad signature,
	// tampered payload, expiry, malformed token. Callers get no more
	// detail than that.
	ErrUnauthorized = errors.New("unauthorized")
)

// Session is the verified identity carried by a bearer token. The token
// itself is the only session state; the gateway keeps no session table.
type Session struct {
	SubjectID string
	Email     string
	IsAdmin   bool
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type claims struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Gateway issues and verifies signed session tokens against a single
// configured credential pair.
type Gateway struct {
	secret   []byte
	email    string
	password string
	ttl      time.Duration

	now func() time.Time
}

// New builds a Gateway. ttl bounds the lifetime of issued tokens.
func New(secret, email, password string, ttl time.Duration) *Gateway {
	return &Gateway{
		secret:   []byte(secret),
		email:    email,
		password: password,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Issue validates the credential pair and returns a signed token plus the
// session it embeds. Only the configured pair ever succeeds.
func (g *Gateway) Issue(email, password string) (string, Session, error) {
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(g.email)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(g.password)) == 1
	if !emailOK || !passOK {
		return "", Session{}, ErrInvalidCredentials
	}

	now := g.now()
	sess := Session{
		SubjectID: "1",
		Email:     email,
		IsAdmin:   true,
		IssuedAt:  now,
		ExpiresAt: now.Add(g.ttl),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email:   sess.Email,
		IsAdmin: sess.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.SubjectID,
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	})
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", Session{}, err
	}
	return signed, sess, nil
}

// Verify checks signature and expiry. Any failure maps to ErrUnauthorized.
func (g *Gateway) Verify(tokenString string) (Session, error) {
	var cl claims
	token, err := jwt.ParseWithClaims(tokenString, &cl,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrUnauthorized
			}
			return g.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !token.Valid {
		return Session{}, ErrUnauthorized
	}

	sess := Session{
		SubjectID: cl.Subject,
		Email:     cl.Email,
		IsAdmin:   cl.IsAdmin,
	}
	if cl.IssuedAt != nil {
		sess.IssuedAt = cl.IssuedAt.Time
	}
	if cl.ExpiresAt != nil {
		sess.ExpiresAt = cl.ExpiresAt.Time
	} else {
		// Tokens without an expiry are never accepted.
		return Session{}, ErrUnauthorized
	}
	return sess, nil
}
