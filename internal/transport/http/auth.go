package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrBadPassphrase is returned for a wrong admin passphrase.
var ErrBadPassphrase = errors.New("invalid passphrase")

const tokenSubject = "admin"

// Authenticator checks the shared admin passphrase and issues console tokens.
type Authenticator struct {
	hash   []byte
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthenticator accepts a bcrypt hash, or a plain passphrase that is hashed here.
func NewAuthenticator(passphraseHash, passphrase, secret string, ttl time.Duration) (*Authenticator, error) {
	hash := []byte(passphraseHash)
	if len(hash) == 0 {
		if passphrase == "" {
			return nil, errors.New("admin passphrase not configured")
		}
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
	}
	if secret == "" {
		return nil, errors.New("admin token secret not configured")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Authenticator{hash: hash, secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Login trades the passphrase for a signed token.
func (a *Authenticator) Login(passphrase string) (string, time.Time, error) {
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(passphrase)); err != nil {
		return "", time.Time{}, ErrBadPassphrase
	}
	now := a.now()
	expires := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   tokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Verify checks a token's signature, expiry and subject.
func (a *Authenticator) Verify(raw string) error {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(a.now))
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return err
	}
	if claims.Subject != tokenSubject {
		return errors.New("unexpected token subject")
	}
	return nil
}

// RequireAdmin rejects requests without a valid bearer token. Websocket clients
// may pass the token as the "token" query parameter instead.
func (a *Authenticator) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			token = r.URL.Query().Get("token")
		}
		if token == "" || a.Verify(token) != nil {
			writeError(w, http.StatusUnauthorized, "admin login required")
			return
		}
		next(w, r)
	}
}
