package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrBadCredentials = errors.New("bad credentials")

const adminTokenTTL = 12 * time.Hour

// AdminAuth guards the channel/key management surface. A single operator
// account is configured through the environment; chat traffic never touches
// this path.
type AdminAuth struct {
	secret       []byte
	user         string
	passwordHash string // bcrypt
}

func NewAdminAuth(jwtSecret, user, passwordHash string) *AdminAuth {
	return &AdminAuth{secret: []byte(jwtSecret), user: user, passwordHash: passwordHash}
}

// Login checks the password against the configured bcrypt hash and issues a
// signed token. An empty configured hash disables admin login entirely.
func (a *AdminAuth) Login(user, password string) (string, error) {
	if a.passwordHash == "" || user != a.user {
		return "", ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)); err != nil {
		return "", ErrBadCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": a.user,
		"iat": now.Unix(),
		"exp": now.Add(adminTokenTTL).Unix(),
	})
	return token.SignedString(a.secret)
}

func (a *AdminAuth) VerifyToken(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return ErrBadCredentials
	}
	return nil
}
