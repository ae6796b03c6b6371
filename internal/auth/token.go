package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mtan/parley/internal/models"
)

// ErrInvalidToken is returned when a token is malformed or its signature
// does not verify.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims embedded in issued bearer tokens. Only public
// profile data goes in; tokens are readable by anyone holding them.
type Claims struct {
	UserID uint   `json:"userId"`
	Uname  string `json:"uname"`
	Img    string `json:"img"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies bearer tokens with an HMAC secret.
type TokenManager struct {
	secret []byte
}

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Generate issues a signed token for the user. Tokens carry no expiry;
// they stay valid until the signing secret is rotated.
func (m *TokenManager) Generate(user *models.User) (string, error) {
	claims := Claims{
		UserID: user.ID,
		Uname:  user.Uname,
		Img:    user.Img,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify parses and validates a token, returning its claims.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
