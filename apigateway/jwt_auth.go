package gateway

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

var (
	errEmptyKey     = errors.New("empty jwt key")
	errInvalidToken = errors.New("token is invalid")
	errExpiredToken = errors.New("token has expired")
)

// JWTAuth issues and checks HS256 bearer tokens for admin users.
type JWTAuth struct {
	Key    []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// TokenClaims carries the admin username.
type TokenClaims struct {
	Username string `json:"username"`
	jwt.StandardClaims
}

//GenerateSecretKey generates secret key for jwt signing
func GenerateSecretKey(n int) ([]byte, error) {
	key := make([]byte, n)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

func (j *JWTAuth) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

func (j *JWTAuth) ttl() time.Duration {
	if j.TTL <= 0 {
		return 3 * time.Hour
	}
	return j.TTL
}

func generateClaims(iat, eat int64, issuer string) jwt.StandardClaims {
	return jwt.StandardClaims{
		IssuedAt:  iat,
		ExpiresAt: eat,
		Issuer:    issuer,
	}
}

// GenerateJWT signs a token for username.
func (j *JWTAuth) GenerateJWT(username string) (string, error) {
	if len(j.Key) == 0 {
		return "", errEmptyKey
	}
	now := j.now()
	claims := TokenClaims{
		Username:       username,
		StandardClaims: generateClaims(now.Unix(), now.Add(j.ttl()).Unix(), j.Issuer),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.Key)
}

// VerifyJWT parses tokenString and returns its claims. Expired tokens yield
// errExpiredToken, anything else unusable yields errInvalidToken.
func (j *JWTAuth) VerifyJWT(tokenString string) (*TokenClaims, error) {
	if len(j.Key) == 0 {
		return nil, errEmptyKey
	}
	parser := &jwt.Parser{SkipClaimsValidation: true}
	token, err := parser.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Key, nil
	})
	if err != nil {
		return nil, errInvalidToken
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.Username == "" {
		return nil, errInvalidToken
	}
	if !claims.VerifyExpiresAt(j.now().Unix(), true) {
		return nil, errExpiredToken
	}
	return claims, nil
}
