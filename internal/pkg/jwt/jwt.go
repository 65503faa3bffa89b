package jwt

import (
	"errors"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var ErrInvalidToken = errors.New("invalid access token")

// Claims identifies the caller of the payroll API.
type Claims struct {
	UserID    string
	CompanyID string
}

type Service interface {
	GenerateAccessToken(claims Claims) (token string, expiresAt int64, err error)
	ParseAccessToken(tokenString string) (Claims, error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpirationTime time.Duration
	tokenAuth                 *jwtauth.JWTAuth
	now                       func() time.Time
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

// NewJWTService verifies HS256 tokens issued by the HR platform sharing secretKey.
func NewJWTService(secretKey string, accessTokenExpirationTime time.Duration) Service {
	return &JWTService{
		accessTokenExpirationTime: accessTokenExpirationTime,
		tokenAuth:                 jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
		now:                       time.Now,
	}
}

// GenerateAccessToken issues a token carrying the claims the payroll handlers read.
// Used by operators and tests; production tokens come from the platform's auth service.
func (j *JWTService) GenerateAccessToken(claims Claims) (token string, expiresAt int64, err error) {
	expiresAt = j.now().Add(j.accessTokenExpirationTime).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id":    claims.UserID,
		"company_id": claims.CompanyID,
		"type":       "access",
		"exp":        expiresAt,
	})
	return tokenString, expiresAt, err
}

func (j *JWTService) ParseAccessToken(tokenString string) (Claims, error) {
	token, err := j.tokenAuth.Decode(tokenString)
	if err != nil {
		return Claims{}, err
	}
	return ClaimsFromToken(token)
}

// ClaimsFromToken reads the access claims, rejecting tokens of any other type.
func ClaimsFromToken(token jwt.Token) (Claims, error) {
	if token == nil {
		return Claims{}, ErrInvalidToken
	}

	if tokenType, ok := token.Get("type"); !ok || tokenType != "access" {
		return Claims{}, ErrInvalidToken
	}

	userID, _ := token.Get("user_id")
	companyID, _ := token.Get("company_id")

	claims := Claims{}
	claims.UserID, _ = userID.(string)
	claims.CompanyID, _ = companyID.(string)
	if claims.CompanyID == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
