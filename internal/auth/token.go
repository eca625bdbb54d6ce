package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Claims 会话令牌载荷。LoginAt 为毫秒时间戳，过期判断以它为准。
type Claims struct {
	LoginAt int64 `json:"login_at"`
	jwt.RegisteredClaims
}

// TokenIssuer 负责 HS256 签发与验签。
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

// Issue 为 username 签发令牌，jti 同时作为服务端会话 key。
func (t *TokenIssuer) Issue(username string, loginAt time.Time, ttl time.Duration) (string, *Claims, error) {
	claims := &Claims{
		LoginAt: loginAt.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			Issuer:    "shopkeep",
			IssuedAt:  jwt.NewNumericDate(loginAt),
			ExpiresAt: jwt.NewNumericDate(loginAt.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, errors.Wrap(err, "sign token")
	}
	return signed, claims, nil
}

// Parse 只校验签名与算法；时间规则由 Service 按注入的时钟判断。
func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, errors.New("token missing jti or sub")
	}
	return claims, nil
}
