package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Principal: 認証済みユーザー（セッション / JWT のどちらから来ても同じ形）
type Principal struct {
	UserID int64
	Role   Role
	Name   string
}

type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(p Principal) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatInt(p.UserID, 10),
		"role": string(p.Role),
		"name": p.Name,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	})
	s, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

func (t *Tokens) Parse(tokenStr string) (Principal, error) {
	token, err := jwt.Parse(tokenStr, func(tok *jwt.Token) (any, error) {
		// alg 固定（none攻撃とか回避）
		if tok.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || token == nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return Principal{}, ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	if !Role(role).Valid() {
		return Principal{}, ErrInvalidToken
	}
	name, _ := claims["name"].(string)
	return Principal{UserID: id, Role: Role(role), Name: name}, nil
}
