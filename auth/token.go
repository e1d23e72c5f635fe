package auth

import (
	"errors"
	"time"

	"ctfbot/config"

	"github.com/golang-jwt/jwt/v5"
)

const TokenLifetime = time.Hour * 24 * 21

// Claims scope a dashboard token to the server the /token command was run in.
type Claims struct {
	ServerId string `json:"server_id"`
	UserId   string `json:"user_id"`
	Exp      int64  `json:"exp"`
}

var errMalformedClaims = errors.New("malformed token claims")

func (claims *Claims) FromJWTClaims(jwtClaims jwt.Claims) error {
	mapClaims, ok := jwtClaims.(jwt.MapClaims)
	if !ok {
		return errMalformedClaims
	}
	serverId, ok := mapClaims["server_id"].(string)
	if !ok {
		return errMalformedClaims
	}
	userId, _ := mapClaims["user_id"].(string)
	exp, ok := mapClaims["exp"].(float64)
	if !ok {
		return errMalformedClaims
	}
	claims.ServerId = serverId
	claims.UserId = userId
	claims.Exp = int64(exp)
	return nil
}

func (claims *Claims) Valid() error {
	if time.Now().Unix() > claims.Exp {
		return jwt.ErrTokenExpired
	}
	return nil
}

func CreateToken(serverId string, userId string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256,
		jwt.MapClaims{
			"server_id": serverId,
			"user_id":   userId,
			"exp":       time.Now().Add(TokenLifetime).Unix(),
		})

	tokenString, err := token.SignedString([]byte(config.Env().JWTSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func ParseToken(tokenString string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(config.Env().JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, err
	}
	return token, nil
}

// ClaimsFromToken parses and validates a token in one step.
func ClaimsFromToken(tokenString string) (*Claims, error) {
	token, err := ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	claims := &Claims{}
	if err := claims.FromJWTClaims(token.Claims); err != nil {
		return nil, err
	}
	if err := claims.Valid(); err != nil {
		return nil, err
	}
	return claims, nil
}
