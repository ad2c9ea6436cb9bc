package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// JwtCustomClaim is the session token issued by the external auth provider.
type JwtCustomClaim struct {
	UserId     int    `json:"uid"`
	RetailerId string `json:"rid"`
	Tier       string `json:"tier"`
	jwt.StandardClaims
}

func getJwtSecret() []byte {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return []byte("dukaflow-dev-secret")
	}
	return []byte(secret)
}

func tokenLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 12
	}
	return time.Duration(hours) * time.Hour
}

// JwtGenerate mints a session token. Production tokens come from the auth
// provider; this is used by cmd/seed-demo and tests.
func JwtGenerate(sessionId string, userId int, retailerId string, tier string) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		UserId:     userId,
		RetailerId: retailerId,
		Tier:       tier,
		StandardClaims: jwt.StandardClaims{
			Id:        sessionId,
			ExpiresAt: now.Add(tokenLifespan()).Unix(),
			IssuedAt:  now.Unix(),
		},
	})
	return t.SignedString(getJwtSecret())
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return getJwtSecret(), nil
	})
}
