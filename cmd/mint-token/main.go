// Command mint-token prints an admin JWT signed with the configured JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"inkpost/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	subject := flag.String("sub", "admin", "subject claim")
	role := flag.String("role", "admin", "role claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime; 0 for a token without exp")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: go run ./cmd/mint-token [-sub admin] [-role admin] [-ttl 24h]")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  *subject,
		"role": *role,
		"iat":  now.Unix(),
	}
	if *ttl > 0 {
		claims["exp"] = now.Add(*ttl).Unix()
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
