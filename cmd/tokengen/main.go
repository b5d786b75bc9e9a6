// Package main mints viewer tokens for calling a veil server that has
// JWT_SIGNING_KEY set. Tokens are HS256 and carry the viewer id as `sub` and
// the trust tier as `role`.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"veil/pkg/platform/middleware/auth"
)

const (
	defaultIssuer   = "veil-tokengen"
	defaultTokenTTL = 15 * time.Minute
)

type tokenOutput struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Claims    auth.ViewerClaims `json:"claims"`
	Usage     string            `json:"usage"`
}

type mintParams struct {
	Subject  string
	Role     string
	Audience string
	TTL      time.Duration
	Key      string
	Now      time.Time
}

func main() {
	sub := flag.String("sub", "", "Viewer id (token subject). Generated if empty.")
	role := flag.String("role", "", "Viewer role, e.g. admin or homeowner (required)")
	ttl := flag.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	key := flag.String("key", os.Getenv("JWT_SIGNING_KEY"), "HMAC signing key (defaults to $JWT_SIGNING_KEY)")
	aud := flag.String("aud", os.Getenv("JWT_AUDIENCE"), "Token audience (defaults to $JWT_AUDIENCE)")
	asJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	subject := *sub
	if subject == "" {
		subject = uuid.NewString()
	}

	out, err := mint(mintParams{
		Subject:  subject,
		Role:     *role,
		Audience: *aud,
		TTL:      *ttl,
		Key:      *key,
		Now:      time.Now(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Println(out.Token)
}

func mint(p mintParams) (*tokenOutput, error) {
	if p.Key == "" {
		return nil, errors.New("signing key is required (-key or JWT_SIGNING_KEY)")
	}
	if p.Role == "" {
		return nil, errors.New("-role is required")
	}
	if p.TTL <= 0 {
		return nil, errors.New("-ttl must be positive")
	}

	expires := p.Now.Add(p.TTL).UTC().Truncate(time.Second)
	claims := auth.ViewerClaims{
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			Issuer:    defaultIssuer,
			IssuedAt:  jwt.NewNumericDate(p.Now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}
	if p.Audience != "" {
		claims.Audience = jwt.ClaimStrings{p.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(p.Key))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &tokenOutput{
		Token:     signed,
		ExpiresAt: expires,
		Claims:    claims,
		Usage:     "Authorization: Bearer " + signed,
	}, nil
}
