package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veil/pkg/platform/middleware/auth"
)

func TestMintedTokenValidates(t *testing.T) {
	out, err := mint(mintParams{
		Subject:  "viewer-7",
		Role:     "homeowner",
		Audience: "veil",
		TTL:      time.Minute,
		Key:      "test-key",
		Now:      time.Now(),
	})
	require.NoError(t, err)

	claims, err := auth.NewHMACValidator("test-key", "veil").ValidateToken(out.Token)
	require.NoError(t, err)
	assert.Equal(t, "viewer-7", claims.Subject)
	assert.Equal(t, "homeowner", claims.Role)

	_, err = auth.NewHMACValidator("other-key", "veil").ValidateToken(out.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestMintRejectsIncompleteParams(t *testing.T) {
	base := mintParams{Subject: "v", Role: "admin", TTL: time.Minute, Key: "k", Now: time.Now()}

	noKey := base
	noKey.Key = ""
	noRole := base
	noRole.Role = ""
	noTTL := base
	noTTL.TTL = 0

	for name, p := range map[string]mintParams{"key": noKey, "role": noRole, "ttl": noTTL} {
		t.Run(name, func(t *testing.T) {
			_, err := mint(p)
			assert.Error(t, err)
		})
	}
}
