package oauthflow

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallenge_S256(t *testing.T) {
	// RFC 7636 appendix B.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", Challenge(verifier))

	sum := sha256.Sum256([]byte(verifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), Challenge(verifier))
}

func TestNewVerifierAndState(t *testing.T) {
	v1, v2 := NewVerifier(), NewVerifier()
	assert.GreaterOrEqual(t, len(v1), 43)
	assert.LessOrEqual(t, len(v1), 128)
	assert.NotEqual(t, v1, v2)

	s1, err := NewState()
	require.NoError(t, err)
	s2, err := NewState()
	require.NoError(t, err)
	assert.Len(t, s1, 43)
	assert.NotEqual(t, s1, s2)
}
