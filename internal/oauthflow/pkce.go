package oauthflow

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
)

const stateBytes = 32

// NewState returns an unguessable state parameter.
func NewState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewVerifier returns a PKCE code verifier (RFC 7636, 43 chars).
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// Challenge derives the S256 code challenge of verifier.
func Challenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}
