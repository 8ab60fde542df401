package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", 10*time.Minute)

	token, expiresAt, err := signer.Generate("pub-1", "publications/pub-1/paper.pdf")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	recordID, relPath, parsedExp, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "pub-1", recordID)
	assert.Equal(t, "publications/pub-1/paper.pdf", relPath)
	assert.Equal(t, expiresAt.Unix(), parsedExp.Unix())
}

func TestSignedURLExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Nanosecond)

	token, _, err := signer.Generate("pub-1", "publications/pub-1/paper.pdf")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")

	// Cleanup paths still parse expired tokens.
	recordID, _, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "pub-1", recordID)
}

func TestSignedURLTamperedSignature(t *testing.T) {
	signer := NewSignedURLSigner("secret", 10*time.Minute)
	token, _, err := signer.Generate("pub-1", "publications/pub-1/paper.pdf")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 4)
	parts[0] = "other-record"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	assert.Error(t, err)

	_, _, _, err = signer.Parse("not-a-token", false)
	assert.Error(t, err)
}

func TestSignedURLWrongSecret(t *testing.T) {
	token, _, err := NewSignedURLSigner("secret", 10*time.Minute).Generate("pub-1", "a/b.pdf")
	require.NoError(t, err)

	_, _, _, err = NewSignedURLSigner("other", 10*time.Minute).Parse(token, false)
	assert.Error(t, err)
}

func TestSignedURLRequiresInputs(t *testing.T) {
	signer := NewSignedURLSigner("secret", 10*time.Minute)
	_, _, err := signer.Generate("", "a/b.pdf")
	assert.Error(t, err)
	_, _, err = signer.Generate("pub-1", "")
	assert.Error(t, err)
	_, _, err = NewSignedURLSigner("", 10*time.Minute).Generate("pub-1", "a/b.pdf")
	assert.Error(t, err)
}
