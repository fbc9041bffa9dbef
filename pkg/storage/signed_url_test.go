package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("export-1", "grades/class-1-term-1.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	parsed, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "export-1", parsed.JobID)
	require.Equal(t, "grades/class-1-term-1.csv", parsed.Path)
	require.True(t, expiresAt.Equal(parsed.ExpiresAt))
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Millisecond*10)
	token, _, err := signer.Generate("export-1", "grades/class-1-term-1.csv")
	require.NoError(t, err)
	time.Sleep(time.Second + time.Millisecond*20)

	_, err = signer.Parse(token, false)
	require.ErrorIs(t, err, ErrTokenExpired)

	parsed, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "export-1", parsed.JobID)
	require.Equal(t, "grades/class-1-term-1.csv", parsed.Path)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("export-1", "grades/class-1-term-1.csv")
	require.NoError(t, err)

	other := NewSignedURLSigner("another-secret", time.Hour)
	_, err = other.Parse(token, false)
	require.ErrorIs(t, err, ErrInvalidToken)

	swapped := strings.Replace(token, "export-1", "export-2", 1)
	_, err = signer.Parse(swapped, false)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Parse("not-a-token", false)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = signer.Generate("", "grades/x.csv")
	require.Error(t, err)
	_, _, err = NewSignedURLSigner("", time.Hour).Generate("export-1", "grades/x.csv")
	require.Error(t, err)
}
