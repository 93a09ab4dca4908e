package firebase

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDevTokenRoundTrip(t *testing.T) {
	tokens := NewDevTokens("test-secret", 3600)

	minted, err := tokens.Mint("user-1")
	assert.NoError(t, err)

	uid, err := tokens.VerifyToken(context.Background(), minted)
	assert.NoError(t, err)
	assert.Equal(t, "user-1", uid)
}

func TestDevTokenWrongSecret(t *testing.T) {
	minted, err := NewDevTokens("secret-a", 3600).Mint("user-1")
	assert.NoError(t, err)

	_, err = NewDevTokens("secret-b", 3600).VerifyToken(context.Background(), minted)
	assert.Error(t, err)
}

func TestDevTokenExpired(t *testing.T) {
	tokens := NewDevTokens("test-secret", -60)

	minted, err := tokens.Mint("user-1")
	assert.NoError(t, err)

	_, err = tokens.VerifyToken(context.Background(), minted)
	assert.Error(t, err)
}

type failingVerifier struct{}

func (failingVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	return "", fmt.Errorf("not mine")
}

func TestChainVerifierFallsThrough(t *testing.T) {
	tokens := NewDevTokens("test-secret", 3600)
	minted, err := tokens.Mint("user-1")
	assert.NoError(t, err)

	chain := ChainVerifier{failingVerifier{}, tokens}

	uid, err := chain.VerifyToken(context.Background(), minted)
	assert.NoError(t, err)
	assert.Equal(t, "user-1", uid)

	_, err = chain.VerifyToken(context.Background(), "garbage")
	assert.Error(t, err)
}
