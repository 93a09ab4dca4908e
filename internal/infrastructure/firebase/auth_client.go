package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"
)

// AuthClient resolves a presented credential to a stable user identity. It is
// the only place the rest of the system touches Firebase Auth.
type AuthClient struct {
	client *auth.Client
	apiKey string
}

func NewAuthClient(client *auth.Client, apiKey string) *AuthClient {
	return &AuthClient{
		client: client,
		apiKey: apiKey,
	}
}

// VerifyToken validates an ID token and returns the user ID it is bound to.
// Callers doing connection handshakes must pass a context with a deadline.
func (f *AuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", err
	}

	return result.UID, nil
}

func (f *AuthClient) GenerateToken(ctx context.Context, uid string) (string, error) {
	token, err := f.client.CustomToken(ctx, uid)
	if err != nil {
		return "", err
	}

	return token, nil
}
