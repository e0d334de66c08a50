package credentials

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dStream/rpc/common"
)

// IProvider returns the current authentication token
type IProvider interface {
	GetToken(ctx context.Context) (string, error)
}

// ProviderFunc adapts an ordinary function to an IProvider
type ProviderFunc func(ctx context.Context) (string, error)

// GetToken calls f(ctx)
func (f ProviderFunc) GetToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// Static returns a provider that always returns token
func Static(token string) IProvider {
	return ProviderFunc(func(context.Context) (string, error) {
		return token, nil
	})
}

// None returns a provider that always fails, used when no credentials are configured
func None() IProvider {
	return ProviderFunc(func(context.Context) (string, error) {
		return "", fmt.Errorf("%w: no credential provider configured", common.ErrCredentialFailure)
	})
}

// Token calls p and wraps every failure (including a panic in p) with
// common.ErrCredentialFailure
func Token(ctx context.Context, p IProvider) (token string, err error) {
	if p == nil {
		return "", fmt.Errorf("%w: no credential provider configured", common.ErrCredentialFailure)
	}

	defer func() {
		if r := recover(); r != nil {
			token, err = "", fmt.Errorf("%w: provider panicked: %v", common.ErrCredentialFailure, r)
		}
	}()

	token, err = p.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrCredentialFailure, err)
	}
	return token, nil
}
