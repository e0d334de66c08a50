package send

import (
	"context"
	"errors"
	"testing"

	"github.com/ValentinKolb/dStream/lib/credentials"
)

func TestDialHeader(t *testing.T) {
	tests := []struct {
		name     string
		provider credentials.IProvider
		want     string
	}{
		{"static token", credentials.Static("secret"), "Bearer secret"},
		{"no credentials", credentials.None(), ""},
		{"failing provider", credentials.ProviderFunc(func(context.Context) (string, error) {
			return "", errors.New("expired")
		}), ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := dialHeader(context.Background(), tc.provider).Get("Authorization")
			if got != tc.want {
				t.Errorf("Authorization = %q, want %q", got, tc.want)
			}
		})
	}
}
