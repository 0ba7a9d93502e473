package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/openbridge-ai/geminibridge/internal/config"
)

func TestTokenRoundRobin(t *testing.T) {
	m := NewManager([]config.Credential{
		{Label: "a", AccessToken: "token-a"},
		{Label: "b", AccessToken: "token-b"},
	})
	ctx := context.Background()

	seen := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		token, err := m.Token(ctx)
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		seen = append(seen, token)
	}
	want := []string{"token-a", "token-b", "token-a", "token-b"}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("rotation = %v, want %v", seen, want)
		}
	}
}

func TestDisableRemovesCredential(t *testing.T) {
	m := NewManager([]config.Credential{
		{Label: "a", AccessToken: "token-a"},
		{Label: "b", AccessToken: "token-b"},
	})
	ctx := context.Background()

	m.Disable("token-a")
	for i := 0; i < 3; i++ {
		token, err := m.Token(ctx)
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if token == "token-a" {
			t.Fatal("disabled credential was handed out again")
		}
	}

	m.Disable("token-b")
	if _, err := m.Token(ctx); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("err = %v, want ErrNoCredential", err)
	}
}

func TestSetCredentialsRearmsPool(t *testing.T) {
	m := NewManager([]config.Credential{{AccessToken: "old"}})
	m.Disable("old")
	m.SetCredentials([]config.Credential{{AccessToken: "new"}})

	token, err := m.Token(context.Background())
	if err != nil || token != "new" {
		t.Fatalf("token = %q, err = %v", token, err)
	}
}

func TestTokenEmptyPool(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Token(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("err = %v, want ErrNoCredential", err)
	}
}
