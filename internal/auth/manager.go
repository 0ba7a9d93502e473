// Package auth manages the pool of upstream credentials. It hands out usable
// access tokens, refreshes them through the Google OAuth endpoint when a
// refresh token is configured, and honors the disable side effect issued by
// the upstream client on permission failures.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/openbridge-ai/geminibridge/internal/config"
)

// OAuth client of the Gemini CLI; used when a credential entry does not
// supply its own client.
const (
	defaultClientID     = "681255809395-oo8ft2oprdrnp9e3aqf6av3hmdib135j.apps.googleusercontent.com"
	defaultClientSecret = "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"
	googleTokenURL      = "https://oauth2.googleapis.com/token"
)

// refreshSkew treats tokens expiring within this window as already expired.
const refreshSkew = 2 * time.Minute

// ErrNoCredential is returned when every configured credential is disabled
// or unusable.
var ErrNoCredential = errors.New("auth: no usable credential")

type credential struct {
	cfg      config.Credential
	token    *oauth2.Token
	disabled bool
}

// Manager is a disable-aware round-robin credential source. All methods are
// safe for concurrent use; selection and disabling are serialized internally.
type Manager struct {
	mu    sync.Mutex
	creds []*credential
	next  int
}

// NewManager builds a manager from the configured credential entries.
func NewManager(entries []config.Credential) *Manager {
	m := &Manager{}
	m.SetCredentials(entries)
	return m
}

// SetCredentials replaces the credential pool, used on config reload.
// Disabled state is not carried over; a reload is an operator action that
// re-arms every entry.
func (m *Manager) SetCredentials(entries []config.Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = make([]*credential, 0, len(entries))
	for _, entry := range entries {
		cred := &credential{cfg: entry}
		if entry.AccessToken != "" {
			cred.token = &oauth2.Token{AccessToken: entry.AccessToken}
		}
		m.creds = append(m.creds, cred)
	}
	m.next = 0
}

// Token returns the next usable access token in round-robin order,
// refreshing expired tokens when a refresh token is available. It may block
// on the refresh exchange.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < len(m.creds); i++ {
		cred := m.creds[(m.next+i)%len(m.creds)]
		if cred.disabled {
			continue
		}
		token, err := m.usableToken(ctx, cred)
		if err != nil {
			log.Warnf("auth: refresh failed for %s: %v", credLabel(cred), err)
			continue
		}
		m.next = (m.next + i + 1) % len(m.creds)
		return token, nil
	}
	return "", ErrNoCredential
}

// Disable marks the credential currently holding the given access token
// unusable for subsequent requests.
func (m *Manager) Disable(token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cred := range m.creds {
		if cred.token != nil && cred.token.AccessToken == token {
			cred.disabled = true
			log.Warnf("auth: credential %s disabled after permission failure", credLabel(cred))
			return
		}
	}
}

// usableToken returns a valid access token for cred, refreshing when needed.
// Static tokens without an expiry are trusted as-is.
func (m *Manager) usableToken(ctx context.Context, cred *credential) (string, error) {
	if cred.token != nil && cred.token.AccessToken != "" {
		if cred.token.Expiry.IsZero() || time.Until(cred.token.Expiry) > refreshSkew {
			return cred.token.AccessToken, nil
		}
	}
	if cred.cfg.RefreshToken == "" {
		if cred.token != nil && cred.token.AccessToken != "" {
			return cred.token.AccessToken, nil
		}
		return "", ErrNoCredential
	}

	conf := &oauth2.Config{
		ClientID:     cred.cfg.ClientID,
		ClientSecret: cred.cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: googleTokenURL},
	}
	if conf.ClientID == "" {
		conf.ClientID = defaultClientID
		conf.ClientSecret = defaultClientSecret
	}
	seed := &oauth2.Token{RefreshToken: cred.cfg.RefreshToken}
	if cred.token != nil {
		seed.AccessToken = cred.token.AccessToken
		seed.Expiry = cred.token.Expiry
	}
	refreshed, err := conf.TokenSource(ctx, seed).Token()
	if err != nil {
		return "", err
	}
	cred.token = refreshed
	log.Debugf("auth: refreshed access token for %s, expires %s", credLabel(cred), refreshed.Expiry.Format(time.RFC3339))
	return refreshed.AccessToken, nil
}

func credLabel(cred *credential) string {
	if cred.cfg.Label != "" {
		return cred.cfg.Label
	}
	return "credential"
}
