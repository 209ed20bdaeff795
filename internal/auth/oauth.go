// Package auth holds the credentials plumbing: Microsoft sign-in through the
// OAuth2 device authorization grant, the on-disk token cache, and hashing of
// the web access token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/gosuda/vibetodo/internal/domain"
)

// MicrosoftScopes are requested on sign-in. offline_access yields a refresh
// token so later runs do not prompt again.
var MicrosoftScopes = []string{"Tasks.ReadWrite", "User.Read", "offline_access"} //nolint:gochecknoglobals // fixed scope set

// OAuthProvider holds the configuration for the Microsoft identity platform.
type OAuthProvider struct {
	Name          string
	ClientID      string
	Tenant        string
	AuthURL       string
	TokenURL      string
	DeviceAuthURL string
	Scopes        []string
}

// NewMicrosoftProvider returns a public-client configuration for the given
// app registration. An empty tenant means "common".
func NewMicrosoftProvider(clientID, tenant string) *OAuthProvider {
	if tenant == "" {
		tenant = "common"
	}
	ep := microsoft.AzureADEndpoint(tenant)
	if ep.DeviceAuthURL == "" {
		ep.DeviceAuthURL = "https://login.microsoftonline.com/" + tenant + "/oauth2/v2.0/devicecode"
	}

	return &OAuthProvider{
		Name:          "microsoft",
		ClientID:      clientID,
		Tenant:        tenant,
		AuthURL:       ep.AuthURL,
		TokenURL:      ep.TokenURL,
		DeviceAuthURL: ep.DeviceAuthURL,
		Scopes:        append([]string(nil), MicrosoftScopes...),
	}
}

// Config returns the oauth2 configuration for the provider's current fields.
func (p *OAuthProvider) Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID: p.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:       p.AuthURL,
			TokenURL:      p.TokenURL,
			DeviceAuthURL: p.DeviceAuthURL,
			// Public clients send the client id in the form body.
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: p.Scopes,
	}
}

// DevicePrompt is shown to the user while the device grant is pending.
type DevicePrompt struct {
	VerificationURI string
	UserCode        string
	ExpiresAt       time.Time
}

// DeviceLogin runs the device authorization grant: it requests a user code,
// hands it to prompt, polls until the user signs in, and saves the token.
func (p *OAuthProvider) DeviceLogin(ctx context.Context, store *FileTokenStore, prompt func(DevicePrompt)) (*oauth2.Token, error) {
	if p.ClientID == "" {
		return nil, fmt.Errorf("auth.DeviceLogin: client id is required: %w", domain.ErrConfiguration)
	}

	cfg := p.Config()
	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth.DeviceLogin: requesting device code: %w", err)
	}

	uri := da.VerificationURIComplete
	if uri == "" {
		uri = da.VerificationURI
	}
	if prompt != nil {
		prompt(DevicePrompt{VerificationURI: uri, UserCode: da.UserCode, ExpiresAt: da.Expiry})
	}

	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("auth.DeviceLogin: waiting for sign-in: %w", err)
	}

	if err := store.Save(tok); err != nil {
		return nil, fmt.Errorf("auth.DeviceLogin: %w", err)
	}

	log.Info().Str("provider", p.Name).Str("tenant", p.Tenant).Msg("signed in")

	return tok, nil
}

// TokenSource returns a source backed by the cached token that refreshes it
// when expired and writes refreshed tokens back to the store.
func (p *OAuthProvider) TokenSource(ctx context.Context, store *FileTokenStore) (oauth2.TokenSource, error) {
	tok, err := store.Load()
	if errors.Is(err, ErrNoToken) {
		return nil, fmt.Errorf("auth.TokenSource: not signed in to %s; run \"vibe login %s\": %w",
			p.Name, p.Name, domain.ErrBackendUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("auth.TokenSource: %w", err)
	}

	base := p.Config().TokenSource(ctx, tok)
	return oauth2.ReuseTokenSource(tok, &persistingSource{
		base:  base,
		store: store,
		last:  tok.AccessToken,
		hint:  "vibe login " + strings.ToLower(p.Name),
	}), nil
}
