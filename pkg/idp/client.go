package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oscroos/bjugstad-utleie-webapp/internal/apperr"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/reconcile"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/config"
	"github.com/oscroos/bjugstad-utleie-webapp/prometheus"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Client talks to the external identity provider: it builds authorization
// URLs, exchanges authorization codes for tokens, and fetches the userinfo
// document that carries the verified phone number.
type Client struct {
	Provider    string
	UserinfoURL string
	HTTPClient  *http.Client
	Logger      *zap.Logger

	oauth *oauth2.Config
}

// userinfo is the OIDC userinfo document shape the provider returns.
// EmailVerified is a pointer: providers that never send the flag still get
// their asserted email honored.
type userinfo struct {
	Sub           string `json:"sub"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	PhoneNumber   string `json:"phone_number"`
	Address       struct {
		StreetAddress string `json:"street_address"`
		PostalCode    string `json:"postal_code"`
		Region        string `json:"region"`
	} `json:"address"`
}

// NewClient creates an identity provider client from configuration. Missing
// credentials or URLs are an operator error and fail startup.
func NewClient(cfg *config.IDPConfig, logger *zap.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.AuthURL == "" ||
		cfg.TokenURL == "" || cfg.UserinfoURL == "" || cfg.RedirectURL == "" {
		return nil, apperr.Configuration("identity provider is not fully configured")
	}

	return &Client{
		Provider:    cfg.Provider,
		UserinfoURL: cfg.UserinfoURL,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		Logger:      logger,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
	}, nil
}

// AuthCodeURL returns the provider authorization URL carrying the state nonce.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange swaps an authorization code for tokens and fetches the userinfo
// document, mapping it to the profile the reconciler consumes.
func (c *Client) Exchange(ctx context.Context, code string) (reconcile.Profile, error) {
	// Route the exchange through our HTTP client so the timeout applies
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)

	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		c.Logger.Error("Token exchange failed", zap.Error(err))
		prometheus.RecordUpstreamRequest("idp", "error")
		return reconcile.Profile{}, apperr.UpstreamUnavailable("identity provider token exchange failed", err)
	}

	ui, err := c.fetchUserinfo(ctx, token.AccessToken)
	if err != nil {
		prometheus.RecordUpstreamRequest("idp", "error")
		return reconcile.Profile{}, err
	}
	prometheus.RecordUpstreamRequest("idp", "ok")

	// Unverified email is treated as absent so it never drives account matching
	email := ui.Email
	if ui.EmailVerified != nil && !*ui.EmailVerified {
		email = ""
	}

	profile := reconcile.Profile{
		Provider:          c.Provider,
		ProviderAccountID: ui.Sub,
		PhoneNumber:       ui.PhoneNumber,
		Email:             email,
		Name:              ui.Name,
		Address: reconcile.Address{
			Street:     ui.Address.StreetAddress,
			PostalCode: ui.Address.PostalCode,
			Region:     ui.Address.Region,
		},
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Scope:        strings.Join(c.oauth.Scopes, " "),
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		profile.ExpiresAt = &expiry
	}

	c.Logger.Info("Identity provider profile received",
		zap.String("provider", c.Provider),
		zap.Bool("has_phone", ui.PhoneNumber != ""),
		zap.Bool("has_email", email != ""))

	return profile, nil
}

// fetchUserinfo retrieves the userinfo document with the bearer token
func (c *Client) fetchUserinfo(ctx context.Context, accessToken string) (*userinfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UserinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.Error("Userinfo request failed", zap.Error(err))
		return nil, apperr.UpstreamUnavailable("identity provider userinfo request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.Logger.Error("Failed to read userinfo response", zap.Error(err))
		return nil, apperr.UpstreamUnavailable("identity provider userinfo read failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.Logger.Error("Userinfo request returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(body)))
		return nil, apperr.UpstreamUnavailable(
			fmt.Sprintf("identity provider userinfo returned %d", resp.StatusCode), nil)
	}

	var ui userinfo
	if err := json.Unmarshal(body, &ui); err != nil {
		c.Logger.Error("Failed to parse userinfo response", zap.Error(err))
		return nil, apperr.UpstreamUnavailable("identity provider userinfo parse failed", err)
	}

	return &ui, nil
}
