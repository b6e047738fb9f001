package jamf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/macadmin-tools/jamfkit/internal/resource"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	passwordTokenPath = "/api/v1/auth/token"
	oauthTokenPath    = "/api/oauth/token"
)

// TokenProvider obtains a bearer credential from a Jamf Pro server.
type TokenProvider interface {
	// Token requests a new credential. It never retries.
	Token(ctx context.Context, hc *http.Client, baseURL string) (resource.Credential, error)
	// Method names the grant for logging.
	Method() string
}

// PasswordGrant exchanges an API user's username and password, sent as HTTP
// basic auth, for a bearer token.
type PasswordGrant struct {
	Username string
	Password string
}

// Method implements TokenProvider.
func (PasswordGrant) Method() string { return "password" }

// passwordTokenResponse is the body returned by /api/v1/auth/token.
type passwordTokenResponse struct {
	Token   string `json:"token"`
	Expires string `json:"expires"`
}

// Token implements TokenProvider.
func (g PasswordGrant) Token(ctx context.Context, hc *http.Client, baseURL string) (resource.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+passwordTokenPath, nil)
	if err != nil {
		return resource.Credential{}, fmt.Errorf("creating token request: %w", err)
	}
	req.SetBasicAuth(g.Username, g.Password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "jamfkit/"+version)

	resp, err := hc.Do(req)
	if err != nil {
		return resource.Credential{}, fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		body, _ := readLimitedBody(resp.Body)
		return resource.Credential{}, fmt.Errorf("token request failed (status %d): %s", resp.StatusCode, sanitizeErrorBody(body))
	}

	var tr passwordTokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(&tr); err != nil {
		return resource.Credential{}, fmt.Errorf("decoding token response: %w", err)
	}
	if tr.Token == "" {
		return resource.Credential{}, errors.New("token response has no token")
	}

	cred := resource.Credential{Token: tr.Token}
	if t, err := time.Parse(time.RFC3339, tr.Expires); err == nil {
		cred.ExpiresAt = t
	} else {
		cred.ExpiresAt = jwtExpiry(tr.Token)
	}
	return cred, nil
}

// jwtExpiry reads the exp claim of a JWT without verifying its signature.
// Returns the zero time if the token is not a JWT or has no exp claim.
func jwtExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// ClientCredentials uses an API client's ID and secret, sent form-encoded,
// to obtain an access token.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

// Method implements TokenProvider.
func (ClientCredentials) Method() string { return "client_credentials" }

// Token implements TokenProvider.
func (g ClientCredentials) Token(ctx context.Context, hc *http.Client, baseURL string) (resource.Credential, error) {
	cc := clientcredentials.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		TokenURL:     baseURL + oauthTokenPath,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, hc))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return resource.Credential{}, fmt.Errorf("OAuth token request failed (status %d): %s", re.Response.StatusCode, sanitizeErrorBody(re.Body))
		}
		return resource.Credential{}, fmt.Errorf("requesting OAuth token: %w", err)
	}
	if tok.AccessToken == "" {
		return resource.Credential{}, errors.New("OAuth token response has no access_token")
	}
	return resource.Credential{Token: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
}
