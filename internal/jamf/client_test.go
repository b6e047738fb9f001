package jamf

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/macadmin-tools/jamfkit/internal/config"
	"github.com/macadmin-tools/jamfkit/internal/outcome"
	"github.com/macadmin-tools/jamfkit/internal/resource"
)

func newTestClient(ts *httptest.Server, auth TokenProvider) *Client {
	c, _ := NewClient(config.Config{URL: "https://unused.example.com", Username: "u", Password: "p"}, nil)
	c.baseURL = ts.URL
	c.httpClient = ts.Client()
	if auth != nil {
		c.auth = auth
	}
	return c
}

var testCred = resource.Credential{Token: "tok-123"}

func TestNewClient_BasicAuth(t *testing.T) {
	cfg := config.Config{
		URL:        "https://example.jamfcloud.com",
		AuthMethod: "basic",
		Username:   "api-user",
		Password:   "password123",
	}

	client, err := NewClient(cfg, nil)
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	if client.BaseURL() != "https://example.jamfcloud.com" {
		t.Errorf("baseURL = %q, want %q", client.BaseURL(), "https://example.jamfcloud.com")
	}
	if client.auth.Method() != "password" {
		t.Errorf("auth method = %q, want password", client.auth.Method())
	}
}

func TestNewClient_NormalizesURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.jamfcloud.com", "https://example.jamfcloud.com"},
		{"https://example.jamfcloud.com/", "https://example.jamfcloud.com"},
		{"  https://example.jamfcloud.com//  ", "https://example.jamfcloud.com"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			client, err := NewClient(config.Config{URL: tt.in, Username: "u", Password: "p"}, nil)
			if err != nil {
				t.Fatalf("NewClient() error: %v", err)
			}
			if client.BaseURL() != tt.want {
				t.Errorf("baseURL = %q, want %q", client.BaseURL(), tt.want)
			}
		})
	}
}

func TestNewClient_RejectHTTP(t *testing.T) {
	_, err := NewClient(config.Config{URL: "http://example.jamfcloud.com", Username: "u", Password: "p"}, nil)
	if err == nil {
		t.Error("NewClient() should reject HTTP URLs")
	}
}

func TestNewClient_EmptyURL(t *testing.T) {
	_, err := NewClient(config.Config{Username: "u", Password: "p"}, nil)
	if err == nil {
		t.Error("NewClient() should reject empty URL")
	}
}

func TestNewClient_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"basic missing password", config.Config{AuthMethod: "basic", Username: "u"}},
		{"basic missing both", config.Config{AuthMethod: "basic"}},
		{"oauth missing secret", config.Config{AuthMethod: "oauth", ClientID: "id"}},
		{"oauth missing id", config.Config{AuthMethod: "oauth", ClientSecret: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.URL = "https://example.jamfcloud.com"
			if _, err := NewClient(tt.cfg, nil); err == nil {
				t.Error("NewClient() should reject missing credentials")
			}
		})
	}
}

func TestNewClient_UnsupportedAuthMethod(t *testing.T) {
	_, err := NewClient(config.Config{URL: "https://example.jamfcloud.com", AuthMethod: "saml", Username: "u", Password: "p"}, nil)
	if err == nil {
		t.Error("NewClient() should reject unsupported auth methods")
	}
}

func TestNewClient_OAuthConfig(t *testing.T) {
	client, err := NewClient(config.Config{
		URL:          "https://example.jamfcloud.com",
		AuthMethod:   "oauth",
		ClientID:     "client123",
		ClientSecret: "secret456",
	}, nil)
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	if client.auth.Method() != "client_credentials" {
		t.Errorf("auth method = %q, want client_credentials", client.auth.Method())
	}
}

func TestPasswordGrant(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/auth/token" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "api-user" || pass != "secret" {
			t.Errorf("BasicAuth = (%q, %q, %v), want (api-user, secret, true)", user, pass, ok)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q, want application/json", r.Header.Get("Accept"))
		}
		w.Write([]byte(`{"token":"abc","expires":"2030-01-02T03:04:05.123Z"}`))
	}))
	defer ts.Close()

	c := newTestClient(ts, PasswordGrant{Username: "api-user", Password: "secret"})
	cred, err := c.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if cred.Token != "abc" {
		t.Errorf("Token = %q, want abc", cred.Token)
	}
	want := time.Date(2030, 1, 2, 3, 4, 5, 123000000, time.UTC)
	if !cred.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", cred.ExpiresAt, want)
	}
}

func TestPasswordGrant_ExpiryFromJWT(t *testing.T) {
	// header {"alg":"none"}, payload {"exp":1893456000}
	const token = "eyJhbGciOiJub25lIn0.eyJleHAiOjE4OTM0NTYwMDB9."
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	}))
	defer ts.Close()

	c := newTestClient(ts, PasswordGrant{Username: "u", Password: "p"})
	cred, err := c.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if cred.ExpiresAt.Unix() != 1893456000 {
		t.Errorf("ExpiresAt = %v, want unix 1893456000", cred.ExpiresAt)
	}
}

func TestPasswordGrant_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"httpStatus":401}`},
		{"not json", http.StatusOK, `<html>maintenance</html>`},
		{"empty token", http.StatusOK, `{"token":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			c := newTestClient(ts, PasswordGrant{Username: "u", Password: "p"})
			cred, err := c.Authenticate(context.Background())
			if !errors.Is(err, ErrAuth) {
				t.Fatalf("Authenticate() error = %v, want ErrAuth", err)
			}
			if cred.Token != "" {
				t.Errorf("failed auth returned token %q", cred.Token)
			}
		})
	}
}

func TestClientCredentials(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/oauth/token" {
			t.Errorf("path = %q, want /api/oauth/token", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("client_id") != "id-1" || r.PostForm.Get("client_secret") != "s3cret" {
			t.Errorf("client credentials not sent in form body: %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"oauth-tok","token_type":"Bearer","expires_in":1199}`))
	}))
	defer ts.Close()

	c := newTestClient(ts, ClientCredentials{ClientID: "id-1", ClientSecret: "s3cret"})
	before := time.Now()
	cred, err := c.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if cred.Token != "oauth-tok" {
		t.Errorf("Token = %q, want oauth-tok", cred.Token)
	}
	if cred.ExpiresAt.Before(before.Add(1100 * time.Second)) {
		t.Errorf("ExpiresAt = %v, want about 1199s after %v", cred.ExpiresAt, before)
	}
}

func TestClientCredentials_Rejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer ts.Close()

	c := newTestClient(ts, ClientCredentials{ClientID: "id", ClientSecret: "bad"})
	if _, err := c.Authenticate(context.Background()); !errors.Is(err, ErrAuth) {
		t.Fatalf("Authenticate() error = %v, want ErrAuth", err)
	}
}

var profilesEndpoint = resource.Endpoint{
	Collection: resource.Profile,
	ListPath:   "/JSSResource/osxconfigurationprofiles",
	ListKey:    []string{"os_x_configuration_profiles"},
	DetailPath: "/JSSResource/osxconfigurationprofiles/id/{id}/subset/general",
}

func TestListIDs(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q, want Bearer tok-123", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q, want application/json", got)
		}
		w.Write([]byte(`{"os_x_configuration_profiles":[{"id":7,"name":"Wi-Fi"},{"id":3,"name":"VPN"},{"id":12,"name":"Restrictions"}]}`))
	}))
	defer ts.Close()

	c := newTestClient(ts, nil)
	refs, err := c.ListIDs(context.Background(), profilesEndpoint, testCred)
	if err != nil {
		t.Fatalf("ListIDs() error: %v", err)
	}
	want := []int{7, 3, 12}
	if len(refs) != len(want) {
		t.Fatalf("ListIDs() returned %d refs, want %d", len(refs), len(want))
	}
	for i, id := range want {
		if refs[i].ID != id || refs[i].Collection != resource.Profile {
			t.Errorf("refs[%d] = %v, want profile/%d", i, refs[i], id)
		}
	}
}

func TestListIDs_AdvancedSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"advanced_computer_search":{"id":81,"name":"Labs","computers":[{"id":1},{"id":2}]}}`))
	}))
	defer ts.Close()

	ep := resource.Endpoint{
		Collection: resource.Computer,
		ListPath:   "/JSSResource/advancedcomputersearches/id/81",
		ListKey:    []string{"advanced_computer_search", "computers"},
		DetailPath: "/JSSResource/computers/id/{id}/subset/General",
	}
	refs, err := newTestClient(ts, nil).ListIDs(context.Background(), ep, testCred)
	if err != nil {
		t.Fatalf("ListIDs() error: %v", err)
	}
	if len(refs) != 2 || refs[0].ID != 1 || refs[1].ID != 2 {
		t.Errorf("refs = %v, want [computer/1 computer/2]", refs)
	}
}

func TestListIDs_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not json", http.StatusOK, `not json`},
		{"missing key", http.StatusOK, `{"policies":[]}`},
		{"not an array", http.StatusOK, `{"os_x_configuration_profiles":{"id":1}}`},
		{"element without id", http.StatusOK, `{"os_x_configuration_profiles":[{"name":"x"}]}`},
		{"server error", http.StatusInternalServerError, `oops`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			refs, err := newTestClient(ts, nil).ListIDs(context.Background(), profilesEndpoint, testCred)
			if !errors.Is(err, ErrEnumeration) {
				t.Fatalf("ListIDs() error = %v, want ErrEnumeration", err)
			}
			if refs != nil {
				t.Errorf("ListIDs() returned partial refs %v", refs)
			}
		})
	}
}

func TestListIDs_NullCollection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"os_x_configuration_profiles":null}`))
	}))
	defer ts.Close()

	refs, err := newTestClient(ts, nil).ListIDs(context.Background(), profilesEndpoint, testCred)
	if err != nil {
		t.Fatalf("ListIDs() error: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("refs = %v, want none", refs)
	}
}

func TestFetchDetail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/JSSResource/osxconfigurationprofiles/id/1/subset/general":
			w.Write([]byte(`{"os_x_configuration_profile":{"general":{"id":1,"site":{"id":1,"name":"HQ"}}}}`))
		case "/JSSResource/osxconfigurationprofiles/id/2/subset/general":
			w.Write([]byte(`<html>not json</html>`))
		case "/JSSResource/osxconfigurationprofiles/id/4/subset/general":
			w.Write([]byte(`{"os_x_configuration_profile":{}} <html>proxy error</html>`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	defer ts.Close()

	c := newTestClient(ts, nil)
	ctx := context.Background()

	detail, err := c.FetchDetail(ctx, profilesEndpoint, resource.Ref{ID: 1, Collection: resource.Profile}, testCred)
	if err != nil {
		t.Fatalf("FetchDetail(1) error: %v", err)
	}
	if site, _ := detail.Int("os_x_configuration_profile", "general", "site", "id"); site != 1 {
		t.Errorf("site id = %d, want 1", site)
	}

	tests := []struct {
		id     int
		reason outcome.Reason
	}{
		{2, outcome.DecodeFailed},
		{3, outcome.Unavailable},
		{4, outcome.DecodeFailed},
	}
	for _, tt := range tests {
		_, err := c.FetchDetail(ctx, profilesEndpoint, resource.Ref{ID: tt.id, Collection: resource.Profile}, testCred)
		var skip *outcome.Skip
		if !errors.As(err, &skip) {
			t.Fatalf("FetchDetail(%d) error = %v, want *outcome.Skip", tt.id, err)
		}
		if skip.Reason != tt.reason {
			t.Errorf("FetchDetail(%d) reason = %s, want %s", tt.id, skip.Reason, tt.reason)
		}
		if skip.Ref.ID != tt.id {
			t.Errorf("skip ref id = %d, want %d", skip.Ref.ID, tt.id)
		}
	}
}

func TestFetchDetail_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(ts, nil)
	ts.Close()

	_, err := c.FetchDetail(context.Background(), profilesEndpoint, resource.Ref{ID: 9, Collection: resource.Profile}, testCred)
	var skip *outcome.Skip
	if !errors.As(err, &skip) || skip.Reason != outcome.FetchFailed {
		t.Fatalf("FetchDetail() error = %v, want fetch_failed skip", err)
	}
}

func TestPostJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", r.Header.Get("Content-Type"))
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "x" {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	status, err := newTestClient(ts, nil).PostJSON(context.Background(), "/api/v1/thing", testCred, map[string]string{"name": "x"})
	if err != nil {
		t.Fatalf("PostJSON() error: %v", err)
	}
	if status != http.StatusCreated {
		t.Errorf("status = %d, want 201", status)
	}
}

func TestPostJSON_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(strings.Repeat("x", 1000)))
	}))
	defer ts.Close()

	status, err := newTestClient(ts, nil).PostJSON(context.Background(), "/api/v1/thing", testCred, nil)
	if err == nil {
		t.Fatal("PostJSON() should fail on 400")
	}
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if !strings.Contains(err.Error(), "(truncated)") {
		t.Errorf("error body should be truncated: %v", err)
	}
}

func TestCredentialExpired(t *testing.T) {
	now := time.Now()
	if (resource.Credential{Token: "t"}).Expired(now) {
		t.Error("credential without expiry should not be expired")
	}
	if !(resource.Credential{Token: "t", ExpiresAt: now.Add(-time.Second)}).Expired(now) {
		t.Error("credential in the past should be expired")
	}
}
