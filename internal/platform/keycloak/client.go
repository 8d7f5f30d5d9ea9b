// Package keycloak implements the small slice of the Keycloak admin REST API
// the lab needs: realm, OIDC client, and user provisioning. Keycloak has no
// supported Go client, so this speaks the admin endpoints directly.
package keycloak

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AdminAPI is the surface the deployment core uses. Satisfied by *Client.
type AdminAPI interface {
	Login(ctx context.Context, username, password string) error
	EnsureRealm(ctx context.Context, realm string) (bool, error)
	EnsureClient(ctx context.Context, realm string, client ClientSpec) (string, bool, error)
	ClientSecret(ctx context.Context, realm, clientID string) (string, error)
	EnsureUser(ctx context.Context, realm string, user UserSpec) (bool, error)
}

// ClientSpec describes an OIDC client to provision.
type ClientSpec struct {
	ClientID     string
	Name         string
	RedirectURIs []string
	WebOrigins   []string
}

// UserSpec describes a realm user to provision.
type UserSpec struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// Client implements AdminAPI against a Keycloak server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// NewClient creates a Client for the Keycloak at baseURL. The lab serves
// Keycloak over a self-signed certificate, so insecure skips verification.
func NewClient(baseURL string, insecure bool) *Client {
	transport := http.DefaultTransport
	if insecure {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}

// Login authenticates against the master realm with the admin-cli client and
// holds the access token for subsequent admin calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", "admin-cli")
	form.Set("username", username)
	form.Set("password", password)

	endpoint := c.baseURL + "/realms/master/protocol/openid-connect/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("keycloak login failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("keycloak login failed: %s", readError(resp))
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return fmt.Errorf("keycloak login returned an empty access token")
	}
	c.token = body.AccessToken
	return nil
}

// EnsureRealm creates the realm if absent. Returns false when it already
// exists.
func (c *Client) EnsureRealm(ctx context.Context, realm string) (bool, error) {
	status, err := c.do(ctx, http.MethodGet, "/admin/realms/"+realm, nil, nil)
	if err != nil {
		return false, err
	}
	if status == http.StatusOK {
		return false, nil
	}
	if status != http.StatusNotFound {
		return false, fmt.Errorf("unexpected status %d checking realm %s", status, realm)
	}

	payload := map[string]interface{}{
		"realm":   realm,
		"enabled": true,
	}
	status, err = c.do(ctx, http.MethodPost, "/admin/realms", payload, nil)
	if err != nil {
		return false, err
	}
	if status != http.StatusCreated {
		return false, fmt.Errorf("failed to create realm %s: status %d", realm, status)
	}
	return true, nil
}

// EnsureClient creates an OIDC client in the realm, or finds the existing one
// by clientId. Returns the internal client id and whether it was created.
func (c *Client) EnsureClient(ctx context.Context, realm string, spec ClientSpec) (string, bool, error) {
	if id, found, err := c.findClient(ctx, realm, spec.ClientID); err != nil {
		return "", false, err
	} else if found {
		return id, false, nil
	}

	payload := map[string]interface{}{
		"clientId":                  spec.ClientID,
		"name":                      spec.Name,
		"enabled":                   true,
		"protocol":                  "openid-connect",
		"publicClient":              false,
		"standardFlowEnabled":       true,
		"directAccessGrantsEnabled": true,
		"redirectUris":              spec.RedirectURIs,
		"webOrigins":                spec.WebOrigins,
	}
	status, err := c.do(ctx, http.MethodPost, "/admin/realms/"+realm+"/clients", payload, nil)
	if err != nil {
		return "", false, err
	}
	// 409 means another run created it between our lookup and the create.
	if status != http.StatusCreated && status != http.StatusConflict {
		return "", false, fmt.Errorf("failed to create client %s: status %d", spec.ClientID, status)
	}

	id, found, err := c.findClient(ctx, realm, spec.ClientID)
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, fmt.Errorf("client %s not found after create", spec.ClientID)
	}
	return id, status == http.StatusCreated, nil
}

// ClientSecret returns the confidential client secret for the internal id.
func (c *Client) ClientSecret(ctx context.Context, realm, id string) (string, error) {
	var body struct {
		Value string `json:"value"`
	}
	status, err := c.do(ctx, http.MethodGet, "/admin/realms/"+realm+"/clients/"+id+"/client-secret", nil, &body)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("failed to read client secret: status %d", status)
	}
	if body.Value == "" {
		return "", fmt.Errorf("client %s has no secret", id)
	}
	return body.Value, nil
}

// EnsureUser creates the user with a non-temporary password if absent.
// Returns false when a user with the same username already exists.
func (c *Client) EnsureUser(ctx context.Context, realm string, user UserSpec) (bool, error) {
	var existing []struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	path := "/admin/realms/" + realm + "/users?exact=true&username=" + url.QueryEscape(user.Username)
	status, err := c.do(ctx, http.MethodGet, path, nil, &existing)
	if err != nil {
		return false, err
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("failed to look up user %s: status %d", user.Username, status)
	}
	for _, u := range existing {
		if u.Username == user.Username {
			return false, nil
		}
	}

	payload := map[string]interface{}{
		"username":      user.Username,
		"email":         user.Email,
		"firstName":     user.FirstName,
		"lastName":      user.LastName,
		"enabled":       true,
		"emailVerified": true,
		"credentials": []map[string]interface{}{{
			"type":      "password",
			"value":     user.Password,
			"temporary": false,
		}},
	}
	status, err = c.do(ctx, http.MethodPost, "/admin/realms/"+realm+"/users", payload, nil)
	if err != nil {
		return false, err
	}
	if status == http.StatusConflict {
		return false, nil
	}
	if status != http.StatusCreated {
		return false, fmt.Errorf("failed to create user %s: status %d", user.Username, status)
	}
	return true, nil
}

func (c *Client) findClient(ctx context.Context, realm, clientID string) (string, bool, error) {
	var clients []struct {
		ID       string `json:"id"`
		ClientID string `json:"clientId"`
	}
	path := "/admin/realms/" + realm + "/clients?clientId=" + url.QueryEscape(clientID)
	status, err := c.do(ctx, http.MethodGet, path, nil, &clients)
	if err != nil {
		return "", false, err
	}
	if status != http.StatusOK {
		return "", false, fmt.Errorf("failed to list clients: status %d", status)
	}
	for _, candidate := range clients {
		if candidate.ClientID == clientID {
			return candidate.ID, true, nil
		}
	}
	return "", false, nil
}

// do issues an authenticated request and decodes a JSON body into out when
// the response is 2xx and out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) (int, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("keycloak request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

func readError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, msg)
}
