// Package boundary implements the slice of the Boundary controller API the
// lab needs: scopes, auth methods, targets, and Vault-backed credential
// stores. There is no
// maintained Go SDK pinned for the lab's controller version, so this speaks
// the JSON API directly.
package boundary

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
	Authenticate(ctx context.Context, authMethodID, loginName, password string) error
	EnsureScope(ctx context.Context, parentID, name, description string) (string, bool, error)
	EnsureOIDCAuthMethod(ctx context.Context, scopeID, name string, spec OIDCSpec) (string, bool, error)
	EnsureTarget(ctx context.Context, scopeID string, target TargetSpec) (string, bool, error)
	EnsureVaultCredentialStore(ctx context.Context, scopeID, name, vaultAddr, token string) (string, bool, error)
	EnsureCredentialLibrary(ctx context.Context, storeID, name, vaultPath string) (string, bool, error)
	AttachCredentialSource(ctx context.Context, targetID, libraryID string) error
}

// TargetSpec describes a TCP target to provision.
type TargetSpec struct {
	Name        string
	Description string
	Address     string
	Port        int
}

// OIDCSpec describes an OIDC auth method delegating login to an external
// identity provider.
type OIDCSpec struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	APIURLPrefix string
}

// Client implements AdminAPI against a Boundary controller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// NewClient creates a Client for the controller at baseURL. The lab serves
// Boundary over a self-signed certificate, so insecure skips verification.
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

// Authenticate performs password authentication and holds the resulting
// session token for subsequent calls.
func (c *Client) Authenticate(ctx context.Context, authMethodID, loginName, password string) error {
	payload := map[string]interface{}{
		"attributes": map[string]string{
			"login_name": loginName,
			"password":   password,
		},
	}
	var resp struct {
		Attributes struct {
			Token string `json:"token"`
		} `json:"attributes"`
	}
	status, err := c.do(ctx, http.MethodPost, "/v1/auth-methods/"+authMethodID+":authenticate", payload, &resp)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("boundary authentication failed: status %d", status)
	}
	if resp.Attributes.Token == "" {
		return fmt.Errorf("boundary authentication returned an empty token")
	}
	c.token = resp.Attributes.Token
	return nil
}

// EnsureScope creates a scope under parentID, or finds the existing one by
// name. Returns the scope id and whether it was created.
func (c *Client) EnsureScope(ctx context.Context, parentID, name, description string) (string, bool, error) {
	if id, found, err := c.findByName(ctx, "/v1/scopes", "scope_id", parentID, name); err != nil {
		return "", false, err
	} else if found {
		return id, false, nil
	}

	return c.create(ctx, "/v1/scopes", map[string]interface{}{
		"scope_id":    parentID,
		"name":        name,
		"description": description,
	})
}

// EnsureOIDCAuthMethod creates an OIDC auth method in the scope, or finds the
// existing one by name. A newly created method starts inactive, so it is
// switched to active-public to appear on the login page.
func (c *Client) EnsureOIDCAuthMethod(ctx context.Context, scopeID, name string, spec OIDCSpec) (string, bool, error) {
	if id, found, err := c.findByName(ctx, "/v1/auth-methods", "scope_id", scopeID, name); err != nil {
		return "", false, err
	} else if found {
		return id, false, nil
	}

	var resp struct {
		ID      string `json:"id"`
		Version uint32 `json:"version"`
	}
	status, err := c.do(ctx, http.MethodPost, "/v1/auth-methods", map[string]interface{}{
		"scope_id":    scopeID,
		"name":        name,
		"description": "delegated login via " + spec.Issuer,
		"type":        "oidc",
		"attributes": map[string]interface{}{
			"issuer":             spec.Issuer,
			"client_id":          spec.ClientID,
			"client_secret":      spec.ClientSecret,
			"api_url_prefix":     spec.APIURLPrefix,
			"signing_algorithms": []string{"RS256"},
		},
	}, &resp)
	if err != nil {
		return "", false, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", false, fmt.Errorf("failed to create auth method %s: status %d", name, status)
	}
	if resp.ID == "" {
		return "", false, fmt.Errorf("create on /v1/auth-methods returned no id")
	}

	version := resp.Version
	if version == 0 {
		version = 1
	}
	status, err = c.do(ctx, http.MethodPost, "/v1/auth-methods/"+resp.ID+":change-state", map[string]interface{}{
		"version": version,
		"attributes": map[string]interface{}{
			"state": "active-public",
		},
	}, nil)
	if err != nil {
		return "", false, err
	}
	if status != http.StatusOK {
		return "", false, fmt.Errorf("failed to activate auth method %s: status %d", resp.ID, status)
	}
	return resp.ID, true, nil
}

// EnsureTarget creates a TCP target in the project scope, or finds the
// existing one by name.
func (c *Client) EnsureTarget(ctx context.Context, scopeID string, target TargetSpec) (string, bool, error) {
	if id, found, err := c.findByName(ctx, "/v1/targets", "scope_id", scopeID, target.Name); err != nil {
		return "", false, err
	} else if found {
		return id, false, nil
	}

	return c.create(ctx, "/v1/targets", map[string]interface{}{
		"scope_id":    scopeID,
		"name":        target.Name,
		"description": target.Description,
		"type":        "tcp",
		"address":     target.Address,
		"attributes": map[string]interface{}{
			"default_port": target.Port,
		},
	})
}

// EnsureVaultCredentialStore creates a Vault-backed credential store in the
// project scope, or finds the existing one by name.
func (c *Client) EnsureVaultCredentialStore(ctx context.Context, scopeID, name, vaultAddr, token string) (string, bool, error) {
	if id, found, err := c.findByName(ctx, "/v1/credential-stores", "scope_id", scopeID, name); err != nil {
		return "", false, err
	} else if found {
		return id, false, nil
	}

	return c.create(ctx, "/v1/credential-stores", map[string]interface{}{
		"scope_id": scopeID,
		"name":     name,
		"type":     "vault",
		"attributes": map[string]interface{}{
			"address": vaultAddr,
			"token":   token,
		},
	})
}

// EnsureCredentialLibrary creates a generic Vault credential library reading
// vaultPath, or finds the existing one by name.
func (c *Client) EnsureCredentialLibrary(ctx context.Context, storeID, name, vaultPath string) (string, bool, error) {
	if id, found, err := c.findByName(ctx, "/v1/credential-libraries", "credential_store_id", storeID, name); err != nil {
		return "", false, err
	} else if found {
		return id, false, nil
	}

	return c.create(ctx, "/v1/credential-libraries", map[string]interface{}{
		"credential_store_id": storeID,
		"name":                name,
		"type":                "vault-generic",
		"attributes": map[string]interface{}{
			"path": vaultPath,
		},
	})
}

// AttachCredentialSource brokers the credential library through the target.
// Already-attached sources are left alone.
func (c *Client) AttachCredentialSource(ctx context.Context, targetID, libraryID string) error {
	var target struct {
		Version                     uint32   `json:"version"`
		BrokeredCredentialSourceIDs []string `json:"brokered_credential_source_ids"`
	}
	status, err := c.do(ctx, http.MethodGet, "/v1/targets/"+targetID, nil, &target)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("failed to read target %s: status %d", targetID, status)
	}
	for _, attached := range target.BrokeredCredentialSourceIDs {
		if attached == libraryID {
			return nil
		}
	}

	payload := map[string]interface{}{
		"version":                        target.Version,
		"brokered_credential_source_ids": append(target.BrokeredCredentialSourceIDs, libraryID),
	}
	status, err = c.do(ctx, http.MethodPost, "/v1/targets/"+targetID+":add-credential-sources", payload, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("failed to attach credential source to %s: status %d", targetID, status)
	}
	return nil
}

// findByName lists a collection filtered by its parent and matches on the
// resource name. Boundary generates ids, so name is the only stable handle
// across runs.
func (c *Client) findByName(ctx context.Context, collection, parentParam, parentID, name string) (string, bool, error) {
	var resp struct {
		Items []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"items"`
	}
	path := collection + "?" + parentParam + "=" + url.QueryEscape(parentID)
	status, err := c.do(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		return "", false, err
	}
	if status != http.StatusOK {
		return "", false, fmt.Errorf("failed to list %s: status %d", collection, status)
	}
	for _, item := range resp.Items {
		if item.Name == name {
			return item.ID, true, nil
		}
	}
	return "", false, nil
}

func (c *Client) create(ctx context.Context, collection string, payload map[string]interface{}) (string, bool, error) {
	var resp struct {
		ID string `json:"id"`
	}
	status, err := c.do(ctx, http.MethodPost, collection, payload, &resp)
	if err != nil {
		return "", false, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", false, fmt.Errorf("failed to create %s resource: status %d", collection, status)
	}
	if resp.ID == "" {
		return "", false, fmt.Errorf("create on %s returned no id", collection)
	}
	return resp.ID, true, nil
}

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
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("boundary request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}
