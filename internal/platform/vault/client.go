// Package vault wraps the Vault HTTP API for lab initialization: seal
// handling, KV mounts, policies, and the periodic token Boundary uses for
// credential brokering.
package vault

import (
	"context"
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"
)

// InitResult carries the single-share unseal material produced by Init.
type InitResult struct {
	UnsealKey string `json:"unseal_key"`
	RootToken string `json:"root_token"`
}

// API is the surface the deployment core uses. Satisfied by *Client.
type API interface {
	Status(ctx context.Context) (initialized, sealed bool, err error)
	Init(ctx context.Context) (InitResult, error)
	Unseal(ctx context.Context, key string) error
	SetToken(token string)
	EnableKV(ctx context.Context, mount string) (bool, error)
	WriteSecret(ctx context.Context, mount, path string, data map[string]interface{}) error
	ReadSecret(ctx context.Context, mount, path string) (map[string]interface{}, error)
	WritePolicy(ctx context.Context, name, rules string) error
	CreatePeriodicToken(ctx context.Context, policies []string, period string) (string, error)
}

// Client implements API on the official Vault client.
type Client struct {
	client *vaultapi.Client
}

// NewClient creates a Client for the Vault at addr. The lab serves Vault over
// a self-signed certificate, so insecure skips chain verification.
func NewClient(addr string, insecure bool) (*Client, error) {
	config := vaultapi.DefaultConfig()
	config.Address = addr
	if insecure {
		if err := config.ConfigureTLS(&vaultapi.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("failed to configure vault TLS: %w", err)
		}
	}

	client, err := vaultapi.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	return &Client{client: client}, nil
}

// SetToken authenticates subsequent requests with the given token.
func (c *Client) SetToken(token string) {
	c.client.SetToken(token)
}

// Status reports the seal state. It works against an uninitialized Vault.
func (c *Client) Status(ctx context.Context) (bool, bool, error) {
	status, err := c.client.Sys().SealStatusWithContext(ctx)
	if err != nil {
		return false, false, fmt.Errorf("failed to read seal status: %w", err)
	}
	return status.Initialized, status.Sealed, nil
}

// Init initializes Vault with a single unseal share. The lab trades Shamir
// splitting for a credential store entry that can fully recover the server.
func (c *Client) Init(ctx context.Context) (InitResult, error) {
	resp, err := c.client.Sys().InitWithContext(ctx, &vaultapi.InitRequest{
		SecretShares:    1,
		SecretThreshold: 1,
	})
	if err != nil {
		return InitResult{}, fmt.Errorf("vault init failed: %w", err)
	}
	if len(resp.Keys) == 0 {
		return InitResult{}, fmt.Errorf("vault init returned no unseal keys")
	}
	return InitResult{UnsealKey: resp.Keys[0], RootToken: resp.RootToken}, nil
}

// Unseal submits the unseal key and verifies the server came up unsealed.
func (c *Client) Unseal(ctx context.Context, key string) error {
	status, err := c.client.Sys().UnsealWithContext(ctx, key)
	if err != nil {
		return fmt.Errorf("vault unseal failed: %w", err)
	}
	if status.Sealed {
		return fmt.Errorf("vault still sealed after unseal (progress %d/%d)", status.Progress, status.T)
	}
	return nil
}

// EnableKV mounts a KV v2 secrets engine at the given path. Returns false
// without error when the mount already exists.
func (c *Client) EnableKV(ctx context.Context, mount string) (bool, error) {
	mounts, err := c.client.Sys().ListMountsWithContext(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list vault mounts: %w", err)
	}
	if _, ok := mounts[mount+"/"]; ok {
		return false, nil
	}

	err = c.client.Sys().MountWithContext(ctx, mount, &vaultapi.MountInput{
		Type:    "kv",
		Options: map[string]string{"version": "2"},
	})
	if err != nil {
		return false, fmt.Errorf("failed to mount kv at %s: %w", mount, err)
	}
	return true, nil
}

// WriteSecret stores data at mount/path in a KV v2 engine.
func (c *Client) WriteSecret(ctx context.Context, mount, path string, data map[string]interface{}) error {
	if _, err := c.client.KVv2(mount).Put(ctx, path, data); err != nil {
		return fmt.Errorf("failed to write secret %s/%s: %w", mount, path, err)
	}
	return nil
}

// ReadSecret returns the data stored at mount/path in a KV v2 engine.
func (c *Client) ReadSecret(ctx context.Context, mount, path string) (map[string]interface{}, error) {
	secret, err := c.client.KVv2(mount).Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %s/%s: %w", mount, path, err)
	}
	return secret.Data, nil
}

// WritePolicy installs or replaces a named ACL policy.
func (c *Client) WritePolicy(ctx context.Context, name, rules string) error {
	if err := c.client.Sys().PutPolicyWithContext(ctx, name, rules); err != nil {
		return fmt.Errorf("failed to write policy %s: %w", name, err)
	}
	return nil
}

// CreatePeriodicToken creates an orphan periodic token bound to the given
// policies. Boundary holds one of these to broker credentials indefinitely.
func (c *Client) CreatePeriodicToken(ctx context.Context, policies []string, period string) (string, error) {
	secret, err := c.client.Auth().Token().CreateOrphanWithContext(ctx, &vaultapi.TokenCreateRequest{
		Policies:  policies,
		Period:    period,
		Renewable: boolPtr(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create periodic token: %w", err)
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return "", fmt.Errorf("token create returned no client token")
	}
	return secret.Auth.ClientToken, nil
}

func boolPtr(b bool) *bool { return &b }
