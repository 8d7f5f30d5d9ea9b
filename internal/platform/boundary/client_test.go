package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resource struct {
	ID      string                 `json:"id"`
	Name    string                 `json:"name"`
	Version uint32                 `json:"version"`
	Parent  string                 `json:"-"`
	Payload map[string]interface{} `json:"-"`
}

// fakeBoundary is an in-memory controller covering the endpoints Client uses.
type fakeBoundary struct {
	t           *testing.T
	collections map[string][]*resource // "/v1/scopes" etc.
	attached    map[string][]string    // target id -> credential source ids
	states      map[string]string      // auth method id -> state
	nextID      int
}

func newFakeBoundary(t *testing.T) (*fakeBoundary, *Client) {
	t.Helper()
	fake := &fakeBoundary{
		t:           t,
		collections: map[string][]*resource{},
		attached:    map[string][]string{},
		states:      map[string]string{},
	}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return fake, NewClient(server.URL, false)
}

func (f *fakeBoundary) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, ":authenticate"):
		var req struct {
			Attributes map[string]string `json:"attributes"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		if req.Attributes["password"] != "admin-password" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.writeJSON(w, map[string]interface{}{
			"attributes": map[string]string{"token": "at_fake"},
		})

	case strings.HasSuffix(path, ":change-state"):
		f.requireAuth(w, r)
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/v1/auth-methods/"), ":change-state")
		var req struct {
			Version    uint32            `json:"version"`
			Attributes map[string]string `json:"attributes"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		require.NotZero(f.t, req.Version, "a state change must carry the resource version")
		f.states[id] = req.Attributes["state"]
		f.writeJSON(w, map[string]string{"id": id})

	case strings.HasSuffix(path, ":add-credential-sources"):
		f.requireAuth(w, r)
		targetID := strings.TrimSuffix(strings.TrimPrefix(path, "/v1/targets/"), ":add-credential-sources")
		var req struct {
			Sources []string `json:"brokered_credential_source_ids"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.attached[targetID] = req.Sources
		f.writeJSON(w, map[string]string{"id": targetID})

	case strings.HasPrefix(path, "/v1/targets/") && r.Method == http.MethodGet:
		f.requireAuth(w, r)
		id := strings.TrimPrefix(path, "/v1/targets/")
		f.writeJSON(w, map[string]interface{}{
			"id":                             id,
			"version":                        2,
			"brokered_credential_source_ids": f.attached[id],
		})

	case r.Method == http.MethodGet:
		f.requireAuth(w, r)
		parent := r.URL.Query().Get("scope_id") + r.URL.Query().Get("credential_store_id")
		var items []*resource
		for _, item := range f.collections[path] {
			if item.Parent == parent {
				items = append(items, item)
			}
		}
		f.writeJSON(w, map[string]interface{}{"items": items})

	case r.Method == http.MethodPost:
		f.requireAuth(w, r)
		var payload map[string]interface{}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&payload))
		parent, _ := payload["scope_id"].(string)
		if parent == "" {
			parent, _ = payload["credential_store_id"].(string)
		}
		f.nextID++
		item := &resource{
			ID:      fmt.Sprintf("id_%d", f.nextID),
			Name:    payload["name"].(string),
			Version: 1,
			Parent:  parent,
			Payload: payload,
		}
		f.collections[path] = append(f.collections[path], item)
		f.writeJSON(w, item)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeBoundary) requireAuth(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, "Bearer at_fake", r.Header.Get("Authorization"))
}

func (f *fakeBoundary) writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(f.t, json.NewEncoder(w).Encode(body))
}

func authenticate(t *testing.T, client *Client) {
	t.Helper()
	require.NoError(t, client.Authenticate(context.Background(), "ampw_1234567890", "admin", "admin-password"))
}

func TestAuthenticate_BadPassword(t *testing.T) {
	t.Parallel()
	_, client := newFakeBoundary(t)

	err := client.Authenticate(context.Background(), "ampw_1234567890", "admin", "wrong")
	require.Error(t, err)
}

func TestEnsureScope(t *testing.T) {
	t.Parallel()
	_, client := newFakeBoundary(t)
	authenticate(t, client)
	ctx := context.Background()

	orgID, created, err := client.EnsureScope(ctx, "global", "DevOps", "lab org")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, orgID)

	again, created, err := client.EnsureScope(ctx, "global", "DevOps", "lab org")
	require.NoError(t, err)
	assert.False(t, created, "an existing scope must be found by name")
	assert.Equal(t, orgID, again)

	projectID, created, err := client.EnsureScope(ctx, orgID, "Agent-Sandbox", "sandbox project")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, orgID, projectID)
}

func TestEnsureOIDCAuthMethod(t *testing.T) {
	t.Parallel()
	fake, client := newFakeBoundary(t)
	authenticate(t, client)
	ctx := context.Background()

	spec := OIDCSpec{
		Issuer:       "https://keycloak.hashicorp.lab/realms/hashicorp",
		ClientID:     "boundary",
		ClientSecret: "oidc-secret",
		APIURLPrefix: "https://boundary.hashicorp.lab",
	}

	id, created, err := client.EnsureOIDCAuthMethod(ctx, "o_devops", "keycloak", spec)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)

	stored := fake.collections["/v1/auth-methods"][0]
	assert.Equal(t, "oidc", stored.Payload["type"])
	attrs := stored.Payload["attributes"].(map[string]interface{})
	assert.Equal(t, spec.Issuer, attrs["issuer"])
	assert.Equal(t, "oidc-secret", attrs["client_secret"])
	assert.Equal(t, "active-public", fake.states[id], "a new auth method must be activated for the login page")

	again, created, err := client.EnsureOIDCAuthMethod(ctx, "o_devops", "keycloak", spec)
	require.NoError(t, err)
	assert.False(t, created, "an existing auth method must be found by name")
	assert.Equal(t, id, again)
	assert.Len(t, fake.collections["/v1/auth-methods"], 1)
}

func TestEnsureTarget(t *testing.T) {
	t.Parallel()
	fake, client := newFakeBoundary(t)
	authenticate(t, client)
	ctx := context.Background()

	spec := TargetSpec{
		Name:    "claude-ssh",
		Address: "claude-ssh.sandbox.svc.cluster.local",
		Port:    22,
	}

	id, created, err := client.EnsureTarget(ctx, "p_sandbox", spec)
	require.NoError(t, err)
	assert.True(t, created)

	stored := fake.collections["/v1/targets"][0]
	assert.Equal(t, "tcp", stored.Payload["type"])
	attrs := stored.Payload["attributes"].(map[string]interface{})
	assert.EqualValues(t, 22, attrs["default_port"])

	again, created, err := client.EnsureTarget(ctx, "p_sandbox", spec)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)
}

func TestEnsureVaultCredentialStore(t *testing.T) {
	t.Parallel()
	fake, client := newFakeBoundary(t)
	authenticate(t, client)
	ctx := context.Background()

	id, created, err := client.EnsureVaultCredentialStore(ctx, "p_sandbox", "lab-vault",
		"https://vault.hashicorp.lab", "hvs.periodic")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)

	stored := fake.collections["/v1/credential-stores"][0]
	assert.Equal(t, "vault", stored.Payload["type"])

	_, created, err = client.EnsureVaultCredentialStore(ctx, "p_sandbox", "lab-vault",
		"https://vault.hashicorp.lab", "hvs.periodic")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestEnsureCredentialLibrary(t *testing.T) {
	t.Parallel()
	fake, client := newFakeBoundary(t)
	authenticate(t, client)
	ctx := context.Background()

	id, created, err := client.EnsureCredentialLibrary(ctx, "cs_1", "claude-ssh-keys", "secret/data/ssh/claude")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)

	stored := fake.collections["/v1/credential-libraries"][0]
	assert.Equal(t, "vault-generic", stored.Payload["type"])

	_, created, err = client.EnsureCredentialLibrary(ctx, "cs_1", "claude-ssh-keys", "secret/data/ssh/claude")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestAttachCredentialSource(t *testing.T) {
	t.Parallel()
	fake, client := newFakeBoundary(t)
	authenticate(t, client)
	ctx := context.Background()

	require.NoError(t, client.AttachCredentialSource(ctx, "t_1", "cl_1"))
	assert.Equal(t, []string{"cl_1"}, fake.attached["t_1"])

	// Attaching the same library again must not duplicate it.
	require.NoError(t, client.AttachCredentialSource(ctx, "t_1", "cl_1"))
	assert.Equal(t, []string{"cl_1"}, fake.attached["t_1"])
}
