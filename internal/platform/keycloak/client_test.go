package keycloak

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKeycloak is an in-memory admin API covering the endpoints Client uses.
type fakeKeycloak struct {
	t       *testing.T
	realms  map[string]bool
	clients map[string]string // clientId -> internal id
	users   map[string]bool
	secrets map[string]string // internal id -> secret
}

func newFakeKeycloak(t *testing.T) (*fakeKeycloak, *Client) {
	t.Helper()
	fake := &fakeKeycloak{
		t:       t,
		realms:  map[string]bool{},
		clients: map[string]string{},
		users:   map[string]bool{},
		secrets: map[string]string{},
	}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := NewClient(server.URL, false)
	return fake, client
}

func (f *fakeKeycloak) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/realms/master/protocol/openid-connect/token":
		require.NoError(f.t, r.ParseForm())
		if r.PostForm.Get("password") != "admin-password" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.writeJSON(w, map[string]string{"access_token": "fake-token"})

	case r.URL.Path == "/admin/realms" && r.Method == http.MethodPost:
		f.requireAuth(w, r)
		var realm struct {
			Realm string `json:"realm"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&realm))
		f.realms[realm.Realm] = true
		w.WriteHeader(http.StatusCreated)

	case r.URL.Path == "/admin/realms/hashicorp" && r.Method == http.MethodGet:
		f.requireAuth(w, r)
		if f.realms["hashicorp"] {
			f.writeJSON(w, map[string]string{"realm": "hashicorp"})
			return
		}
		w.WriteHeader(http.StatusNotFound)

	case r.URL.Path == "/admin/realms/hashicorp/clients" && r.Method == http.MethodGet:
		f.requireAuth(w, r)
		wanted := r.URL.Query().Get("clientId")
		var out []map[string]string
		if id, ok := f.clients[wanted]; ok {
			out = append(out, map[string]string{"id": id, "clientId": wanted})
		}
		f.writeJSON(w, out)

	case r.URL.Path == "/admin/realms/hashicorp/clients" && r.Method == http.MethodPost:
		f.requireAuth(w, r)
		var spec struct {
			ClientID string `json:"clientId"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&spec))
		if _, exists := f.clients[spec.ClientID]; exists {
			w.WriteHeader(http.StatusConflict)
			return
		}
		id := "uuid-" + spec.ClientID
		f.clients[spec.ClientID] = id
		f.secrets[id] = "generated-secret"
		w.WriteHeader(http.StatusCreated)

	case r.URL.Path == "/admin/realms/hashicorp/clients/uuid-boundary/client-secret":
		f.requireAuth(w, r)
		f.writeJSON(w, map[string]string{"type": "secret", "value": f.secrets["uuid-boundary"]})

	case r.URL.Path == "/admin/realms/hashicorp/users" && r.Method == http.MethodGet:
		f.requireAuth(w, r)
		wanted := r.URL.Query().Get("username")
		var out []map[string]string
		if f.users[wanted] {
			out = append(out, map[string]string{"id": "uuid-user", "username": wanted})
		}
		f.writeJSON(w, out)

	case r.URL.Path == "/admin/realms/hashicorp/users" && r.Method == http.MethodPost:
		f.requireAuth(w, r)
		var user struct {
			Username string `json:"username"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&user))
		if f.users[user.Username] {
			w.WriteHeader(http.StatusConflict)
			return
		}
		f.users[user.Username] = true
		w.WriteHeader(http.StatusCreated)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeKeycloak) requireAuth(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, "Bearer fake-token", r.Header.Get("Authorization"))
}

func (f *fakeKeycloak) writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(f.t, json.NewEncoder(w).Encode(body))
}

func login(t *testing.T, client *Client) {
	t.Helper()
	require.NoError(t, client.Login(context.Background(), "admin", "admin-password"))
}

func TestLogin_BadPassword(t *testing.T) {
	t.Parallel()
	_, client := newFakeKeycloak(t)

	err := client.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
}

func TestEnsureRealm(t *testing.T) {
	t.Parallel()
	fake, client := newFakeKeycloak(t)
	login(t, client)
	ctx := context.Background()

	created, err := client.EnsureRealm(ctx, "hashicorp")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, fake.realms["hashicorp"])

	created, err = client.EnsureRealm(ctx, "hashicorp")
	require.NoError(t, err)
	assert.False(t, created, "an existing realm must not be recreated")
}

func TestEnsureClient(t *testing.T) {
	t.Parallel()
	_, client := newFakeKeycloak(t)
	login(t, client)
	ctx := context.Background()

	spec := ClientSpec{
		ClientID:     "boundary",
		Name:         "Boundary OIDC",
		RedirectURIs: []string{"https://boundary.hashicorp.lab/v1/auth-methods/oidc:authenticate:callback"},
	}

	id, created, err := client.EnsureClient(ctx, "hashicorp", spec)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "uuid-boundary", id)

	id, created, err = client.EnsureClient(ctx, "hashicorp", spec)
	require.NoError(t, err)
	assert.False(t, created, "an existing client must be found, not recreated")
	assert.Equal(t, "uuid-boundary", id)
}

func TestClientSecret(t *testing.T) {
	t.Parallel()
	_, client := newFakeKeycloak(t)
	login(t, client)
	ctx := context.Background()

	_, _, err := client.EnsureClient(ctx, "hashicorp", ClientSpec{ClientID: "boundary"})
	require.NoError(t, err)

	secret, err := client.ClientSecret(ctx, "hashicorp", "uuid-boundary")
	require.NoError(t, err)
	assert.Equal(t, "generated-secret", secret)
}

func TestEnsureUser(t *testing.T) {
	t.Parallel()
	fake, client := newFakeKeycloak(t)
	login(t, client)
	ctx := context.Background()

	user := UserSpec{
		Username:  "developer@example.com",
		Email:     "developer@example.com",
		FirstName: "Dev",
		LastName:  "Eloper",
		Password:  "Developer123",
	}

	created, err := client.EnsureUser(ctx, "hashicorp", user)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, fake.users["developer@example.com"])

	created, err = client.EnsureUser(ctx, "hashicorp", user)
	require.NoError(t, err)
	assert.False(t, created, "an existing user must not be recreated")
}
