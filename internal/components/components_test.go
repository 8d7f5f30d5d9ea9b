package components

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/hashilab/labctl/internal/config"
	"github.com/hashilab/labctl/internal/credstore"
	"github.com/hashilab/labctl/internal/deploy"
	"github.com/hashilab/labctl/internal/platform/boundary"
	"github.com/hashilab/labctl/internal/platform/keycloak"
	"github.com/hashilab/labctl/internal/platform/vault"
	"github.com/hashilab/labctl/internal/reconcile"
)

// fakeCluster is an in-memory reconcile.Cluster and deploy.ClusterProbe.
// Every workload reports ready and every pod running, so component logic can
// run straight through.
type fakeCluster struct {
	mu      sync.Mutex
	objects map[string]*unstructured.Unstructured
	creates int
	updates int
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{objects: map[string]*unstructured.Unstructured{}}
}

func clusterKey(obj *unstructured.Unstructured) string {
	return fmt.Sprintf("%s|%s|%s", obj.GetKind(), obj.GetNamespace(), obj.GetName())
}

func (f *fakeCluster) Get(_ context.Context, ref *unstructured.Unstructured) (*unstructured.Unstructured, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	live, ok := f.objects[clusterKey(ref)]
	if !ok {
		return nil, false, nil
	}
	return live.DeepCopy(), true, nil
}

func (f *fakeCluster) Create(_ context.Context, obj *unstructured.Unstructured) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.objects[clusterKey(obj)] = obj.DeepCopy()
	return nil
}

func (f *fakeCluster) Update(_ context.Context, obj *unstructured.Unstructured) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	f.objects[clusterKey(obj)] = obj.DeepCopy()
	return nil
}

func (f *fakeCluster) RolloutStatus(_ context.Context, kind, namespace, name string) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[fmt.Sprintf("%s|%s|%s", kind, namespace, name)]; ok {
		return true, "ready", nil
	}
	return false, fmt.Sprintf("%s %s/%s not found", kind, namespace, name), nil
}

func (f *fakeCluster) PodsRunning(context.Context, string, string) (bool, string, error) {
	return true, "1/1 pods running", nil
}

func (f *fakeCluster) SecretExists(_ context.Context, namespace, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[fmt.Sprintf("Secret|%s|%s", namespace, name)]
	return ok, nil
}

func (f *fakeCluster) GetSecretData(_ context.Context, namespace, name, key string) ([]byte, error) {
	return nil, fmt.Errorf("no data for %s/%s/%s", namespace, name, key)
}

func (f *fakeCluster) has(kind, namespace, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[fmt.Sprintf("%s|%s|%s", kind, namespace, name)]
	return ok
}

// markReady plants a workload object so RolloutStatus reports it ready even
// though no manifest created it (e.g. a helm-managed statefulset).
func (f *fakeCluster) markReady(kind, namespace, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj := &unstructured.Unstructured{Object: map[string]interface{}{}}
	obj.SetKind(kind)
	obj.SetNamespace(namespace)
	obj.SetName(name)
	f.objects[clusterKey(obj)] = obj
}

// fakeVault is an in-memory vault.API.
type fakeVault struct {
	mu          sync.Mutex
	initialized bool
	sealed      bool
	token       string
	inits       int
	unseals     int
	mounts      map[string]bool
	policies    map[string]string
	secrets     map[string]map[string]interface{}
	tokens      int
}

func newFakeVault() *fakeVault {
	return &fakeVault{
		sealed:   true,
		mounts:   map[string]bool{},
		policies: map[string]string{},
		secrets:  map[string]map[string]interface{}{},
	}
}

func (f *fakeVault) Status(context.Context) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialized, f.sealed, nil
}

func (f *fakeVault) Init(context.Context) (vault.InitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initialized {
		return vault.InitResult{}, fmt.Errorf("already initialized")
	}
	f.initialized = true
	f.inits++
	return vault.InitResult{UnsealKey: "unseal-1", RootToken: "hvs.root"}, nil
}

func (f *fakeVault) Unseal(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key != "unseal-1" {
		return fmt.Errorf("wrong unseal key")
	}
	f.sealed = false
	f.unseals++
	return nil
}

func (f *fakeVault) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

func (f *fakeVault) EnableKV(_ context.Context, mount string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mounts[mount] {
		return false, nil
	}
	f.mounts[mount] = true
	return true, nil
}

func (f *fakeVault) WriteSecret(_ context.Context, mount, path string, data map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == "" {
		return fmt.Errorf("missing token")
	}
	f.secrets[mount+"/"+path] = data
	return nil
}

func (f *fakeVault) ReadSecret(_ context.Context, mount, path string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.secrets[mount+"/"+path]
	if !ok {
		return nil, fmt.Errorf("no secret at %s/%s", mount, path)
	}
	return data, nil
}

func (f *fakeVault) WritePolicy(_ context.Context, name, rules string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policies[name] = rules
	return nil
}

func (f *fakeVault) CreatePeriodicToken(context.Context, []string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == "" {
		return "", fmt.Errorf("missing token")
	}
	f.tokens++
	return fmt.Sprintf("hvs.periodic-%d", f.tokens), nil
}

// fakeKeycloak is an in-memory keycloak.AdminAPI.
type fakeKeycloak struct {
	mu       sync.Mutex
	loggedIn bool
	realms   map[string]bool
	clients  map[string]string
	users    map[string]bool
}

func newFakeKeycloakAPI() *fakeKeycloak {
	return &fakeKeycloak{realms: map[string]bool{}, clients: map[string]string{}, users: map[string]bool{}}
}

func (f *fakeKeycloak) Login(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedIn = true
	return nil
}

func (f *fakeKeycloak) EnsureRealm(_ context.Context, realm string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.realms[realm] {
		return false, nil
	}
	f.realms[realm] = true
	return true, nil
}

func (f *fakeKeycloak) EnsureClient(_ context.Context, realm string, spec keycloak.ClientSpec) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.clients[spec.ClientID]; ok {
		return id, false, nil
	}
	id := "uuid-" + spec.ClientID
	f.clients[spec.ClientID] = id
	return id, true, nil
}

func (f *fakeKeycloak) ClientSecret(context.Context, string, string) (string, error) {
	return "oidc-secret", nil
}

func (f *fakeKeycloak) EnsureUser(_ context.Context, realm string, user keycloak.UserSpec) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.users[user.Username] {
		return false, nil
	}
	f.users[user.Username] = true
	return true, nil
}

// fakeBoundary is an in-memory boundary.AdminAPI.
type fakeBoundary struct {
	mu          sync.Mutex
	scopes      map[string]string // parent/name -> id
	authMethods map[string]string
	targets     map[string]string
	stores      map[string]string
	libraries   map[string]string
	attached    map[string][]string
	oidc        map[string]boundary.OIDCSpec // auth method id -> spec
	nextID      int
}

func newFakeBoundaryAPI() *fakeBoundary {
	return &fakeBoundary{
		scopes:      map[string]string{},
		authMethods: map[string]string{},
		targets:     map[string]string{},
		stores:      map[string]string{},
		libraries:   map[string]string{},
		attached:    map[string][]string{},
		oidc:        map[string]boundary.OIDCSpec{},
	}
}

func (f *fakeBoundary) Authenticate(context.Context, string, string, string) error { return nil }

func (f *fakeBoundary) ensure(kind map[string]string, key string) (string, bool) {
	if id, ok := kind[key]; ok {
		return id, false
	}
	f.nextID++
	id := fmt.Sprintf("id_%d", f.nextID)
	kind[key] = id
	return id, true
}

func (f *fakeBoundary) EnsureScope(_ context.Context, parentID, name, _ string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, created := f.ensure(f.scopes, parentID+"/"+name)
	return id, created, nil
}

func (f *fakeBoundary) EnsureOIDCAuthMethod(_ context.Context, scopeID, name string, spec boundary.OIDCSpec) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, created := f.ensure(f.authMethods, scopeID+"/"+name)
	if created {
		f.oidc[id] = spec
	}
	return id, created, nil
}

func (f *fakeBoundary) EnsureTarget(_ context.Context, scopeID string, target boundary.TargetSpec) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, created := f.ensure(f.targets, scopeID+"/"+target.Name)
	return id, created, nil
}

func (f *fakeBoundary) EnsureVaultCredentialStore(_ context.Context, scopeID, name, _, _ string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, created := f.ensure(f.stores, scopeID+"/"+name)
	return id, created, nil
}

func (f *fakeBoundary) EnsureCredentialLibrary(_ context.Context, storeID, name, _ string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, created := f.ensure(f.libraries, storeID+"/"+name)
	return id, created, nil
}

func (f *fakeBoundary) AttachCredentialSource(_ context.Context, targetID, libraryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, attached := range f.attached[targetID] {
		if attached == libraryID {
			return nil
		}
	}
	f.attached[targetID] = append(f.attached[targetID], libraryID)
	return nil
}

// fakeHelm records EnsureRelease calls.
type fakeHelm struct {
	mu        sync.Mutex
	installs  int
	onInstall func()
}

func (f *fakeHelm) EnsureRelease(string, string, string, string, string, map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installs++
	first := f.installs == 1
	if f.onInstall != nil {
		f.onInstall()
	}
	return first, nil
}

type harness struct {
	ctx      *deploy.Context
	cluster  *fakeCluster
	vault    *fakeVault
	keycloak *fakeKeycloak
	boundary *fakeBoundary
	helm     *fakeHelm
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := credstore.NewBoltStore(filepath.Join(t.TempDir(), "creds.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cluster := newFakeCluster()
	reconciler := reconcile.NewReconciler(cluster)

	ctx := deploy.NewContext(context.Background(), config.Default(), deploy.NopObserver{})
	ctx.Timeouts = &config.Timeouts{
		RolloutAttempts:  2,
		RolloutInterval:  time.Millisecond,
		EndpointAttempts: 2,
		EndpointInterval: time.Millisecond,
	}
	ctx.Creds = credstore.NewBootstrap(store)
	ctx.Cluster = cluster
	ctx.Reconciler = reconciler
	ctx.Propagator = reconcile.NewPropagator(store, reconciler)
	ctx.Probe = cluster

	h := &harness{
		ctx:      ctx,
		cluster:  cluster,
		vault:    newFakeVault(),
		keycloak: newFakeKeycloakAPI(),
		boundary: newFakeBoundaryAPI(),
		helm:     &fakeHelm{},
	}
	ctx.Vault = h.vault
	ctx.Keycloak = h.keycloak
	ctx.Boundary = h.boundary
	ctx.Helm = h.helm

	// Helm manages the database outside the manifest path.
	h.helm.onInstall = func() {
		cluster.markReady("StatefulSet", "postgres", "postgres-postgresql")
	}
	return h
}
