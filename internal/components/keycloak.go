package components

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashilab/labctl/internal/deploy"
	"github.com/hashilab/labctl/internal/keygen"
	"github.com/hashilab/labctl/internal/platform/keycloak"
	"github.com/hashilab/labctl/internal/reconcile"
)

const (
	keycloakAdminCredential  = "keycloak/admin-password"
	boundaryClientCredential = "keycloak/boundary-client-secret"
)

// Keycloak deploys the identity provider and provisions the lab realm, the
// Boundary OIDC client, and the test user.
type Keycloak struct{}

// NewKeycloak creates the Keycloak component.
func NewKeycloak() *Keycloak {
	return &Keycloak{}
}

func (k *Keycloak) Name() string        { return "keycloak" }
func (k *Keycloak) DependsOn() []string { return []string{"postgres", "tls"} }

func (k *Keycloak) Deploy(ctx *deploy.Context) error {
	cfg := ctx.Config

	adminPassword, _, err := ctx.Creds.EnsureCredential(keycloakAdminCredential, func() ([]byte, error) {
		return keygen.RandomPassword(24)
	})
	if err != nil {
		return err
	}

	// Database and admin credentials must be in the namespace before the
	// deployment references them.
	if _, err := ctx.Propagator.Propagate(ctx,
		[]reconcile.Source{{Credential: "postgres/password", Key: "password"}},
		reconcile.Bundle{Name: "keycloak-db", Namespace: "keycloak"},
	); err != nil {
		return err
	}
	if _, err := ctx.Propagator.Propagate(ctx,
		[]reconcile.Source{{Credential: keycloakAdminCredential, Key: "password"}},
		reconcile.Bundle{Name: "keycloak-admin", Namespace: "keycloak"},
	); err != nil {
		return err
	}

	if err := applyManifest(ctx, k.Name(), "keycloak.yaml", map[string]interface{}{
		"Image":        cfg.Keycloak.Image,
		"Domain":       cfg.LabDomain,
		"AdminUser":    cfg.Keycloak.AdminUser,
		"PostgresHost": cfg.Postgres.ReleaseName + "-postgresql." + cfg.Postgres.Namespace + ".svc.cluster.local",
	}); err != nil {
		return err
	}

	ready, detail := ctx.WaitForRollout("Deployment", "keycloak", "keycloak")
	if !ready {
		return fmt.Errorf("keycloak did not become ready: %s", detail)
	}

	// The admin API lags the rollout while Keycloak builds the master realm.
	up, detail := ctx.WaitForEndpoint("keycloak admin api", func(c context.Context) (bool, string, error) {
		if err := ctx.Keycloak.Login(c, cfg.Keycloak.AdminUser, string(adminPassword)); err != nil {
			return false, "admin login not accepted yet", nil
		}
		return true, "admin api up", nil
	})
	if !up {
		return fmt.Errorf("keycloak admin api did not come up: %s", detail)
	}

	if _, err := ctx.Keycloak.EnsureRealm(ctx, cfg.Keycloak.Realm); err != nil {
		return err
	}

	clientID, _, err := ctx.Keycloak.EnsureClient(ctx, cfg.Keycloak.Realm, keycloak.ClientSpec{
		ClientID:     "boundary",
		Name:         "Boundary",
		RedirectURIs: []string{cfg.Boundary.Address + "/v1/auth-methods/oidc:authenticate:callback"},
		WebOrigins:   []string{cfg.Boundary.Address},
	})
	if err != nil {
		return err
	}

	clientSecret, err := ctx.Keycloak.ClientSecret(ctx, cfg.Keycloak.Realm, clientID)
	if err != nil {
		return err
	}
	if err := ctx.Creds.Store().Put(boundaryClientCredential, []byte(clientSecret)); err != nil {
		return err
	}

	nameParts := strings.SplitN(cfg.Keycloak.TestUser, "@", 2)
	if _, err := ctx.Keycloak.EnsureUser(ctx, cfg.Keycloak.Realm, keycloak.UserSpec{
		Username:  cfg.Keycloak.TestUser,
		Email:     cfg.Keycloak.TestUser,
		FirstName: nameParts[0],
		LastName:  "Lab",
		Password:  cfg.Keycloak.TestUserPassword,
	}); err != nil {
		return err
	}
	return nil
}

// Satisfied holds when the deployment has rolled out and the Boundary client
// secret has been captured, which only happens after realm provisioning.
func (k *Keycloak) Satisfied(ctx *deploy.Context) (bool, string, error) {
	ready, detail, err := ctx.Probe.RolloutStatus(ctx, "Deployment", "keycloak", "keycloak")
	if err != nil {
		return false, "", err
	}
	if !ready {
		return false, detail, nil
	}
	_, found, err := ctx.Creds.Store().Get(boundaryClientCredential)
	if err != nil {
		return false, "", err
	}
	if !found {
		return false, "realm not provisioned", nil
	}
	return true, "deployment ready and realm provisioned", nil
}
