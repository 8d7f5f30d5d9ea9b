package components

import (
	"context"
	"fmt"

	"github.com/hashilab/labctl/internal/deploy"
	"github.com/hashilab/labctl/internal/keygen"
	"github.com/hashilab/labctl/internal/platform/boundary"
	"github.com/hashilab/labctl/internal/reconcile"
)

const (
	boundaryAdminCredential      = "boundary/admin-password"
	boundaryVaultTokenCredential = "boundary/vault-token"
	boundaryProvisionedMarker    = "boundary/provisioned"
)

// Boundary deploys the access broker and provisions its scopes, the Vault
// credential store, and one SSH target per sandbox workload.
type Boundary struct{}

// NewBoundary creates the Boundary component.
func NewBoundary() *Boundary {
	return &Boundary{}
}

func (b *Boundary) Name() string        { return "boundary" }
func (b *Boundary) DependsOn() []string { return []string{"postgres", "vault", "keycloak", "tls"} }

func (b *Boundary) Deploy(ctx *deploy.Context) error {
	cfg := ctx.Config

	// The controller derives its root, worker-auth, and recovery KMS keys
	// from these. Rotating them would orphan the database, so they are
	// generated once and kept.
	for _, key := range []string{"kms-root", "kms-worker-auth", "kms-recovery"} {
		if _, _, err := ctx.Creds.EnsureCredential("boundary/"+key, keygen.RandomAEADKey); err != nil {
			return err
		}
	}
	adminPassword, _, err := ctx.Creds.EnsureCredential(boundaryAdminCredential, func() ([]byte, error) {
		return keygen.RandomPassword(24)
	})
	if err != nil {
		return err
	}

	if _, err := ctx.Propagator.Propagate(ctx,
		[]reconcile.Source{{Credential: "postgres/password", Key: "password"}},
		reconcile.Bundle{Name: "boundary-db", Namespace: "boundary"},
	); err != nil {
		return err
	}
	if _, err := ctx.Propagator.Propagate(ctx,
		[]reconcile.Source{
			{Credential: "boundary/kms-root", Key: "root"},
			{Credential: "boundary/kms-worker-auth", Key: "worker-auth"},
			{Credential: "boundary/kms-recovery", Key: "recovery"},
		},
		reconcile.Bundle{Name: "boundary-kms", Namespace: "boundary"},
	); err != nil {
		return err
	}
	if _, err := ctx.Propagator.Propagate(ctx,
		[]reconcile.Source{{Credential: boundaryAdminCredential, Key: "password"}},
		reconcile.Bundle{Name: "boundary-admin", Namespace: "boundary"},
	); err != nil {
		return err
	}

	if err := applyManifest(ctx, b.Name(), "boundary.yaml", map[string]interface{}{
		"Image":        cfg.Boundary.Image,
		"Domain":       cfg.LabDomain,
		"LoginName":    cfg.Boundary.LoginName,
		"PostgresHost": cfg.Postgres.ReleaseName + "-postgresql." + cfg.Postgres.Namespace + ".svc.cluster.local",
	}); err != nil {
		return err
	}

	for _, deployment := range []string{"boundary-controller", "boundary-worker"} {
		ready, detail := ctx.WaitForRollout("Deployment", "boundary", deployment)
		if !ready {
			return fmt.Errorf("%s did not become ready: %s", deployment, detail)
		}
	}

	up, detail := ctx.WaitForEndpoint("boundary api", func(c context.Context) (bool, string, error) {
		if err := ctx.Boundary.Authenticate(c, cfg.Boundary.AuthMethodID, cfg.Boundary.LoginName, string(adminPassword)); err != nil {
			return false, "authentication not accepted yet", nil
		}
		return true, "api up", nil
	})
	if !up {
		return fmt.Errorf("boundary api did not come up: %s", detail)
	}

	orgID, _, err := ctx.Boundary.EnsureScope(ctx, "global", cfg.Boundary.OrgName, "lab organization")
	if err != nil {
		return err
	}
	if err := b.ensureOIDCLogin(ctx, orgID); err != nil {
		return err
	}
	projectID, _, err := ctx.Boundary.EnsureScope(ctx, orgID, cfg.Boundary.ProjectName, "sandbox workloads")
	if err != nil {
		return err
	}

	vaultToken, err := b.ensureVaultToken(ctx)
	if err != nil {
		return err
	}
	storeID, _, err := ctx.Boundary.EnsureVaultCredentialStore(ctx, projectID, "lab-vault", cfg.Vault.Address, vaultToken)
	if err != nil {
		return err
	}

	for _, target := range cfg.Sandbox.Targets {
		libraryID, _, err := ctx.Boundary.EnsureCredentialLibrary(ctx, storeID, target+"-keys",
			cfg.Vault.KVMount+"/data/ssh/"+target)
		if err != nil {
			return err
		}
		targetID, _, err := ctx.Boundary.EnsureTarget(ctx, projectID, boundary.TargetSpec{
			Name:        target,
			Description: "sandbox SSH workload",
			Address:     target + "." + cfg.Sandbox.Namespace + ".svc.cluster.local",
			Port:        22,
		})
		if err != nil {
			return err
		}
		if err := ctx.Boundary.AttachCredentialSource(ctx, targetID, libraryID); err != nil {
			return err
		}
	}

	return ctx.Creds.Store().Put(boundaryProvisionedMarker, []byte(projectID))
}

// Satisfied holds when the controller has rolled out and a previous run
// finished provisioning scopes and targets.
func (b *Boundary) Satisfied(ctx *deploy.Context) (bool, string, error) {
	ready, detail, err := ctx.Probe.RolloutStatus(ctx, "Deployment", "boundary", "boundary-controller")
	if err != nil {
		return false, "", err
	}
	if !ready {
		return false, detail, nil
	}
	_, found, err := ctx.Creds.Store().Get(boundaryProvisionedMarker)
	if err != nil {
		return false, "", err
	}
	if !found {
		return false, "scopes and targets not provisioned", nil
	}
	return true, "controller ready and scopes provisioned", nil
}

// ensureOIDCLogin wires the Keycloak realm into the org scope as an OIDC auth
// method, so the login page offers delegated authentication next to password
// auth. The client secret is captured during Keycloak provisioning; its
// absence means that run has not happened yet.
func (b *Boundary) ensureOIDCLogin(ctx *deploy.Context, orgID string) error {
	cfg := ctx.Config
	secret, found, err := ctx.Creds.Store().Get(boundaryClientCredential)
	if err != nil {
		return err
	}
	if !found {
		return &reconcile.MissingSourceError{Credential: boundaryClientCredential}
	}

	_, _, err = ctx.Boundary.EnsureOIDCAuthMethod(ctx, orgID, "keycloak", boundary.OIDCSpec{
		Issuer:       cfg.Keycloak.Address + "/realms/" + cfg.Keycloak.Realm,
		ClientID:     "boundary",
		ClientSecret: string(secret),
		APIURLPrefix: cfg.Boundary.Address,
	})
	return err
}

// ensureVaultToken returns the periodic token Boundary's credential store
// uses, minting one with the stored root token on first need.
func (b *Boundary) ensureVaultToken(ctx *deploy.Context) (string, error) {
	token, _, err := ctx.Creds.EnsureCredential(boundaryVaultTokenCredential, func() ([]byte, error) {
		keys, err := loadVaultKeys(ctx)
		if err != nil {
			return nil, err
		}
		ctx.Vault.SetToken(keys.RootToken)

		minted, err := ctx.Vault.CreatePeriodicToken(ctx, []string{"boundary-controller"}, "24h")
		if err != nil {
			return nil, err
		}
		return []byte(minted), nil
	})
	if err != nil {
		return "", err
	}
	return string(token), nil
}
