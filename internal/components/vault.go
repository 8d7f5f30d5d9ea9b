package components

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashilab/labctl/internal/deploy"
	"github.com/hashilab/labctl/internal/platform/vault"
	"github.com/hashilab/labctl/internal/reconcile"
)

// vaultKeysCredential stores the unseal key and root token as one JSON
// document, so a partially written pair can never exist.
const vaultKeysCredential = "vault/keys"

// boundaryPolicy lets Boundary's periodic token read brokered SSH secrets.
const boundaryPolicy = `path "secret/data/ssh/*" {
  capabilities = ["read"]
}
path "auth/token/renew-self" {
  capabilities = ["update"]
}
`

// Vault deploys the Vault server, initializes and unseals it, and prepares
// the KV engine and the policy Boundary brokers credentials through.
type Vault struct{}

// NewVault creates the Vault component.
func NewVault() *Vault {
	return &Vault{}
}

func (v *Vault) Name() string        { return "vault" }
func (v *Vault) DependsOn() []string { return []string{"tls"} }

func (v *Vault) Deploy(ctx *deploy.Context) error {
	cfg := ctx.Config
	if err := applyManifest(ctx, v.Name(), "vault.yaml", map[string]interface{}{
		"Image":  cfg.Vault.Image,
		"Domain": cfg.LabDomain,
	}); err != nil {
		return err
	}

	// An uninitialized Vault never passes its readiness probe, so wait for
	// the pod itself before talking to the API.
	running, detail := ctx.WaitForEndpoint("vault pod", func(c context.Context) (bool, string, error) {
		return ctx.Probe.PodsRunning(c, "vault", "app=vault")
	})
	if !running {
		return fmt.Errorf("vault pod did not start: %s", detail)
	}

	initialized, sealed, err := ctx.Vault.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read vault status: %w", err)
	}

	if !initialized {
		result, err := ctx.Vault.Init(ctx)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(result)
		if err != nil {
			return err
		}
		// Persist before unsealing: losing these keys strands the server.
		if err := ctx.Creds.Store().Put(vaultKeysCredential, encoded); err != nil {
			return err
		}
		ctx.Observer.Printf("vault initialized, keys stored as %s", vaultKeysCredential)
		sealed = true
	}

	keys, err := loadVaultKeys(ctx)
	if err != nil {
		return err
	}
	if sealed {
		if err := ctx.Vault.Unseal(ctx, keys.UnsealKey); err != nil {
			return err
		}
	}
	ctx.Vault.SetToken(keys.RootToken)

	if _, err := ctx.Vault.EnableKV(ctx, cfg.Vault.KVMount); err != nil {
		return err
	}
	if err := ctx.Vault.WritePolicy(ctx, "boundary-controller", boundaryPolicy); err != nil {
		return err
	}

	ready, detail := ctx.WaitForRollout("StatefulSet", "vault", "vault")
	if !ready {
		return fmt.Errorf("vault did not become ready: %s", detail)
	}
	return nil
}

// Satisfied holds when the server answers as initialized and unsealed.
func (v *Vault) Satisfied(ctx *deploy.Context) (bool, string, error) {
	initialized, sealed, err := ctx.Vault.Status(ctx)
	if err != nil {
		return false, "", err
	}
	if !initialized {
		return false, "vault not initialized", nil
	}
	if sealed {
		return false, "vault sealed", nil
	}
	return true, "vault initialized and unsealed", nil
}

// loadVaultKeys returns the stored init material. A missing entry is a
// precondition failure: the server is initialized but this store cannot
// manage it.
func loadVaultKeys(ctx *deploy.Context) (*vault.InitResult, error) {
	raw, found, err := ctx.Creds.Store().Get(vaultKeysCredential)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &reconcile.MissingSourceError{Credential: vaultKeysCredential}
	}
	var keys vault.InitResult
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("stored vault keys are unreadable: %w", err)
	}
	return &keys, nil
}
