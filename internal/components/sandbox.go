package components

import (
	"encoding/json"
	"fmt"

	"github.com/hashilab/labctl/internal/deploy"
	"github.com/hashilab/labctl/internal/keygen"
	"github.com/hashilab/labctl/internal/reconcile"
)

// sandboxUser is the account the SSH workloads accept brokered logins for.
const sandboxUser = "agent"

// Sandbox deploys one SSH workload per configured target, publishes its
// public key as an authorized_keys secret, and stores the private key in
// Vault where Boundary's credential libraries read it.
type Sandbox struct{}

// NewSandbox creates the sandbox component.
func NewSandbox() *Sandbox {
	return &Sandbox{}
}

func (s *Sandbox) Name() string        { return "sandbox" }
func (s *Sandbox) DependsOn() []string { return []string{"boundary", "keycloak"} }

func (s *Sandbox) Deploy(ctx *deploy.Context) error {
	cfg := ctx.Config

	keys, err := loadVaultKeys(ctx)
	if err != nil {
		return err
	}
	ctx.Vault.SetToken(keys.RootToken)

	for _, target := range cfg.Sandbox.Targets {
		credential := "ssh/" + target + "/keypair"
		raw, _, err := ctx.Creds.EnsureCredential(credential, func() ([]byte, error) {
			pair, err := keygen.GenerateRSAKeyPair(2048)
			if err != nil {
				return nil, err
			}
			return json.Marshal(pair)
		})
		if err != nil {
			return err
		}
		var pair keygen.KeyPair
		if err := json.Unmarshal(raw, &pair); err != nil {
			return fmt.Errorf("stored keypair for %s is unreadable: %w", target, err)
		}

		// Boundary's credential library for this target reads exactly
		// this path.
		if err := ctx.Vault.WriteSecret(ctx, cfg.Vault.KVMount, "ssh/"+target, map[string]interface{}{
			"username":    sandboxUser,
			"private_key": string(pair.PrivateKey),
		}); err != nil {
			return err
		}

		if _, err := ctx.Propagator.Propagate(ctx,
			[]reconcile.Source{{Credential: credential, Key: "authorized_keys", Transform: extractPublicKey}},
			reconcile.Bundle{
				Name:      target + "-authorized-keys",
				Namespace: cfg.Sandbox.Namespace,
				Labels:    map[string]string{"app": target},
			},
		); err != nil {
			return err
		}

		if err := applyManifest(ctx, s.Name(), "sandbox.yaml", map[string]interface{}{
			"Name":      target,
			"Namespace": cfg.Sandbox.Namespace,
			"Image":     cfg.Sandbox.Image,
			"User":      sandboxUser,
		}); err != nil {
			return err
		}

		ready, detail := ctx.WaitForRollout("Deployment", cfg.Sandbox.Namespace, target)
		if !ready {
			return fmt.Errorf("sandbox %s did not become ready: %s", target, detail)
		}
	}
	return nil
}

// Satisfied holds when every target's deployment has rolled out and its
// keypair is in the credential store.
func (s *Sandbox) Satisfied(ctx *deploy.Context) (bool, string, error) {
	for _, target := range ctx.Config.Sandbox.Targets {
		ready, detail, err := ctx.Probe.RolloutStatus(ctx, "Deployment", ctx.Config.Sandbox.Namespace, target)
		if err != nil {
			return false, "", err
		}
		if !ready {
			return false, fmt.Sprintf("%s: %s", target, detail), nil
		}
		_, found, err := ctx.Creds.Store().Get("ssh/" + target + "/keypair")
		if err != nil {
			return false, "", err
		}
		if !found {
			return false, fmt.Sprintf("no keypair stored for %s", target), nil
		}
	}
	return true, "all sandbox targets ready", nil
}

func extractPublicKey(raw []byte) ([]byte, error) {
	var pair keygen.KeyPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return nil, err
	}
	return pair.PublicKey, nil
}
