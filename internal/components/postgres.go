package components

import (
	"fmt"

	"github.com/hashilab/labctl/internal/deploy"
	"github.com/hashilab/labctl/internal/keygen"
)

// Postgres installs the shared PostgreSQL instance from the Bitnami chart.
// Keycloak and Boundary each get a database in it.
type Postgres struct{}

// NewPostgres creates the PostgreSQL component.
func NewPostgres() *Postgres {
	return &Postgres{}
}

func (p *Postgres) Name() string        { return "postgres" }
func (p *Postgres) DependsOn() []string { return nil }

func (p *Postgres) Deploy(ctx *deploy.Context) error {
	password, _, err := ctx.Creds.EnsureCredential("postgres/password", func() ([]byte, error) {
		return keygen.RandomPassword(32)
	})
	if err != nil {
		return err
	}

	cfg := ctx.Config.Postgres
	values := map[string]interface{}{
		"auth": map[string]interface{}{
			"postgresPassword": string(password),
		},
		"primary": map[string]interface{}{
			"initdb": map[string]interface{}{
				// Keycloak and Boundary expect their databases to exist
				// before first boot.
				"scripts": map[string]string{
					"create-databases.sql": "CREATE DATABASE keycloak;\nCREATE DATABASE boundary;",
				},
			},
		},
	}

	installed, err := ctx.Helm.EnsureRelease(cfg.Namespace, cfg.ReleaseName, cfg.RepoURL, cfg.Chart, cfg.ChartVersion, values)
	if err != nil {
		return fmt.Errorf("failed to ensure postgres release: %w", err)
	}
	if installed {
		ctx.Observer.Printf("installed %s chart %s", cfg.ReleaseName, cfg.ChartVersion)
	}

	ready, detail := ctx.WaitForRollout("StatefulSet", cfg.Namespace, p.statefulSetName(ctx))
	if !ready {
		return fmt.Errorf("postgres did not become ready: %s", detail)
	}
	return nil
}

// Satisfied holds when the database statefulset has rolled out.
func (p *Postgres) Satisfied(ctx *deploy.Context) (bool, string, error) {
	return ctx.Probe.RolloutStatus(ctx, "StatefulSet", ctx.Config.Postgres.Namespace, p.statefulSetName(ctx))
}

// statefulSetName is the name the Bitnami chart gives the primary.
func (p *Postgres) statefulSetName(ctx *deploy.Context) string {
	return ctx.Config.Postgres.ReleaseName + "-postgresql"
}
