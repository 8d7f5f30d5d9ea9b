package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/hashilab/labctl/internal/deploy"
	"github.com/hashilab/labctl/internal/ui"
)

// StatusOptions carries the status flag values.
type StatusOptions struct {
	ConfigPath string
	Kubeconfig string

	// Out receives the status table. Defaults to stdout.
	Out io.Writer
}

// Status probes every component's done signature and prints the result.
// Nothing is deployed or changed.
func Status(ctx context.Context, opts StatusOptions) error {
	cfg, err := loadLabConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Kubeconfig != "" {
		cfg.KubeconfigPath = opts.Kubeconfig
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	dctx, store, err := buildContext(ctx, cfg, deploy.NopObserver{})
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMPONENT\tSTATE\tDETAIL")
	for _, component := range labComponents() {
		state, detail := probeComponent(dctx, component)
		fmt.Fprintf(w, "%s\t%s\t%s\n", component.Name(), ui.State(state), detail)
	}
	return w.Flush()
}

func probeComponent(ctx *deploy.Context, component deploy.Component) (string, string) {
	satisfied, detail, err := component.Satisfied(ctx)
	switch {
	case err != nil:
		return "unknown", err.Error()
	case satisfied:
		return "deployed", detail
	default:
		return "missing", detail
	}
}
