// conciliumd is a CLI harness around the ledger's transaction-processing
// core: apply-block drives Application against a JSON-staged block file
// and keygen produces a fresh secp256k1 identity. Dependencies are
// constructed once at startup and handed off to a cobra command tree
// rather than driving a long-running node loop, since the
// consensus/network layers around this core are out of scope here.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/concilium/ledgercore/cmd/conciliumd/cli"
	"github.com/concilium/ledgercore/internal/app"
	"github.com/concilium/ledgercore/internal/metrics"
	"github.com/concilium/ledgercore/internal/vm"
)

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {})); err != nil {
		fmt.Fprintf(os.Stderr, "conciliumd: automaxprocs: %v\n", err)
	}

	var root *cobra.Command
	fxApp := fx.New(
		fx.NopLogger,
		fx.Provide(
			newLogger,
			newMetricsCollector,
			newSandbox,
			app.New,
			cli.NewRootCommand,
		),
		fx.Populate(&root),
	)
	if err := fxApp.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "conciliumd: failed to wire dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// newLogger builds a development (colorized console) logger when stdout
// is an interactive terminal, and a production (JSON) logger otherwise,
// so a human running conciliumd by hand gets readable output while a
// supervised/piped invocation gets structured logs.
func newLogger() (*zap.SugaredLogger, error) {
	var logger *zap.Logger
	var err error
	if isatty.IsTerminal(os.Stdout.Fd()) {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), nil
}

func newMetricsCollector() *metrics.Collector {
	return metrics.NewCollector()
}

func newSandbox(log *zap.SugaredLogger) *vm.Sandbox {
	return vm.NewSandbox(log, nil)
}
