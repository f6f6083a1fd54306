// Command run executes a workflow definition file locally against an
// in-memory store and prints the run result.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PratikKhaire/100x-n8n/internal/engine"
	"github.com/PratikKhaire/100x-n8n/internal/nodes"
	"github.com/PratikKhaire/100x-n8n/internal/nodes/http"
	"github.com/PratikKhaire/100x-n8n/internal/workflows"
	"github.com/PratikKhaire/100x-n8n/pkg/jsonx"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

func main() {
	var (
		policy   = flag.String("policy", "passthrough", "handling of unknown node types: passthrough or strict")
		maxSteps = flag.Int("max-steps", 0, "maximum nodes visited per run (0 uses the engine default)")
		timeout  = flag.Duration("timeout", 0, "run timeout (0 uses the engine default)")
		verbose  = flag.Bool("v", false, "log engine activity to stderr")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: run [flags] <workflow.json|workflow.yaml>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Output = "stderr"
	logCfg.Format = "text"
	if !*verbose {
		logCfg.Level = "error"
	}
	log := logger.NewWithConfig("run", logCfg)

	if err := run(flag.Arg(0), *policy, *maxSteps, *timeout, log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path, policyName string, maxSteps int, timeout time.Duration, log logger.Logger) error {
	wf, err := workflows.LoadDefinitionFile(path)
	if err != nil {
		return err
	}

	policy, err := engine.ParseUnknownNodePolicy(policyName)
	if err != nil {
		return err
	}

	catalog, err := nodes.NewCatalog(log, nodes.Config{HTTP: http.DefaultConfig()})
	if err != nil {
		return err
	}

	opts := engine.DefaultOptions()
	opts.UnknownNodePolicy = policy
	if maxSteps > 0 {
		opts.MaxSteps = maxSteps
	}
	if timeout > 0 {
		opts.RunTimeout = timeout
	}

	repo := workflows.NewMemoryRepository()
	eng, err := engine.New(catalog.Registry(), repo, log, nil, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := eng.Run(ctx, wf, workflows.TriggerManual)
	if result != nil {
		enc := jsonx.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	}
	return runErr
}
