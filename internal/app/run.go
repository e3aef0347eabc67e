package app

import (
	"context"
	"fmt"

	"github.com/homebrewnlp/launchpad/internal/cloud"
	"github.com/homebrewnlp/launchpad/internal/ctxlog"
	"github.com/homebrewnlp/launchpad/internal/fleet"
	"github.com/homebrewnlp/launchpad/internal/launch"
	"github.com/homebrewnlp/launchpad/internal/profile"
	"github.com/homebrewnlp/launchpad/internal/report"
	"github.com/homebrewnlp/launchpad/internal/runstore"
)

// Run executes the configured mode and returns the process exit code the
// launcher should finish with. In local exec mode the success path never
// returns: the process image is replaced by the downstream program.
func (a *App) Run(ctx context.Context) (int, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run started.", "mode", a.config.Mode)

	store, err := a.openStore()
	if err != nil {
		return 1, err
	}
	if store != nil {
		defer store.Close()
	}

	reporter, err := a.dialReporter(ctx)
	if err != nil {
		return 1, err
	}
	defer reporter.Close()

	switch a.config.Mode {
	case ModeFleet:
		return 0, a.runFleet(ctx, store, reporter)
	case ModeCleanup:
		manager, closeCtrl := a.newFleetManager(store, reporter)
		defer closeCtrl()
		return 0, manager.Cleanup(ctx)
	default:
		return a.runLocal(ctx, store, reporter)
	}
}

// openStore opens the run-history database if one is configured.
func (a *App) openStore() (*runstore.Store, error) {
	if a.config.StatePath == "" {
		return nil, nil
	}
	store, err := runstore.Open(a.config.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return store, nil
}

// dialReporter connects to the status endpoint if one is configured.
func (a *App) dialReporter(ctx context.Context) (report.Reporter, error) {
	if a.config.StatusURL == "" {
		return report.Nop{}, nil
	}
	reporter, err := report.Dial(ctx, a.config.StatusURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect status reporter: %w", err)
	}
	return reporter, nil
}

// runLocal resolves the launch profile and transfers control to the
// downstream process.
func (a *App) runLocal(ctx context.Context, store *runstore.Store, reporter report.Reporter) (int, error) {
	set, err := a.loadProfiles(ctx)
	if err != nil {
		return 1, err
	}
	p, err := set.Resolve(a.config.Profile)
	if err != nil {
		return 1, err
	}

	if a.config.DryRun {
		a.printProfile(p)
		return 0, nil
	}

	runID := ""
	if store != nil {
		// In exec mode this is the last write that can happen in this
		// process; the image is about to be replaced.
		run, err := store.Record(ctx, p.Name, "", "launching")
		if err != nil {
			return 1, err
		}
		runID = run.ID
	}
	reporter.Publish(ctx, report.Event{State: "launching", Detail: p.Name})

	launcher := launch.New()
	launcher.Spawn = a.config.Spawn
	code, err := launcher.Launch(ctx, p, a.config.ForwardArgs)
	if err != nil {
		if store != nil && runID != "" {
			_ = store.SetState(ctx, runID, "failed", err.Error())
		}
		reporter.Publish(ctx, report.Event{State: "failed", Detail: err.Error()})
		return 1, err
	}

	if store != nil && runID != "" {
		_ = store.Finish(ctx, runID, code)
	}
	reporter.Publish(ctx, report.Event{State: "finished", Detail: fmt.Sprintf("exit code %d", code)})
	return code, nil
}

// loadProfiles returns the configured profile set, or just the built-in
// one when no config path was given.
func (a *App) loadProfiles(ctx context.Context) (*profile.Set, error) {
	if a.config.ConfigPath == "" {
		return profile.Builtin(), nil
	}
	return profile.Load(ctx, a.config.ConfigPath)
}

// printProfile writes the resolved launch plan for -dry-run.
func (a *App) printProfile(p *profile.Profile) {
	fmt.Fprintf(a.outW, "profile: %s\n", p.Name)
	fmt.Fprintf(a.outW, "command: %v\n", launch.Argv(p, a.config.ForwardArgs))
	fmt.Fprintln(a.outW, "env:")
	for _, name := range p.EnvNames() {
		fmt.Fprintf(a.outW, "  %s=%s\n", name, p.Env[name])
	}
}

// runFleet keeps the configured fleet running until the context is
// cancelled.
func (a *App) runFleet(ctx context.Context, store *runstore.Store, reporter report.Reporter) error {
	if a.config.HealthcheckPort > 0 {
		shutdown := a.startHealthcheckServer()
		defer shutdown()
	}

	manager, closeCtrl := a.newFleetManager(store, reporter)
	defer closeCtrl()
	return manager.Run(ctx)
}

// newFleetManager wires the control plane and fleet manager from config.
// The returned func releases the API client.
func (a *App) newFleetManager(store *runstore.Store, reporter report.Reporter) (*fleet.Manager, func()) {
	api := cloud.NewAPIClient(a.config.APIEndpoint, a.config.Zone)
	ctrl := cloud.NewCLIController(api, a.config.CLIBinary)

	manager := fleet.NewManager(fleet.Config{
		Prefix:         a.config.Prefix,
		Count:          a.config.FleetSize,
		Zone:           a.config.Zone,
		NodeVersion:    a.config.NodeVersion,
		Preemptible:    a.config.Preemptible,
		ServiceAccount: a.config.ServiceAccount,
		SetupScript:    a.config.SetupScript,
		Stagger:        a.config.Stagger,
	}, ctrl, reporter, store)

	return manager, func() { _ = api.Close() }
}
