// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates CLI flags into the application's internal configuration.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/homebrewnlp/launchpad/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("launchpad", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
launchpad - environment setup and control transfer for accelerator training runs.

Usage:
  launchpad [options] [-- downstream args...]

Without fleet flags, launchpad applies the selected launch profile's
environment and execs the downstream command, forwarding every positional
argument unchanged. With -fleet N it provisions and babysits N preemptible
accelerator nodes instead.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to an HCL launch config file or directory.")
	cFlag := flagSet.String("c", "", "Path to an HCL launch config file or directory (shorthand).")
	profileFlag := flagSet.String("profile", "default", "Launch profile to use.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Print the resolved environment and command without launching.")
	spawnFlag := flagSet.Bool("spawn", false, "Spawn-and-wait instead of replacing the process image.")

	fleetFlag := flagSet.Int("fleet", 0, "Fleet mode: number of accelerator nodes to keep running. 0 is local mode.")
	cleanupFlag := flagSet.Bool("cleanup", false, "Delete every fleet node with the configured prefix, then exit.")
	prefixFlag := flagSet.String("prefix", "homebrewnlp-preemptible-tuning", "Name prefix for fleet nodes.")
	zoneFlag := flagSet.String("zone", "europe-west4-a", "Zone fleet nodes get created in.")
	nodeVersionFlag := flagSet.Int("node-version", 3, "Accelerator node version to create.")
	preemptibleFlag := flagSet.Bool("preemptible", true, "Create preemptible nodes.")
	staggerFlag := flagSet.Duration("stagger", 10*time.Second, "Delay step between fleet worker startups.")
	serviceAccountFlag := flagSet.String("service-account", "", "Service account that controls node permissions.")
	setupScriptFlag := flagSet.String("setup-script", "", "Local script pushed to and executed on each fleet node.")
	apiEndpointFlag := flagSet.String("api-endpoint", "", "Accelerator control-plane API base URL.")
	cliBinaryFlag := flagSet.String("cli-binary", "gcloud", "Provider CLI used for node mutations.")

	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server in fleet mode. 0 is disabled.")
	stateFlag := flagSet.String("state", "", "Path to the SQLite run-history database. Empty disables persistence.")
	statusURLFlag := flagSet.String("status-url", "", "Socket.io endpoint for live launch events. Empty disables reporting.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = *cFlag
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	mode := app.ModeLocal
	switch {
	case *cleanupFlag:
		mode = app.ModeCleanup
	case *fleetFlag > 0:
		mode = app.ModeFleet
	}

	config, err := app.NewConfig(app.Config{
		Mode:            mode,
		ConfigPath:      configPath,
		Profile:         *profileFlag,
		ForwardArgs:     flagSet.Args(),
		DryRun:          *dryRunFlag,
		Spawn:           *spawnFlag,
		FleetSize:       *fleetFlag,
		Prefix:          *prefixFlag,
		Zone:            *zoneFlag,
		NodeVersion:     *nodeVersionFlag,
		Preemptible:     *preemptibleFlag,
		ServiceAccount:  *serviceAccountFlag,
		SetupScript:     *setupScriptFlag,
		Stagger:         *staggerFlag,
		APIEndpoint:     *apiEndpointFlag,
		CLIBinary:       *cliBinaryFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
		StatePath:       *stateFlag,
		StatusURL:       *statusURLFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
