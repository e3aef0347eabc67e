package cloud

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/homebrewnlp/launchpad/internal/ctxlog"
)

// remoteUser is the account the provider CLI logs into on each node.
const remoteUser = "ubuntu"

// CLIController implements Controller by delegating listings to the REST
// API and mutations to the provider CLI.
type CLIController struct {
	API    *APIClient
	Binary string

	// runCLI executes one CLI invocation; swapped out in tests.
	runCLI func(ctx context.Context, args ...string) error
}

// NewCLIController wires a controller around the given API client and the
// provider CLI binary (e.g. "gcloud").
func NewCLIController(api *APIClient, binary string) *CLIController {
	c := &CLIController{API: api, Binary: binary}
	c.runCLI = c.runLocal
	return c
}

func (c *CLIController) runLocal(ctx context.Context, args ...string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running provider CLI.", "binary", c.Binary, "args", args)

	out, err := exec.CommandContext(ctx, c.Binary, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s failed: %w: %s", c.Binary, args[0], err, out)
	}
	return nil
}

// List implements Controller.
func (c *CLIController) List(ctx context.Context, opts ListOptions) ([]Node, error) {
	return c.API.List(ctx, opts)
}

// Create implements Controller.
func (c *CLIController) Create(ctx context.Context, spec NodeSpec) error {
	args := []string{
		"alpha", "compute", "tpus", "tpu-vm", "create", spec.Name,
		"--zone", spec.Zone,
		"--accelerator-type", fmt.Sprintf("v%d-8", spec.Version),
		"--version", "v2-alpha",
	}
	if spec.Preemptible {
		args = append(args, "--preemptible")
	}
	if spec.ServiceAccount != "" {
		args = append(args, "--service-account", spec.ServiceAccount)
	}
	return c.runCLI(ctx, args...)
}

// Delete implements Controller. Deletion is requested asynchronously; the
// node lingers in the DELETING state until the control plane finishes.
func (c *CLIController) Delete(ctx context.Context, name string) error {
	return c.runCLI(ctx,
		"alpha", "compute", "tpus", "tpu-vm", "delete", name,
		"--zone", c.API.zone, "--quiet", "--async")
}

// PushFile implements Controller.
func (c *CLIController) PushFile(ctx context.Context, name, localPath, remotePath string) error {
	return c.runCLI(ctx,
		"alpha", "compute", "tpus", "tpu-vm", "scp", localPath,
		fmt.Sprintf("%s@%s:%s", remoteUser, name, remotePath),
		"--zone", c.API.zone)
}

// RunCommand implements Controller.
func (c *CLIController) RunCommand(ctx context.Context, name, command string) error {
	return c.runCLI(ctx,
		"alpha", "compute", "tpus", "tpu-vm", "ssh",
		fmt.Sprintf("%s@%s", remoteUser, name),
		"--zone", c.API.zone, "--command", command)
}
