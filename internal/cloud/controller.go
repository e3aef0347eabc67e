// Package cloud talks to the accelerator-node control plane. Listing goes
// through the provider's REST API; mutations (create, delete, file push,
// remote commands) shell out to the provider CLI, which owns credentials
// and ssh key handling.
package cloud

import "context"

// State is the lifecycle state reported for a node.
type State string

const (
	StateCreating  State = "CREATING"
	StateReady     State = "READY"
	StatePreempted State = "PREEMPTED"
	StateDeleting  State = "DELETING"
)

// Node is one accelerator node as reported by the control plane.
type Node struct {
	Name  string
	State State
}

// Healthy reports whether the node is usable or on its way to becoming so.
func (n Node) Healthy() bool {
	return n.State == StateReady || n.State == StateCreating
}

// NodeSpec describes a node to create.
type NodeSpec struct {
	Name           string
	Zone           string
	Version        int
	Preemptible    bool
	ServiceAccount string
}

// ListOptions filters a node listing.
type ListOptions struct {
	Prefix           string
	IncludePreempted bool
	IncludeDeleting  bool
}

// Controller is the fleet manager's view of the control plane.
type Controller interface {
	// List returns nodes filtered by the options, name-sorted.
	List(ctx context.Context, opts ListOptions) ([]Node, error)
	// Create provisions a node. It returns once the request is accepted.
	Create(ctx context.Context, spec NodeSpec) error
	// Delete requests asynchronous deletion of a node.
	Delete(ctx context.Context, name string) error
	// PushFile copies a local file onto the node.
	PushFile(ctx context.Context, name, localPath, remotePath string) error
	// RunCommand executes a shell command on the node and waits for it.
	RunCommand(ctx context.Context, name, command string) error
}
