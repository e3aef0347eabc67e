// Package fleet keeps a fixed-size fleet of preemptible accelerator nodes
// running a setup workload. Each node gets a dedicated worker goroutine
// that provisions it, pushes and runs the setup script, watches for
// preemption, and recreates the node when it disappears. The manager only
// stops when its context is cancelled; cancellation tears the fleet down.
package fleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/homebrewnlp/launchpad/internal/cloud"
	"github.com/homebrewnlp/launchpad/internal/ctxlog"
	"github.com/homebrewnlp/launchpad/internal/report"
	"github.com/homebrewnlp/launchpad/internal/runstore"
)

// Config holds the fleet's provisioning and pacing parameters.
type Config struct {
	Prefix         string
	Count          int
	Zone           string
	NodeVersion    int
	Preemptible    bool
	ServiceAccount string

	// SetupScript is a local script pushed to every node and executed
	// there to start the workload. Empty skips the push-and-run phase.
	SetupScript      string
	RemoteScriptPath string
	SetupCommand     string

	// Stagger spaces out worker startup so the zone is not hammered with
	// simultaneous create requests.
	Stagger time.Duration
	// PollInterval paces the node-state watch loop.
	PollInterval time.Duration
	// RetryInterval paces create retries and deletion polling.
	RetryInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.RemoteScriptPath == "" {
		c.RemoteScriptPath = "~/setup.sh"
	}
	if c.SetupCommand == "" {
		c.SetupCommand = "bash setup.sh"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 10 * time.Second
	}
	return c
}

// Manager owns the fleet workers.
type Manager struct {
	cfg      Config
	ctrl     cloud.Controller
	reporter report.Reporter
	store    *runstore.Store
}

// NewManager builds a fleet manager. The store may be nil, in which case
// run history is not persisted.
func NewManager(cfg Config, ctrl cloud.Controller, reporter report.Reporter, store *runstore.Store) *Manager {
	if reporter == nil {
		reporter = report.Nop{}
	}
	return &Manager{cfg: cfg.withDefaults(), ctrl: ctrl, reporter: reporter, store: store}
}

// Run starts one worker per node and blocks until every worker has torn
// down its node after context cancellation.
func (m *Manager) Run(ctx context.Context) error {
	if m.cfg.Count <= 0 {
		return fmt.Errorf("fleet size must be positive, got %d", m.cfg.Count)
	}
	logger := ctxlog.FromContext(ctx)
	logger.Info("Starting fleet.", "prefix", m.cfg.Prefix, "count", m.cfg.Count, "zone", m.cfg.Zone)

	var wg sync.WaitGroup
	for i := 1; i <= m.cfg.Count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			m.runWorker(ctx, id)
		}(i)
	}
	wg.Wait()

	logger.Info("Fleet stopped.", "prefix", m.cfg.Prefix)
	return nil
}

// Cleanup deletes every node matching the fleet prefix. It sweeps
// repeatedly because deletions are asynchronous and listings lag.
func (m *Manager) Cleanup(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Cleaning up fleet.", "prefix", m.cfg.Prefix)

	opts := cloud.ListOptions{Prefix: m.cfg.Prefix, IncludePreempted: true, IncludeDeleting: true}
	for {
		nodes, err := m.ctrl.List(ctx, opts)
		if err != nil {
			return fmt.Errorf("cleanup listing failed: %w", err)
		}
		if len(nodes) == 0 {
			logger.Info("Cleanup complete.", "prefix", m.cfg.Prefix)
			return nil
		}

		var wg sync.WaitGroup
		for _, node := range nodes {
			if node.State == cloud.StateDeleting {
				continue
			}
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				logger.Info("Deleting node.", "node", name)
				if err := m.ctrl.Delete(ctx, name); err != nil {
					logger.Warn("Node deletion failed, will retry on next sweep.", "node", name, "error", err)
				}
			}(node.Name)
		}
		wg.Wait()

		if !sleepCtx(ctx, m.cfg.RetryInterval) {
			return ctx.Err()
		}
	}
}

// event records one node state change everywhere it is observable.
func (m *Manager) event(ctx context.Context, runID, node, state, detail string) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Fleet event.", "node", node, "state", state, "detail", detail)

	m.reporter.Publish(ctx, report.Event{Node: node, State: state, Detail: detail, At: time.Now().UTC()})
	if m.store != nil && runID != "" {
		if err := m.store.SetState(ctx, runID, state, detail); err != nil {
			logger.Warn("Failed to persist fleet event.", "node", node, "error", err)
		}
	}
}

// sleepCtx sleeps for d unless the context is cancelled first. It reports
// whether the full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
