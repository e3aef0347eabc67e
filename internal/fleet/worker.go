package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/homebrewnlp/launchpad/internal/cloud"
	"github.com/homebrewnlp/launchpad/internal/ctxlog"
)

// teardownTimeout bounds the final node deletion after cancellation, which
// runs on its own context because the worker's is already done.
const teardownTimeout = 2 * time.Minute

// runWorker keeps the node "<prefix>-<id>" provisioned and working until
// the context is cancelled, then deletes it.
func (m *Manager) runWorker(ctx context.Context, id int) {
	name := fmt.Sprintf("%s-%d", m.cfg.Prefix, id)
	logger := ctxlog.FromContext(ctx).With("node", name)
	ctx = ctxlog.WithLogger(ctx, logger)

	// Staggered start, matching the worker's position in the fleet.
	if !sleepCtx(ctx, time.Duration(id-1)*m.cfg.Stagger) {
		return
	}

	defer m.teardown(logger, name)

	if err := m.ensureNode(ctx, name); err != nil {
		logger.Warn("Worker stopping.", "error", err)
		return
	}

	for {
		runID := m.recordCycle(ctx, name)

		if err := m.runWorkload(ctx, runID, name); err != nil {
			if ctx.Err() != nil {
				return
			}
			// A failed push or setup usually means the node is wedged;
			// replace it, like any preemption.
			m.event(ctx, runID, name, "failed", err.Error())
		} else {
			m.event(ctx, runID, name, "running", "setup complete")
			if err := m.watch(ctx, name); err != nil {
				return
			}
			m.event(ctx, runID, name, "preempted", "node left ready state")
		}

		if err := m.recycle(ctx, name); err != nil {
			if ctx.Err() == nil {
				logger.Warn("Worker stopping.", "error", err)
			}
			return
		}
		m.event(ctx, runID, name, "recreated", "")
	}
}

// recordCycle opens a run-store row for one node lifecycle, if persistence
// is enabled.
func (m *Manager) recordCycle(ctx context.Context, name string) string {
	if m.store == nil {
		return ""
	}
	run, err := m.store.Record(ctx, "fleet", name, "provisioned")
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to record fleet run.", "error", err)
		return ""
	}
	return run.ID
}

// runWorkload pushes the setup script to the node and executes it.
func (m *Manager) runWorkload(ctx context.Context, runID, name string) error {
	if m.cfg.SetupScript == "" {
		return nil
	}
	m.event(ctx, runID, name, "setup", "pushing setup script")
	if err := m.ctrl.PushFile(ctx, name, m.cfg.SetupScript, m.cfg.RemoteScriptPath); err != nil {
		return fmt.Errorf("failed to push setup script: %w", err)
	}
	if err := m.ctrl.RunCommand(ctx, name, m.cfg.SetupCommand); err != nil {
		return fmt.Errorf("setup command failed: %w", err)
	}
	return nil
}

// ensureNode brings the node to a healthy state: an unhealthy leftover is
// deleted first, a missing node is created.
func (m *Manager) ensureNode(ctx context.Context, name string) error {
	node, exists, err := m.lookup(ctx, name)
	if err != nil {
		return err
	}
	if exists && node.Healthy() {
		return nil
	}
	if exists {
		if err := m.deleteAndWait(ctx, name); err != nil {
			return err
		}
	}
	return m.create(ctx, name)
}

// recycle replaces the node after preemption or workload failure.
func (m *Manager) recycle(ctx context.Context, name string) error {
	if err := m.deleteAndWait(ctx, name); err != nil {
		return err
	}
	return m.create(ctx, name)
}

// lookup finds the node in a listing that includes preempted and deleting
// nodes.
func (m *Manager) lookup(ctx context.Context, name string) (cloud.Node, bool, error) {
	nodes, err := m.ctrl.List(ctx, cloud.ListOptions{
		Prefix:           name,
		IncludePreempted: true,
		IncludeDeleting:  true,
	})
	if err != nil {
		return cloud.Node{}, false, fmt.Errorf("failed to look up node %s: %w", name, err)
	}
	for _, node := range nodes {
		if node.Name == name {
			return node, true, nil
		}
	}
	return cloud.Node{}, false, nil
}

// create retries node creation until the zone accepts it or the context is
// cancelled.
func (m *Manager) create(ctx context.Context, name string) error {
	logger := ctxlog.FromContext(ctx)
	spec := cloud.NodeSpec{
		Name:           name,
		Zone:           m.cfg.Zone,
		Version:        m.cfg.NodeVersion,
		Preemptible:    m.cfg.Preemptible,
		ServiceAccount: m.cfg.ServiceAccount,
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := m.ctrl.Create(ctx, spec)
		if err == nil {
			return nil
		}
		logger.Warn("Node creation rejected, retrying.", "error", err)
		if !sleepCtx(ctx, time.Duration(m.cfg.Count)*m.cfg.RetryInterval) {
			return ctx.Err()
		}
	}
}

// deleteAndWait requests deletion if the node still shows up, then polls
// until the listing no longer contains it.
func (m *Manager) deleteAndWait(ctx context.Context, name string) error {
	node, exists, err := m.lookup(ctx, name)
	if err != nil {
		return err
	}
	if exists && node.State != cloud.StateDeleting {
		if err := m.ctrl.Delete(ctx, name); err != nil {
			return fmt.Errorf("failed to delete node %s: %w", name, err)
		}
	}
	for exists {
		if !sleepCtx(ctx, m.cfg.RetryInterval) {
			return ctx.Err()
		}
		if _, exists, err = m.lookup(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// watch polls the node until it leaves the healthy set (preempted or
// deleted out from under us) or the context is cancelled.
func (m *Manager) watch(ctx context.Context, name string) error {
	for {
		node, exists, err := m.lookup(ctx, name)
		if err != nil {
			return err
		}
		if !exists || !node.Healthy() {
			return nil
		}
		if !sleepCtx(ctx, m.cfg.PollInterval) {
			return ctx.Err()
		}
	}
}

// teardown deletes the worker's node on shutdown. The worker's context is
// already cancelled at this point, so it runs on a fresh one carrying the
// worker's logger.
func (m *Manager) teardown(logger *slog.Logger, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	ctx = ctxlog.WithLogger(ctx, logger)

	_, exists, err := m.lookup(ctx, name)
	if err != nil || !exists {
		return
	}
	if err := m.ctrl.Delete(ctx, name); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to delete node during teardown.", "error", err)
	}
}
