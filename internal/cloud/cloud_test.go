package cloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, nodes []map[string]string) *APIClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/zones/europe-west4-a/nodes", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]any{"nodes": nodes})
		require.NoError(t, err)
	}))
	t.Cleanup(server.Close)

	api := NewAPIClient(server.URL, "europe-west4-a")
	t.Cleanup(func() { _ = api.Close() })
	return api
}

func TestAPIClientList(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, []map[string]string{
		{"name": "projects/p/locations/europe-west4-a/nodes/trainer-2", "state": "READY"},
		{"name": "projects/p/locations/europe-west4-a/nodes/trainer-1", "state": "PREEMPTED"},
		{"name": "projects/p/locations/europe-west4-a/nodes/trainer-3", "state": "DELETING"},
		{"name": "projects/p/locations/europe-west4-a/nodes/other-1", "state": "READY"},
	})

	t.Run("filters by prefix and hides preempted and deleting by default", func(t *testing.T) {
		t.Parallel()
		nodes, err := api.List(context.Background(), ListOptions{Prefix: "trainer"})
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.Equal(t, "trainer-2", nodes[0].Name)
		assert.Equal(t, StateReady, nodes[0].State)
	})

	t.Run("includes preempted and deleting on request", func(t *testing.T) {
		t.Parallel()
		nodes, err := api.List(context.Background(), ListOptions{
			Prefix:           "trainer",
			IncludePreempted: true,
			IncludeDeleting:  true,
		})
		require.NoError(t, err)
		require.Len(t, nodes, 3)
		// Name-sorted.
		assert.Equal(t, "trainer-1", nodes[0].Name)
		assert.Equal(t, "trainer-2", nodes[1].Name)
		assert.Equal(t, "trainer-3", nodes[2].Name)
	})

	t.Run("empty prefix matches everything", func(t *testing.T) {
		t.Parallel()
		nodes, err := api.List(context.Background(), ListOptions{IncludePreempted: true, IncludeDeleting: true})
		require.NoError(t, err)
		assert.Len(t, nodes, 4)
	})
}

func TestAPIClientListRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]any{"nodes": []map[string]string{
			{"name": "projects/p/locations/z/nodes/trainer-1", "state": "READY"},
		}})
		require.NoError(t, err)
	}))
	t.Cleanup(server.Close)

	api := NewAPIClient(server.URL, "z")
	t.Cleanup(func() { _ = api.Close() })

	nodes, err := api.List(context.Background(), ListOptions{Prefix: "trainer"})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "trainer-1", nodes[0].Name)
	assert.Equal(t, int32(2), hits.Load())
}

func TestAPIClientListServerError(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	api := NewAPIClient(server.URL, "z")
	t.Cleanup(func() { _ = api.Close() })

	_, err := api.List(context.Background(), ListOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list nodes")
	// Initial attempt plus every configured retry.
	assert.Equal(t, int32(4), hits.Load())
}

func TestNodeHealthy(t *testing.T) {
	t.Parallel()

	assert.True(t, Node{State: StateReady}.Healthy())
	assert.True(t, Node{State: StateCreating}.Healthy())
	assert.False(t, Node{State: StatePreempted}.Healthy())
	assert.False(t, Node{State: StateDeleting}.Healthy())
}

// captureCLI returns a controller whose CLI invocations are recorded
// instead of executed.
func captureCLI(t *testing.T) (*CLIController, *[][]string) {
	t.Helper()
	api := NewAPIClient("http://unused.invalid", "europe-west4-a")
	t.Cleanup(func() { _ = api.Close() })

	ctrl := NewCLIController(api, "gcloud")
	var calls [][]string
	ctrl.runCLI = func(ctx context.Context, args ...string) error {
		calls = append(calls, args)
		return nil
	}
	return ctrl, &calls
}

func TestCLIControllerCreate(t *testing.T) {
	t.Parallel()

	ctrl, calls := captureCLI(t)
	err := ctrl.Create(context.Background(), NodeSpec{
		Name:           "trainer-1",
		Zone:           "europe-west4-a",
		Version:        3,
		Preemptible:    true,
		ServiceAccount: "svc@project.iam",
	})
	require.NoError(t, err)
	require.Len(t, *calls, 1)
	assert.Equal(t, []string{
		"alpha", "compute", "tpus", "tpu-vm", "create", "trainer-1",
		"--zone", "europe-west4-a",
		"--accelerator-type", "v3-8",
		"--version", "v2-alpha",
		"--preemptible",
		"--service-account", "svc@project.iam",
	}, (*calls)[0])
}

func TestCLIControllerDelete(t *testing.T) {
	t.Parallel()

	ctrl, calls := captureCLI(t)
	require.NoError(t, ctrl.Delete(context.Background(), "trainer-1"))
	require.Len(t, *calls, 1)
	assert.Equal(t, []string{
		"alpha", "compute", "tpus", "tpu-vm", "delete", "trainer-1",
		"--zone", "europe-west4-a", "--quiet", "--async",
	}, (*calls)[0])
}

func TestCLIControllerRemoteOps(t *testing.T) {
	t.Parallel()

	ctrl, calls := captureCLI(t)
	require.NoError(t, ctrl.PushFile(context.Background(), "trainer-1", "setup.sh", "~/setup.sh"))
	require.NoError(t, ctrl.RunCommand(context.Background(), "trainer-1", "bash setup.sh"))
	require.Len(t, *calls, 2)

	assert.Equal(t, []string{
		"alpha", "compute", "tpus", "tpu-vm", "scp", "setup.sh",
		"ubuntu@trainer-1:~/setup.sh", "--zone", "europe-west4-a",
	}, (*calls)[0])
	assert.Equal(t, []string{
		"alpha", "compute", "tpus", "tpu-vm", "ssh", "ubuntu@trainer-1",
		"--zone", "europe-west4-a", "--command", "bash setup.sh",
	}, (*calls)[1])
}
