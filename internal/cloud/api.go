package cloud

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	resty "resty.dev/v3"

	"github.com/homebrewnlp/launchpad/internal/ctxlog"
)

// APIClient reads node state from the control plane's REST API.
type APIClient struct {
	client *resty.Client
	zone   string
}

// NewAPIClient builds a client for the given API base URL and zone. The
// control plane throws transient 5xx errors under load, so requests retry
// with backoff before a failure surfaces to callers.
func NewAPIClient(endpoint, zone string) *APIClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(endpoint, "/")).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	return &APIClient{client: client, zone: zone}
}

// Close releases the underlying HTTP client.
func (c *APIClient) Close() error {
	c.client.Close()
	return nil
}

// nodesResponse mirrors the API's node listing payload. Node names come
// back fully qualified (".../locations/<zone>/nodes/<name>").
type nodesResponse struct {
	Nodes []struct {
		Name  string `json:"name"`
		State string `json:"state"`
	} `json:"nodes"`
}

// List implements the listing half of a Controller.
func (c *APIClient) List(ctx context.Context, opts ListOptions) ([]Node, error) {
	logger := ctxlog.FromContext(ctx)

	var payload nodesResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&payload).
		Get(fmt.Sprintf("/zones/%s/nodes", c.zone))
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes in zone %s: %w", c.zone, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to list nodes in zone %s: %s", c.zone, resp.Status())
	}

	nodes := make([]Node, 0, len(payload.Nodes))
	for _, raw := range payload.Nodes {
		node := Node{Name: shortName(raw.Name), State: State(raw.State)}
		if !strings.HasPrefix(node.Name, opts.Prefix) {
			continue
		}
		if node.State == StatePreempted && !opts.IncludePreempted {
			continue
		}
		if node.State == StateDeleting && !opts.IncludeDeleting {
			continue
		}
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })

	logger.Debug("Listed nodes.", "zone", c.zone, "prefix", opts.Prefix, "count", len(nodes))
	return nodes, nil
}

// shortName strips the fully qualified resource path down to the node name.
func shortName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
