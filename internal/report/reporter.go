// Package report streams launch events to an external status endpoint over
// socket.io, so fleet activity can be watched from a dashboard while the
// launcher runs unattended. Reporting is strictly best-effort: a broken
// reporter never fails a launch.
package report

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/homebrewnlp/launchpad/internal/ctxlog"
)

// EventName is the socket.io event carrying launch status payloads.
const EventName = "launch_event"

// connectTimeout bounds the initial handshake.
const connectTimeout = 15 * time.Second

// Event is one status update about a node or a local launch.
type Event struct {
	Node   string    `json:"node"`
	State  string    `json:"state"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Reporter publishes launch events.
type Reporter interface {
	Publish(ctx context.Context, event Event)
	Close()
}

// Nop is the reporter used when no status endpoint is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
func (Nop) Close()                         {}

// SocketIO is a Reporter backed by a persistent socket.io connection.
type SocketIO struct {
	io *socket.Socket
}

// Dial connects to the status endpoint and waits for the handshake to
// complete before returning.
func Dial(ctx context.Context, rawURL string) (*SocketIO, error) {
	logger := ctxlog.FromContext(ctx).With("reporter", "socketio", "url", rawURL)
	logger.Info("Connecting to status endpoint...")

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse status URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket("/", opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to status endpoint.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("status endpoint connection failed: %w", err)
		}
		return &SocketIO{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while connecting to status endpoint")
	case <-time.After(connectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %v connecting to status endpoint", connectTimeout)
	}
}

// Publish emits the event. Failures are logged and swallowed.
func (r *SocketIO) Publish(ctx context.Context, event Event) {
	logger := ctxlog.FromContext(ctx)
	if !r.io.Connected() {
		logger.Warn("Status endpoint not connected, dropping event.", "node", event.Node, "state", event.State)
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	logger.Debug("Emitting launch event.", "node", event.Node, "state", event.State)
	r.io.Emit(EventName, event)
}

// Close disconnects from the status endpoint.
func (r *SocketIO) Close() {
	r.io.Disconnect()
}
