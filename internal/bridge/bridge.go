package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/coop"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/infrastructure/mqtt"
	"github.com/cantcodewontcode/homebridge-omlet-coop/internal/omlet"
)

// commandTimeout bounds the device call made for one inbound command.
// Covers the cloud round trip plus one recovery login.
const commandTimeout = 30 * time.Second

// Publisher is the slice of the MQTT client the bridge needs.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Coordinator is the device coordinator surface the bridge depends on.
type Coordinator interface {
	Subscribe(obs coop.Observer)
	Issue(ctx context.Context, action omlet.Action) error
}

// Logger defines the logging interface used by the Bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds configuration for creating a bridge.
type Options struct {
	// Publisher is the MQTT client.
	Publisher Publisher

	// Coordinator owns the device cache and command path.
	Coordinator Coordinator

	// QoS is the QoS level for the command subscription.
	QoS byte

	// Logger is an optional structured logger.
	Logger Logger
}

// Bridge translates between the coordinator and MQTT.
//
// Thread Safety: command handlers run on the MQTT client's goroutines
// and observer callbacks on the poll loop's; both paths are safe
// concurrently.
type Bridge struct {
	publisher   Publisher
	coordinator Coordinator
	qos         byte
	logger      Logger

	// ctx bounds inbound command handling; set by Start.
	ctx context.Context
	mu  sync.Mutex
}

// New creates a bridge. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.Publisher == nil {
		return nil, fmt.Errorf("bridge: publisher is required")
	}
	if opts.Coordinator == nil {
		return nil, fmt.Errorf("bridge: coordinator is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Bridge{
		publisher:   opts.Publisher,
		coordinator: opts.Coordinator,
		qos:         opts.QoS,
		logger:      logger,
	}, nil
}

// Start wires the bridge up: it registers the state observer with the
// coordinator and subscribes to the command topics.
//
// Must be called before the coordinator's poll loop starts, so no
// snapshot is missed. ctx bounds the lifetime of inbound command
// handling; cancelling it causes later commands to fail fast.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	b.coordinator.Subscribe(b.publishSnapshot)

	topics := mqtt.Topics{}
	if err := b.publisher.Subscribe(topics.AllCommands(), b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribing to command topics: %w", err)
	}

	b.logger.Info("bridge started", "commands", topics.AllCommands(), "state", topics.State())
	return nil
}

// publishSnapshot pushes one snapshot to the retained state topic.
func (b *Bridge) publishSnapshot(snap coop.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		b.logger.Error("marshalling snapshot", "error", err)
		return
	}

	if err := b.publisher.PublishRetained(mqtt.Topics{}.State(), payload); err != nil {
		b.logger.Warn("publishing state", "error", err)
	}
}

// handleCommand translates one inbound MQTT command into a device action.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	action, err := parseCommand(topic, payload)
	if err != nil {
		return err
	}

	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := b.coordinator.Issue(cmdCtx, action); err != nil {
		return fmt.Errorf("issuing %s: %w", action, err)
	}

	b.logger.Info("command handled", "topic", topic, "action", action)
	return nil
}

// parseCommand maps a command topic and payload to a device action.
func parseCommand(topic string, payload []byte) (omlet.Action, error) {
	value := strings.ToLower(strings.TrimSpace(string(payload)))
	topics := mqtt.Topics{}

	switch topic {
	case topics.DoorCommand():
		switch value {
		case "open":
			return omlet.ActionOpen, nil
		case "close":
			return omlet.ActionClose, nil
		}
		return "", fmt.Errorf("%w: door command %q", ErrBadCommandPayload, value)
	case topics.LightCommand():
		switch value {
		case "on":
			return omlet.ActionLightOn, nil
		case "off":
			return omlet.ActionLightOff, nil
		}
		return "", fmt.Errorf("%w: light command %q", ErrBadCommandPayload, value)
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownCommandTopic, topic)
}
