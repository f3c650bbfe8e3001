// Package mqtturc forwards unsolicited result codes observed by an
// atat.Client onto an MQTT topic, so URCs can be consumed by systems that
// are not the process driving the modem directly.
package mqtturc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config configures the MQTT connection and publish topic.
type Config struct {
	// Broker is the broker URL, e.g. "tcp://localhost:1883".
	Broker string
	// ClientID identifies this connection to the broker.
	ClientID string
	// Topic is published to, once per URC line.
	Topic string
	// Username and Password authenticate the connection; Username == ""
	// disables authentication.
	Username string
	Password string
	// QoS is the publish quality of service (0, 1, or 2).
	QoS byte
	// ConnectTimeout bounds Connect. Zero selects 10s.
	ConnectTimeout time.Duration
}

// Forwarder publishes each URC line it is handed to an MQTT topic. Its
// Handle method has the atat.UrcHandler signature (func(line []byte)) and
// can be passed directly to atat.NewClient.
type Forwarder struct {
	cfg    Config
	client mqtt.Client
	log    *slog.Logger
}

// Connect dials the broker and blocks until the connection completes or
// cfg.ConnectTimeout elapses.
func Connect(cfg Config, log *slog.Logger) (*Forwarder, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtturc: broker is required")
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	f := &Forwarder{cfg: cfg, log: log}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtturc: connection lost", "error", err)
	})
	opts.SetConnectTimeout(timeout)

	f.client = mqtt.NewClient(opts)
	token := f.client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtturc: connect to %q timed out after %s", cfg.Broker, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtturc: connect to %q: %w", cfg.Broker, err)
	}
	log.Info("mqtturc: connected", "broker", cfg.Broker, "topic", cfg.Topic)
	return f, nil
}

// Handle publishes line to the configured topic. It never blocks past the
// client's own publish buffering; a publish failure is logged, not
// returned, since UrcHandler has no error return (a URC that fails to
// forward must not stall the command-response loop that invoked it).
func (f *Forwarder) Handle(line []byte) {
	cp := make([]byte, len(line))
	copy(cp, line)
	token := f.client.Publish(f.cfg.Topic, f.cfg.QoS, false, cp)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			f.log.Warn("mqtturc: publish failed", "topic", f.cfg.Topic, "error", err)
		}
	}()
}

// Close disconnects from the broker, waiting up to waitMs milliseconds for
// in-flight work to drain.
func (f *Forwarder) Close(waitMs uint) {
	f.client.Disconnect(waitMs)
}

// Run disconnects the forwarder when ctx is cancelled; it is meant to run
// on its own goroutine alongside atat.RunIngress, coordinated by an
// errgroup.
func Run(ctx context.Context, f *Forwarder) error {
	<-ctx.Done()
	f.Close(500)
	return ctx.Err()
}
