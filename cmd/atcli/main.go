// Command atcli drives a modem over a serial port and exposes it over
// HTTP, optionally forwarding unsolicited result codes to an MQTT topic.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	atat "github.com/BlackbirdHQ/atat-go"
	"github.com/BlackbirdHQ/atat-go/digester"
	"github.com/BlackbirdHQ/atat-go/ingress"
	"github.com/BlackbirdHQ/atat-go/mqtturc"
	"github.com/BlackbirdHQ/atat-go/serialtransport"
)

func main() {
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.Bool("legacy-serial", false, "Use the tarm/serial dialer instead of go.bug.st/serial")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Bool("echo", true, "Whether the modem echoes commands before its response")
	flag.Duration("cooldown", 20*time.Millisecond, "Minimum gap enforced between commands")
	flag.Duration("default-timeout", time.Second, "Default per-command response timeout")
	flag.String("mqtt-broker", "", "MQTT broker URL for URC forwarding (empty disables it)")
	flag.String("mqtt-topic", "atat/urc", "MQTT topic URCs are published to")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(config.LogLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var dialer serialtransport.Dialer
	if config.LegacySerial {
		dialer = serialtransport.LegacyDialer{PortName: config.SerialPort, Baud: config.BaudRate}
	} else {
		mode := serialtransport.DefaultMode()
		mode.BaudRate = config.BaudRate
		dialer = serialtransport.SerialDialer{PortName: config.SerialPort, Mode: mode}
	}

	transport, err := dialer.Dial(ctx)
	if err != nil {
		logger.Error("failed to dial modem", "error", err)
		os.Exit(1)
	}
	defer transport.Close()

	atatCfg, err := atat.NewConfigBuilder().
		WithEchoEnabled(config.EchoEnabled).
		WithCooldown(config.Cooldown).
		WithDefaultTimeout(config.DefaultTimeout).
		Build()
	if err != nil {
		logger.Error("failed to build client config", "error", err)
		os.Exit(1)
	}

	mgr := ingress.New(ingress.Config{
		BufferCapacity:  256,
		ResponseQueueSz: 4,
		UrcQueueSz:      16,
		ControlQueueSz:  3,
		Digester: digester.Config{
			LineTerm:    atatCfg.LineTerm,
			FormatByte:  atatCfg.FormatByte,
			EchoEnabled: atatCfg.EchoEnabled,
		},
	}, nil)

	var urcHandler atat.UrcHandler
	var forwarder *mqtturc.Forwarder
	if config.MqttBroker != "" {
		forwarder, err = mqtturc.Connect(mqtturc.Config{
			Broker:   config.MqttBroker,
			ClientID: config.MqttClientID,
			Topic:    config.MqttTopic,
			Username: config.MqttUsername,
			Password: config.MqttPassword,
		}, logger.With("component", "mqtturc"))
		if err != nil {
			logger.Error("failed to connect to MQTT broker", "error", err)
			os.Exit(1)
		}
		urcHandler = forwarder.Handle
	}

	client := atat.NewClient(atatCfg, transport, mgr, urcHandler)

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger: logger.With("component", "server"),
			Client: client,
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return atat.RunIngress(gctx, transport, mgr)
	})

	if forwarder != nil {
		g.Go(func() error {
			return mqtturc.Run(gctx, forwarder)
		})
	}

	g.Go(func() error {
		logger.Info("starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		logger.Error("atcli exited with error", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
