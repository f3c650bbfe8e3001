package atat

import (
	"time"

	"github.com/BlackbirdHQ/atat-go/digester"
)

// Config is the engine's immutable-after-construction runtime parameters.
// All fields have sensible defaults; build one with NewConfigBuilder.
type Config struct {
	// LineTerm is the first byte of the received line terminator, ahead of
	// FormatByte (default '\r'). It is not appended to transmitted
	// commands: each Command's Serialize writes its own terminator, and Raw
	// always appends '\r'.
	LineTerm byte
	// FormatByte follows LineTerm in received line terminators (default
	// '\n').
	FormatByte byte
	// EchoEnabled indicates the modem echoes the command line back
	// before its response (default true).
	EchoEnabled bool
	// Cooldown is the minimum gap enforced between the transmission of one
	// command and the transmission of the next (default 20ms).
	Cooldown time.Duration
	// DefaultTimeout is used for commands whose Timeout() returns zero
	// (default 1s).
	DefaultTimeout time.Duration
	// Mode selects how SendCommand waits for a response (default
	// Blocking).
	Mode Mode

	// BufferCapacity is the ingress buffer's fixed size (default 256).
	BufferCapacity int
	// ResponseQueueSz is the response queue's capacity (default 4).
	ResponseQueueSz int
	// UrcQueueSz is the URC queue's capacity (default 10).
	UrcQueueSz int
	// ControlQueueSz is the control queue's capacity (default 3).
	ControlQueueSz int
}

func (c Config) digesterConfig() digester.Config {
	return digester.Config{LineTerm: c.LineTerm, FormatByte: c.FormatByte, EchoEnabled: c.EchoEnabled}
}

// ConfigBuilder constructs a Config with defaults applied for any field not
// explicitly set, mirroring the engine-level builder-with-validation
// pattern used throughout this codebase's configuration layers.
type ConfigBuilder struct {
	cfg Config
	set map[string]bool
}

// NewConfigBuilder starts a new builder.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{set: make(map[string]bool)}
}

func (b *ConfigBuilder) WithLineTerm(c byte) *ConfigBuilder {
	b.cfg.LineTerm = c
	b.set["LineTerm"] = true
	return b
}

func (b *ConfigBuilder) WithFormatByte(c byte) *ConfigBuilder {
	b.cfg.FormatByte = c
	b.set["FormatByte"] = true
	return b
}

func (b *ConfigBuilder) WithEchoEnabled(v bool) *ConfigBuilder {
	b.cfg.EchoEnabled = v
	b.set["EchoEnabled"] = true
	return b
}

func (b *ConfigBuilder) WithCooldown(d time.Duration) *ConfigBuilder {
	b.cfg.Cooldown = d
	b.set["Cooldown"] = true
	return b
}

func (b *ConfigBuilder) WithDefaultTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.DefaultTimeout = d
	b.set["DefaultTimeout"] = true
	return b
}

func (b *ConfigBuilder) WithMode(m Mode) *ConfigBuilder {
	b.cfg.Mode = m
	b.set["Mode"] = true
	return b
}

func (b *ConfigBuilder) WithBufferCapacity(n int) *ConfigBuilder {
	b.cfg.BufferCapacity = n
	b.set["BufferCapacity"] = true
	return b
}

func (b *ConfigBuilder) WithResponseQueueSize(n int) *ConfigBuilder {
	b.cfg.ResponseQueueSz = n
	b.set["ResponseQueueSz"] = true
	return b
}

func (b *ConfigBuilder) WithUrcQueueSize(n int) *ConfigBuilder {
	b.cfg.UrcQueueSz = n
	b.set["UrcQueueSz"] = true
	return b
}

func (b *ConfigBuilder) WithControlQueueSize(n int) *ConfigBuilder {
	b.cfg.ControlQueueSz = n
	b.set["ControlQueueSz"] = true
	return b
}

// Build applies defaults for anything not explicitly set and returns the
// resulting Config. Build never fails (there is no required field at this
// layer — a Dialer/Transport, when one is needed, comes from the
// serialtransport package's dialer types, not from this Config).
func (b *ConfigBuilder) Build() (Config, error) {
	if !b.set["LineTerm"] {
		b.cfg.LineTerm = '\r'
	}
	if !b.set["FormatByte"] {
		b.cfg.FormatByte = '\n'
	}
	if !b.set["EchoEnabled"] {
		b.cfg.EchoEnabled = true
	}
	if !b.set["Cooldown"] {
		b.cfg.Cooldown = 20 * time.Millisecond
	}
	if !b.set["DefaultTimeout"] {
		b.cfg.DefaultTimeout = time.Second
	}
	if !b.set["BufferCapacity"] {
		b.cfg.BufferCapacity = 256
	}
	if !b.set["ResponseQueueSz"] {
		b.cfg.ResponseQueueSz = 4
	}
	if !b.set["UrcQueueSz"] {
		b.cfg.UrcQueueSz = 10
	}
	if !b.set["ControlQueueSz"] {
		b.cfg.ControlQueueSz = 3
	}
	return b.cfg, nil
}
