package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Default values for optional configuration fields.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 5 * time.Second
	DefaultReadBufferSize  = 4096
	DefaultWriteBufferSize = 4096
	DefaultSendBuffer      = 64
	DefaultMaxMessageBytes = 64 * 1024
	DefaultWriteWait       = 10 * time.Second
	DefaultPongWait        = 60 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = LogFormatConsole
	DefaultSTUNURL         = "stun:stun.l.google.com:19302"
)

const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	WS      WSConfig      `yaml:"ws"`
	Pairing PairingConfig `yaml:"pairing"`
	Log     LogConfig     `yaml:"log"`
	ICE     ICEConfig     `yaml:"ice"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	// Empty or containing "*" accepts any Origin.
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type WSConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	SendBuffer      int           `yaml:"send_buffer"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	WriteWait       time.Duration `yaml:"write_wait"`
	PongWait        time.Duration `yaml:"pong_wait"`
	PingPeriod      time.Duration `yaml:"ping_period"`
}

type PairingConfig struct {
	PairOnNext bool `yaml:"pair_on_next"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ICEConfig struct {
	Servers []ICEServerConfig `yaml:"servers"`
}

type ICEServerConfig struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username"`
	Credential string   `yaml:"credential"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every zero field with its default.
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.WS.ReadBufferSize == 0 {
		c.WS.ReadBufferSize = DefaultReadBufferSize
	}
	if c.WS.WriteBufferSize == 0 {
		c.WS.WriteBufferSize = DefaultWriteBufferSize
	}
	if c.WS.SendBuffer == 0 {
		c.WS.SendBuffer = DefaultSendBuffer
	}
	if c.WS.MaxMessageBytes == 0 {
		c.WS.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.WS.WriteWait == 0 {
		c.WS.WriteWait = DefaultWriteWait
	}
	if c.WS.PongWait == 0 {
		c.WS.PongWait = DefaultPongWait
	}
	if c.WS.PingPeriod == 0 {
		// must stay below PongWait
		c.WS.PingPeriod = c.WS.PongWait * 9 / 10
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	if len(c.ICE.Servers) == 0 {
		c.ICE.Servers = []ICEServerConfig{{URLs: []string{DefaultSTUNURL}}}
	}
}

func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must not be negative"))
	}
	if c.WS.SendBuffer < 1 {
		errs = append(errs, errors.New("ws.send_buffer must be at least 1"))
	}
	if c.WS.MaxMessageBytes < 1 {
		errs = append(errs, errors.New("ws.max_message_bytes must be positive"))
	}
	if c.WS.PingPeriod >= c.WS.PongWait {
		errs = append(errs, fmt.Errorf("ws.ping_period (%s) must be less than ws.pong_wait (%s)", c.WS.PingPeriod, c.WS.PongWait))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != LogFormatConsole && c.Log.Format != LogFormatJSON {
		errs = append(errs, fmt.Errorf("log.format must be %q or %q, got %q", LogFormatConsole, LogFormatJSON, c.Log.Format))
	}
	for i, s := range c.ICE.Servers {
		if err := validateICEServer(s.WebRTC()); err != nil {
			errs = append(errs, fmt.Errorf("ice.servers[%d]: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// OriginAllowed reports whether a websocket upgrade from origin is accepted.
func (c ServerConfig) OriginAllowed(origin string) bool {
	if len(c.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func (s ICEServerConfig) WebRTC() webrtc.ICEServer {
	urls := make([]string, 0, len(s.URLs))
	for _, u := range s.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	server := webrtc.ICEServer{
		URLs:     urls,
		Username: strings.TrimSpace(s.Username),
	}
	if strings.TrimSpace(s.Credential) != "" {
		server.Credential = s.Credential
	}
	return server
}

// WebRTCServers returns the configured ICE servers in the shape browsers
// expect for RTCPeerConnection.
func (c ICEConfig) WebRTCServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(c.Servers))
	for _, s := range c.Servers {
		out = append(out, s.WebRTC())
	}
	return out
}

func validateICEServer(server webrtc.ICEServer) error {
	if len(server.URLs) == 0 {
		return errors.New("missing urls")
	}

	requiresTurnCreds := false
	for _, url := range server.URLs {
		lower := strings.ToLower(url)
		switch {
		case strings.HasPrefix(lower, "stun:"), strings.HasPrefix(lower, "stuns:"):
		case strings.HasPrefix(lower, "turn:"), strings.HasPrefix(lower, "turns:"):
			requiresTurnCreds = true
		default:
			return fmt.Errorf("unsupported url scheme: %q", url)
		}
	}

	if requiresTurnCreds {
		if server.Username == "" {
			return errors.New("turn urls require username")
		}
		if cred, ok := server.Credential.(string); !ok || cred == "" {
			return errors.New("turn urls require credential")
		}
	}
	return nil
}
