package chatroom

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config controls how the SDK connects.
type Config struct {
	URL        string `yaml:"url"`          // websocket endpoint, without room/user query
	APIBaseURL string `yaml:"api_base_url"` // room provisioning API

	Reconnect      bool          `yaml:"reconnect"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
}

// DefaultReconnectDelay is the fixed wait between reconnection attempts.
const DefaultReconnectDelay = 3000 * time.Millisecond

// DefaultConfig returns sensible defaults.
// ReadTimeout is disabled: an idle room is not a dead connection.
func DefaultConfig() Config {
	return Config{
		URL:              "ws://localhost:8080/ws/chat",
		APIBaseURL:       "http://localhost:8080",
		Reconnect:        true,
		ReconnectDelay:   DefaultReconnectDelay,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
// Durations use Go syntax, e.g. "3s" or "1500ms".
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, WrapError(ErrorInvalidConfig, "read config "+path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, WrapError(ErrorInvalidConfig, "parse config "+path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports the first problem found in cfg.
func (c Config) Validate() error {
	if c.URL == "" {
		return NewError(ErrorInvalidConfig, "empty URL")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return WrapError(ErrorInvalidConfig, "invalid URL", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return NewError(ErrorInvalidConfig, fmt.Sprintf("unsupported URL scheme %q", u.Scheme))
	}
	if c.ReconnectDelay < 0 || c.HandshakeTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return NewError(ErrorInvalidConfig, "durations must not be negative")
	}
	return nil
}

// Endpoint returns the connection URL for a room and user.
func (c Config) Endpoint(roomID, username string) (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", WrapError(ErrorInvalidConfig, "invalid URL", err)
	}
	q := "roomId=" + encodeComponent(roomID) + "&username=" + encodeComponent(username)
	if u.RawQuery != "" {
		u.RawQuery += "&" + q
	} else {
		u.RawQuery = q
	}
	return u.String(), nil
}

// encodeComponent percent-encodes s, spaces included, so the server sees the
// same bytes a browser's encodeURIComponent would send.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
