// Package config resolves widget settings from flags, QFC_* environment
// variables, a YAML file and built-in defaults, in that order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/api"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/bridge"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/channel"
	"github.com/nazir-hasan-azka/qfc-ai-assistant-fe/internal/origin"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Transport kinds the widget can dial the host with.
const (
	TransportWebsocket = "websocket"
	TransportPhoenix   = "phoenix"
)

const (
	DefaultHostURL      = "ws://localhost:8787/widget"
	DefaultWidgetOrigin = "http://localhost:3000"
	DefaultListenAddr   = "localhost:8787"
	DefaultPhoenixTopic = "widget:lobby"
	DefaultEnv          = "production"
	dirName             = ".qfc_widget"
)

// Config is everything the widget and the demo host need at startup.
type Config struct {
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
	AutoReconnect     bool          `yaml:"auto_reconnect"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	Env               string        `yaml:"env"`
	Debug             bool          `yaml:"debug"`

	// ParentURL stands in for the document referrer; empty means the widget
	// runs top-level.
	ParentURL    string `yaml:"parent_url"`
	HostURL      string `yaml:"host_url"`
	WidgetOrigin string `yaml:"widget_origin"`
	Transport    string `yaml:"transport"`
	PhoenixTopic string `yaml:"phoenix_topic"`
	APIKey       string `yaml:"api_key"`

	APIBaseURL string `yaml:"api_base_url"`
	SessionDB  string `yaml:"session_db"`

	ListenAddr string `yaml:"listen_addr"`
	HostToken  string `yaml:"host_token"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		ConnectionTimeout: channel.DefaultTimeout,
		AutoReconnect:     true,
		Env:               DefaultEnv,
		HostURL:           DefaultHostURL,
		WidgetOrigin:      DefaultWidgetOrigin,
		Transport:         TransportWebsocket,
		PhoenixTopic:      DefaultPhoenixTopic,
		APIBaseURL:        api.DefaultBaseURL,
		SessionDB:         filepath.Join(homeDir(), dirName, "session.db"),
		ListenAddr:        DefaultListenAddr,
	}
}

// DefaultPath is where the YAML file lives unless --config says otherwise.
func DefaultPath() string {
	return filepath.Join(homeDir(), dirName, "config.yaml")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// Flag names shared by the CLI.
const (
	FlagConfig            = "config"
	FlagConnectionTimeout = "connection-timeout"
	FlagAutoReconnect     = "auto-reconnect"
	FlagAllowedOrigins    = "allowed-origins"
	FlagEnv               = "env"
	FlagDebug             = "debug"
	FlagParentURL         = "parent-url"
	FlagHostURL           = "host-url"
	FlagWidgetOrigin      = "widget-origin"
	FlagTransport         = "transport"
	FlagPhoenixTopic      = "phoenix-topic"
	FlagAPIKey            = "api-key"
	FlagAPIBaseURL        = "api-base-url"
	FlagSessionDB         = "session-db"
	FlagListen            = "listen"
	FlagHostToken         = "host-token"
)

// BindFlags registers every setting on fs. Defaults shown in help come from
// Default(); only flags the user actually set override other sources.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagConfig, DefaultPath(), "path to the YAML config file")
	fs.Duration(FlagConnectionTimeout, d.ConnectionTimeout, "handshake timeout")
	fs.Bool(FlagAutoReconnect, d.AutoReconnect, "retry failed connections every 5s")
	fs.StringSlice(FlagAllowedOrigins, nil, "parent origins allowed to talk to the widget (exact or *.domain)")
	fs.String(FlagEnv, d.Env, "environment; development disables origin checks")
	fs.Bool(FlagDebug, d.Debug, "log every channel frame")
	fs.String(FlagParentURL, d.ParentURL, "URL of the embedding page (empty: run top-level)")
	fs.String(FlagHostURL, d.HostURL, "host endpoint to dial")
	fs.String(FlagWidgetOrigin, d.WidgetOrigin, "origin the widget presents to the host")
	fs.String(FlagTransport, d.Transport, "transport kind: websocket or phoenix")
	fs.String(FlagPhoenixTopic, d.PhoenixTopic, "phoenix channel topic")
	fs.String(FlagAPIKey, d.APIKey, "phoenix socket API key")
	fs.String(FlagAPIBaseURL, d.APIBaseURL, "backend API base URL")
	fs.String(FlagSessionDB, d.SessionDB, "SQLite file holding the chat session")
	fs.String(FlagListen, d.ListenAddr, "address the demo host listens on")
	fs.String(FlagHostToken, d.HostToken, "auth token the demo host hands out")
}

// Load resolves the configuration. fs may be nil when no flags apply.
func Load(fs *pflag.FlagSet) (Config, error) {
	cfg := Default()

	path := DefaultPath()
	if fs != nil {
		if p, err := fs.GetString(FlagConfig); err == nil && p != "" {
			path = p
		}
	}
	if err := cfg.mergeFile(path); err != nil {
		return cfg, err
	}
	if err := cfg.mergeEnv(); err != nil {
		return cfg, err
	}
	if fs != nil {
		if err := cfg.mergeFlags(fs); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

// mergeFile overlays values from the YAML file at path. A missing file is
// not an error.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "parsing config %s", path)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	if v, ok := lookupEnv("QFC_WIDGET_CONNECTION_TIMEOUT"); ok {
		d, err := parseTimeout(v)
		if err != nil {
			return errors.Wrap(err, "QFC_WIDGET_CONNECTION_TIMEOUT")
		}
		c.ConnectionTimeout = d
	}
	if v, ok := lookupEnv("QFC_WIDGET_AUTO_RECONNECT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "QFC_WIDGET_AUTO_RECONNECT")
		}
		c.AutoReconnect = b
	}
	if v, ok := lookupEnv("QFC_WIDGET_ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = origin.ParseList(v)
	}
	if v, ok := lookupEnv("QFC_WIDGET_DEBUG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "QFC_WIDGET_DEBUG")
		}
		c.Debug = b
	}
	setString(&c.Env, "QFC_WIDGET_ENV")
	setString(&c.ParentURL, "QFC_WIDGET_PARENT_URL")
	setString(&c.HostURL, "QFC_WIDGET_HOST_URL")
	setString(&c.WidgetOrigin, "QFC_WIDGET_ORIGIN")
	setString(&c.Transport, "QFC_WIDGET_TRANSPORT")
	setString(&c.PhoenixTopic, "QFC_WIDGET_PHOENIX_TOPIC")
	setString(&c.APIKey, "QFC_WIDGET_API_KEY")
	setString(&c.APIBaseURL, "QFC_API_BASE_URL")
	setString(&c.SessionDB, "QFC_WIDGET_SESSION_DB")
	setString(&c.HostToken, "QFC_HOST_TOKEN")
	return nil
}

func (c *Config) mergeFlags(fs *pflag.FlagSet) error {
	var err error
	changed := func(name string) bool {
		f := fs.Lookup(name)
		return err == nil && f != nil && f.Changed
	}

	if changed(FlagConnectionTimeout) {
		c.ConnectionTimeout, err = fs.GetDuration(FlagConnectionTimeout)
	}
	if changed(FlagAutoReconnect) {
		c.AutoReconnect, err = fs.GetBool(FlagAutoReconnect)
	}
	if changed(FlagAllowedOrigins) {
		var list []string
		list, err = fs.GetStringSlice(FlagAllowedOrigins)
		c.AllowedOrigins = origin.ParseList(strings.Join(list, ","))
	}
	if changed(FlagDebug) {
		c.Debug, err = fs.GetBool(FlagDebug)
	}
	for name, dst := range map[string]*string{
		FlagEnv:          &c.Env,
		FlagParentURL:    &c.ParentURL,
		FlagHostURL:      &c.HostURL,
		FlagWidgetOrigin: &c.WidgetOrigin,
		FlagTransport:    &c.Transport,
		FlagPhoenixTopic: &c.PhoenixTopic,
		FlagAPIKey:       &c.APIKey,
		FlagAPIBaseURL:   &c.APIBaseURL,
		FlagSessionDB:    &c.SessionDB,
		FlagListen:       &c.ListenAddr,
		FlagHostToken:    &c.HostToken,
	} {
		if changed(name) {
			*dst, err = fs.GetString(name)
		}
	}
	return errors.Wrap(err, "reading flags")
}

// Validate rejects settings the widget cannot start with.
func (c Config) Validate() error {
	if c.ConnectionTimeout <= 0 {
		return errors.Errorf("connection timeout must be positive, got %s", c.ConnectionTimeout)
	}
	switch c.Transport {
	case TransportWebsocket, TransportPhoenix:
	default:
		return errors.Errorf("unknown transport %q (want %s or %s)", c.Transport, TransportWebsocket, TransportPhoenix)
	}
	if c.HostURL == "" {
		return errors.New("host url is empty")
	}
	return nil
}

// Policy builds the origin allow-list policy
func (c Config) Policy() *origin.Policy {
	return origin.NewPolicy(c.AllowedOrigins, origin.IsDevelopment(c.Env))
}

// ManagerOptions maps the connection settings onto bridge options.
func (c Config) ManagerOptions() []bridge.Option {
	return []bridge.Option{
		bridge.WithConnectionTimeout(c.ConnectionTimeout),
		bridge.WithAutoReconnect(c.AutoReconnect),
		bridge.WithDebug(c.Debug),
	}
}

// Save writes c as YAML to path, creating the directory.
func Save(c Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing config %s", path)
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookupEnv(key); ok {
		*dst = v
	}
}

// parseTimeout accepts a Go duration ("10s") or a bare millisecond count.
func parseTimeout(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}
