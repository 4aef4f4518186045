// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/retort/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete retort configuration.
type Config struct {
	Overlay OverlayConfig `toml:"overlay" json:"overlay"`
	Window  WindowConfig  `toml:"window" json:"window"`
	Server  ServerConfig  `toml:"server" json:"server"`
	LLM     LLMConfig     `toml:"llm" json:"llm"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// OverlayConfig holds presentation settings. The retention limit, the font
// bounds and the animation timings are fixed and not configurable.
type OverlayConfig struct {
	// FontSize is the starting font size, within [10, 20].
	FontSize int `toml:"font_size" json:"font_size"`

	// ListeningLabel is the text inside the listening bubble.
	ListeningLabel string `toml:"listening_label" json:"listening_label"`

	// ListeningMarkers turn a "status" dispatch into the listening bubble.
	ListeningMarkers []string `toml:"listening_markers" json:"listening_markers"`
}

// WindowConfig holds host window settings.
type WindowConfig struct {
	MinCols int  `toml:"min_cols" json:"min_cols"`
	MinRows int  `toml:"min_rows" json:"min_rows"`
	Mouse   bool `toml:"mouse" json:"mouse"`
}

// ServerConfig holds the local inbound transport settings.
type ServerConfig struct {
	Enabled      bool    `toml:"enabled" json:"enabled"`
	Addr         string  `toml:"addr" json:"addr"`
	Token        string  `toml:"token" json:"token"`
	RateLimit    float64 `toml:"rate_limit" json:"rate_limit"`
	Burst        int     `toml:"burst" json:"burst"`
	MaxBodyBytes int64   `toml:"max_body_bytes" json:"max_body_bytes"`
}

// LLMConfig holds the assistant model settings.
type LLMConfig struct {
	BaseURL      string  `toml:"base_url" json:"base_url"`
	APIKey       string  `toml:"api_key" json:"api_key"`
	Model        string  `toml:"model" json:"model"`
	SystemPrompt string  `toml:"system_prompt" json:"system_prompt"`
	TimeoutSecs  int     `toml:"timeout_secs" json:"timeout_secs"`
	Temperature  float64 `toml:"temperature" json:"temperature"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level     string `toml:"level" json:"level"`
	Format    string `toml:"format" json:"format"`
	Dir       string `toml:"dir" json:"dir"`
	MaxSizeMB int    `toml:"max_size_mb" json:"max_size_mb"`
	Keep      int    `toml:"keep" json:"keep"` // rotated files retained; 0 keeps all
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	FontMin     = 10
	FontMax     = 20
	FontDefault = 14

	DefaultAddr    = "127.0.0.1:8765"
	DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	DefaultModel   = "qwen-plus"

	DefaultSystemPrompt = "你是一个宇宙第一杠精AI。你的唯一任务就是反驳用户说的每一句话。" +
		"无论用户观点多么正确，你都要找到清奇的角度进行反驳。" +
		"你的回复必须：简短、犀利、幽默、出其不意。" +
		"不要有任何多余的解释、道歉或开场白，直接开杠！"
)

// Default returns a Config with all defaults set.
func Default() *Config {
	return &Config{
		Overlay: OverlayConfig{
			FontSize:         FontDefault,
			ListeningLabel:   "正在偷听…",
			ListeningMarkers: []string{"偷听", "listening"},
		},
		Window: WindowConfig{
			MinCols: 28,
			MinRows: 12,
			Mouse:   true,
		},
		Server: ServerConfig{
			Enabled:      true,
			Addr:         DefaultAddr,
			RateLimit:    50,
			Burst:        100,
			MaxBodyBytes: 1 << 20,
		},
		LLM: LLMConfig{
			BaseURL:      DefaultBaseURL,
			Model:        DefaultModel,
			SystemPrompt: DefaultSystemPrompt,
			TimeoutSecs:  60,
			Temperature:  0.9,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			MaxSizeMB: 4,
			Keep:      5,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the retort configuration directory.
func Dir() (string, error) {
	if dir := os.Getenv("RETORT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".retort"), nil
}

// Path returns the default config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LogDir returns the log directory, honoring logging.dir.
func (c *Config) LogDir() (string, error) {
	if c.Logging.Dir != "" {
		return c.Logging.Dir, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// ensureSecurePermissions tightens config file permissions to 0600 since the
// file may hold API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config at path, or the default path when path is empty.
// A missing file yields defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg. Keys absent from the file keep the values
// already in cfg.
func LoadTOML(cfg *Config, path string) error {
	_ = ensureSecurePermissions(path)

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return ValidateErrors{{Field: strings.Join(keys, ", "), Message: "unknown key"}}
	}
	return nil
}

// fillDefaults repairs zero values that would otherwise disable a component.
func (c *Config) fillDefaults() {
	d := Default()
	if c.Overlay.ListeningLabel == "" {
		c.Overlay.ListeningLabel = d.Overlay.ListeningLabel
	}
	if len(c.Overlay.ListeningMarkers) == 0 {
		c.Overlay.ListeningMarkers = d.Overlay.ListeningMarkers
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = d.LLM.BaseURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = d.LLM.Model
	}
	if c.LLM.SystemPrompt == "" {
		c.LLM.SystemPrompt = d.LLM.SystemPrompt
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to path (or the default path) atomically with 0600
// permissions.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# retort configuration file\n")
	buf.WriteString("# Generated by retort - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Overlay.FontSize < FontMin || c.Overlay.FontSize > FontMax {
		add("overlay.font_size", "%d out of range [%d, %d]", c.Overlay.FontSize, FontMin, FontMax)
	}

	if c.Window.MinCols < 1 || c.Window.MinRows < 1 {
		add("window", "min_cols and min_rows must be positive")
	}

	if c.Server.Enabled {
		host, port, err := net.SplitHostPort(c.Server.Addr)
		if err != nil {
			add("server.addr", "invalid address %q: %v", c.Server.Addr, err)
		} else {
			if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
				add("server.addr", "invalid port %q", port)
			}
			if c.Server.Token == "" && !isLoopback(host) {
				add("server.token", "required when listening on non-loopback host %q", host)
			}
		}
		if c.Server.RateLimit < 0 {
			add("server.rate_limit", "must not be negative")
		}
		if c.Server.MaxBodyBytes <= 0 {
			add("server.max_body_bytes", "must be positive")
		}
	}

	if u, err := url.Parse(c.LLM.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("llm.base_url", "invalid URL %q", c.LLM.BaseURL)
	}
	if c.LLM.TimeoutSecs < 0 {
		add("llm.timeout_secs", "must not be negative")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		add("llm.temperature", "%.2f out of range [0, 2]", c.LLM.Temperature)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", "invalid level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		add("logging.format", "invalid format %q, must be json or console", c.Logging.Format)
	}
	if c.Logging.MaxSizeMB < 0 {
		add("logging.max_size_mb", "must not be negative")
	}
	if c.Logging.Keep < 0 {
		add("logging.keep", "must not be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies RETORT_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RETORT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("RETORT_TOKEN"); v != "" {
		c.Server.Token = v
	}
	if v := os.Getenv("RETORT_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("RETORT_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("RETORT_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("DASHSCOPE_API_KEY")
	}
	if v := os.Getenv("RETORT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RETORT_FONT_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Overlay.FontSize = n
		}
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get returns the value at a dotted TOML key such as "server.addr".
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set parses value into the field at a dotted TOML key.
func (c *Config) Set(key, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		field.SetFloat(f)
	case reflect.Slice:
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field type %s for %s", field.Kind(), key)
	}
	return nil
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(key, ".")
	if key == "" || len(parts) == 0 {
		return reflect.Value{}, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i], "."))
		}
		found := false
		for j := 0; j < v.NumField(); j++ {
			if tagName(v.Type().Field(j)) == part {
				v = v.Field(j)
				found = true
				break
			}
		}
		if !found {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
	}
	return v, nil
}

func tagName(f reflect.StructField) string {
	tag := f.Tag.Get("toml")
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return strings.ToLower(f.Name)
}

// Keys returns every settable dotted key.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, tagName(section)+"."+tagName(section.Type.Field(j)))
		}
	}
	return keys
}

// =============================================================================
// CLONE / STRING
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Overlay.ListeningMarkers = append([]string(nil), c.Overlay.ListeningMarkers...)
	return &clone
}

// String renders the config as JSON with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.LLM.APIKey != "" {
		safe.LLM.APIKey = "[REDACTED]"
	}
	if safe.Server.Token != "" {
		safe.Server.Token = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
