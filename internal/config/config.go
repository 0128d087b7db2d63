package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	InboxDir string `toml:"inbox_dir"`
	APIBind  string `toml:"api_bind"`
}

// Upload contains the checks applied to recordings before they are stored.
type Upload struct {
	PermittedExtensions []string `toml:"permitted_extensions"`
	MaxFileSizeMB       int64    `toml:"max_file_size_mb"`
}

// Workflow contains configuration for worker timing.
type Workflow struct {
	PollIntervalMs       int `toml:"poll_interval_ms"`
	ErrorRetryIntervalMs int `toml:"error_retry_interval_ms"`
}

// Tool describes one external command-line tool. Args may reference the
// {input}, {output}, {output_dir} and {model} placeholders.
type Tool struct {
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	ModelPath      string   `toml:"model_path"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Timeout returns the configured per-run timeout, zero meaning none.
func (t Tool) Timeout() time.Duration {
	if t.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// Tools groups the external tools behind each pipeline operation.
type Tools struct {
	Separator   Tool `toml:"separator"`
	Transcriber Tool `toml:"transcriber"`
	Renderer    Tool `toml:"renderer"`
}

// Export contains configuration for pushing completed assets to an
// S3-compatible bucket.
type Export struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	UseSSL    bool   `toml:"use_ssl"`
	Prefix    string `toml:"prefix"`
}

// Inbox contains configuration for the watched drop directory.
type Inbox struct {
	Enabled   bool   `toml:"enabled"`
	AutoStage string `toml:"auto_stage"`
	SettleMs  int    `toml:"settle_ms"`
}

// Notifications contains ntfy settings. An empty topic disables them.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// API contains HTTP surface options.
type API struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates all configuration values for lala.
//
// Configuration sections by subsystem:
//   - Paths: data, log and inbox directories plus the API bind address
//   - Upload: accepted extensions and size limit
//   - Workflow: worker polling and backoff intervals
//   - Tools: separator, transcriber and renderer commands
//   - Export: S3-compatible bucket for exported assets
//   - Inbox: watched drop directory
//   - Notifications: ntfy topic for job outcomes
//   - API: CORS origins
//   - Logging: log format, level, and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	Upload        Upload        `toml:"upload"`
	Workflow      Workflow      `toml:"workflow"`
	Tools         Tools         `toml:"tools"`
	Export        Export        `toml:"export"`
	Inbox         Inbox         `toml:"inbox"`
	Notifications Notifications `toml:"notifications"`
	API           API           `toml:"api"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file beside the config file or in the
// working directory is loaded first; variables already set in the environment win.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv(dirs ...string) error {
	seen := map[string]struct{}{}
	candidates := append([]string{}, dirs...)
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, wd)
	}
	for _, dir := range candidates {
		if dir == "" {
			continue
		}
		envPath := filepath.Join(dir, ".env")
		if _, ok := seen[envPath]; ok {
			continue
		}
		seen[envPath] = struct{}{}
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load %s: %w", envPath, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lala.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.FilesDir(), c.Paths.LogDir}
	if c.Inbox.Enabled {
		dirs = append(dirs, c.Paths.InboxDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the artifact database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "lala.db")
}

// FilesDir returns the root under which each file keeps its artifacts.
func (c *Config) FilesDir() string {
	return filepath.Join(c.Paths.DataDir, "files")
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "lalad.lock")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "lalad.log")
}

// PollInterval returns the idle wait between queue checks.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollIntervalMs) * time.Millisecond
}

// ErrorRetryInterval returns the wait after an infrastructure error.
func (c *Config) ErrorRetryInterval() time.Duration {
	return time.Duration(c.Workflow.ErrorRetryIntervalMs) * time.Millisecond
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.Upload.MaxFileSizeMB * 1024 * 1024
}

// ExtensionPermitted reports whether ext (with or without the leading dot)
// is an accepted upload extension.
func (c *Config) ExtensionPermitted(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return false
	}
	for _, allowed := range c.Upload.PermittedExtensions {
		if allowed == ext {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
