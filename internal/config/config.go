package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Template source constants
	SourceFS    = "fs"
	SourceMinio = "minio"

	// Default values
	DefaultPort            = 5000
	DefaultHost            = "0.0.0.0"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultTemplateDir     = "templates"
	DefaultOutputDir       = "output"
	DefaultMaxTemplateSize = 20 * 1024 * 1024 // 20MB
	DefaultRateLimit       = 60               // requests per minute and client
	DefaultFontSize        = 10.0             // points, for fields with an auto sized DA

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "CONTRATOS"
)

// MinioConfig locates templates in an S3 compatible bucket
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// Config holds all configuration for the contract service
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Template configuration
	TemplateDir     string
	TemplateSource  string // "fs" or "minio"
	CatalogFile     string // optional replacement for the embedded catalog
	Minio           MinioConfig
	MaxTemplateSize int64   // Maximum template size in bytes
	FontSize        float64 // text size when a field's DA asks for auto sizing

	// OutputDir receives documents generated through the MCP tools
	OutputDir string

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
	LogFormat  string // "json" or "console"
	Production bool   // hide error causes from clients
	Debug      bool   // expose debug routes
	RateLimit  int    // requests per minute and client IP, 0 disables
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:            ModeServer,
		Host:            DefaultHost,
		Port:            DefaultPort,
		TemplateDir:     DefaultTemplateDir,
		TemplateSource:  SourceFS,
		MaxTemplateSize: DefaultMaxTemplateSize,
		FontSize:        DefaultFontSize,
		OutputDir:       DefaultOutputDir,
		Version:         "1.0.0",
		ServerName:      "contratos-api",
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		Production:      true,
		RateLimit:       DefaultRateLimit,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)
	applyPlatformPort(cfg)

	// Expand paths if needed
	for _, p := range []*string{&cfg.TemplateDir, &cfg.OutputDir, &cfg.CatalogFile} {
		if *p == "" {
			continue
		}
		if expandedPath, err := filepath.Abs(*p); err == nil {
			*p = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// CONTRATOS_MINIO_ENDPOINT for the "minio-endpoint" key
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("templates", cfg.TemplateDir)
	viper.SetDefault("source", cfg.TemplateSource)
	viper.SetDefault("catalog", cfg.CatalogFile)
	viper.SetDefault("minio-endpoint", cfg.Minio.Endpoint)
	viper.SetDefault("minio-access-key", cfg.Minio.AccessKey)
	viper.SetDefault("minio-secret-key", cfg.Minio.SecretKey)
	viper.SetDefault("minio-bucket", cfg.Minio.Bucket)
	viper.SetDefault("minio-prefix", cfg.Minio.Prefix)
	viper.SetDefault("minio-ssl", cfg.Minio.UseSSL)
	viper.SetDefault("maxtemplatesize", cfg.MaxTemplateSize)
	viper.SetDefault("fontsize", cfg.FontSize)
	viper.SetDefault("output", cfg.OutputDir)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("logformat", cfg.LogFormat)
	viper.SetDefault("production", cfg.Production)
	viper.SetDefault("debug", cfg.Debug)
	viper.SetDefault("ratelimit", cfg.RateLimit)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'server' for the HTTP API, 'stdio' for the MCP tool server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only, falls back to $PORT)")
	pflag.String("templates", cfg.TemplateDir, "Directory containing the contract templates")
	pflag.String("source", cfg.TemplateSource, "Template source: 'fs' or 'minio'")
	pflag.String("catalog", cfg.CatalogFile, "YAML catalog replacing the embedded one")
	pflag.String("minio-endpoint", cfg.Minio.Endpoint, "MinIO/S3 endpoint (minio source only)")
	pflag.String("minio-access-key", cfg.Minio.AccessKey, "MinIO access key")
	pflag.String("minio-secret-key", cfg.Minio.SecretKey, "MinIO secret key")
	pflag.String("minio-bucket", cfg.Minio.Bucket, "Bucket holding the templates")
	pflag.String("minio-prefix", cfg.Minio.Prefix, "Object name prefix of the templates")
	pflag.Bool("minio-ssl", cfg.Minio.UseSSL, "Use TLS for the MinIO endpoint")
	pflag.Int64("maxtemplatesize", cfg.MaxTemplateSize, "Maximum template size in bytes")
	pflag.Float64("fontsize", cfg.FontSize, "Text size for auto sized form fields")
	pflag.String("output", cfg.OutputDir, "Directory for contracts generated by MCP tools")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.String("logformat", cfg.LogFormat, "Log format (json, console)")
	pflag.Bool("production", cfg.Production, "Hide internal error causes from clients")
	pflag.Bool("debug", cfg.Debug, "Expose template debug routes")
	pflag.Int("ratelimit", cfg.RateLimit, "Requests per minute and client IP (0 disables)")
}

var flagKeys = []string{
	"mode", "host", "port", "templates", "source", "catalog",
	"minio-endpoint", "minio-access-key", "minio-secret-key", "minio-bucket", "minio-prefix", "minio-ssl",
	"maxtemplatesize", "fontsize", "output", "loglevel", "logformat", "production", "debug", "ratelimit",
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range flagKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nContratos API - fills and delivers enrolment contract PDFs\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                        # HTTP API on $PORT or 5000\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --templates=/srv/templates --port=8081 # custom template directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio --output=/tmp/contratos   # MCP tool server\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  PORT                       Server port when --port is not given\n")
		fmt.Fprintf(os.Stderr, "  CONTRATOS_MODE             Run mode\n")
		fmt.Fprintf(os.Stderr, "  CONTRATOS_TEMPLATES        Template directory\n")
		fmt.Fprintf(os.Stderr, "  CONTRATOS_SOURCE           Template source\n")
		fmt.Fprintf(os.Stderr, "  CONTRATOS_CATALOG          Catalog file\n")
		fmt.Fprintf(os.Stderr, "  CONTRATOS_MINIO_ENDPOINT   MinIO endpoint (and _ACCESS_KEY, _SECRET_KEY, _BUCKET, _PREFIX, _SSL)\n")
		fmt.Fprintf(os.Stderr, "  CONTRATOS_LOGLEVEL         Log level\n")
		fmt.Fprintf(os.Stderr, "  CONTRATOS_PRODUCTION       Hide error causes\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.TemplateDir = viper.GetString("templates")
	cfg.TemplateSource = viper.GetString("source")
	cfg.CatalogFile = viper.GetString("catalog")
	cfg.Minio = MinioConfig{
		Endpoint:  viper.GetString("minio-endpoint"),
		AccessKey: viper.GetString("minio-access-key"),
		SecretKey: viper.GetString("minio-secret-key"),
		Bucket:    viper.GetString("minio-bucket"),
		Prefix:    viper.GetString("minio-prefix"),
		UseSSL:    viper.GetBool("minio-ssl"),
	}
	cfg.MaxTemplateSize = viper.GetInt64("maxtemplatesize")
	cfg.FontSize = viper.GetFloat64("fontsize")
	cfg.OutputDir = viper.GetString("output")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.LogFormat = viper.GetString("logformat")
	cfg.Production = viper.GetBool("production")
	cfg.Debug = viper.GetBool("debug")
	cfg.RateLimit = viper.GetInt("ratelimit")
}

// applyPlatformPort honours the bare PORT variable set by hosting platforms
// when neither the flag nor CONTRATOS_PORT chose a port
func applyPlatformPort(cfg *Config) {
	if f := pflag.Lookup("port"); f != nil && f.Changed {
		return
	}
	if _, set := os.LookupEnv(envPrefix + "_PORT"); set {
		return
	}
	raw := strings.TrimSpace(os.Getenv("PORT"))
	if raw == "" {
		return
	}
	if port, err := strconv.Atoi(raw); err == nil {
		cfg.Port = port
	} else {
		cfg.Port = -1
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate template source
	switch c.TemplateSource {
	case SourceFS:
		if c.TemplateDir == "" {
			return errors.New("template directory cannot be empty")
		}
	case SourceMinio:
		if c.Minio.Endpoint == "" || c.Minio.Bucket == "" {
			return errors.New("minio source requires an endpoint and a bucket")
		}
	default:
		return fmt.Errorf("invalid template source: %s (must be one of: fs, minio)", c.TemplateSource)
	}

	// Validate max template size
	if c.MaxTemplateSize <= 0 {
		return errors.New("maximum template size must be positive")
	}

	if c.FontSize <= 0 {
		return errors.New("font size must be positive")
	}

	if c.RateLimit < 0 {
		return errors.New("rate limit cannot be negative")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("invalid log format: %s (must be one of: json, console)", c.LogFormat)
	}

	// Check if the output directory exists, create if it doesn't
	if c.OutputDir != "" {
		if _, err := os.Stat(c.OutputDir); os.IsNotExist(err) {
			if err := os.MkdirAll(c.OutputDir, DefaultDirPerm); err != nil {
				return fmt.Errorf("cannot create output directory %s: %w", c.OutputDir, err)
			}
		} else if err != nil {
			return fmt.Errorf("cannot access output directory %s: %w", c.OutputDir, err)
		}
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration without secrets
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, TemplateSource: %s, TemplateDir: %s, "+
		"CatalogFile: %s, OutputDir: %s, LogLevel: %s, MaxTemplateSize: %d, Production: %t}",
		c.Mode, c.Host, c.Port, c.TemplateSource, c.TemplateDir,
		c.CatalogFile, c.OutputDir, c.LogLevel, c.MaxTemplateSize, c.Production)
}

// IsServerMode returns true if the service runs the HTTP API
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the service runs the MCP tool server
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
