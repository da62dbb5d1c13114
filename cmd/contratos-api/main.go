package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cesuma/contratos-api/internal/catalog"
	"github.com/cesuma/contratos-api/internal/config"
	"github.com/cesuma/contratos-api/internal/enrich"
	"github.com/cesuma/contratos-api/internal/httpapi"
	"github.com/cesuma/contratos-api/internal/logging"
	"github.com/cesuma/contratos-api/internal/mcp"
	"github.com/cesuma/contratos-api/internal/pdf"
	"github.com/cesuma/contratos-api/internal/pdf/assemble"
	"github.com/cesuma/contratos-api/internal/service"
	"github.com/cesuma/contratos-api/internal/templates"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if version != "dev" {
		cfg.Version = version
	}

	logger, err := logging.New(loggingConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// run builds the pipeline and serves it in the configured mode
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting contract service",
		zap.String("mode", cfg.Mode),
		zap.String("version", cfg.Version),
		zap.String("config", cfg.String()))

	gen, err := buildGenerator(cfg, logger)
	if err != nil {
		return err
	}

	// Templates are checked up front; problems are logged, not fatal, so a
	// single broken template does not take the other contract types down.
	if _, err := gen.Verify(ctx); err != nil {
		logger.Warn("some contract templates are unusable", zap.Error(err))
	}

	if cfg.IsStdioMode() {
		server, err := mcp.NewServer(cfg, gen, logger)
		if err != nil {
			return fmt.Errorf("failed to create MCP server: %w", err)
		}
		return server.Run(ctx)
	}

	if !cfg.IsDebug() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(gen, httpapi.Options{
		Logger:     logger,
		Production: cfg.Production,
		Debug:      cfg.Debug,
		RateLimit:  cfg.RateLimit,
		ServerName: cfg.ServerName,
		Version:    cfg.Version,
	})
	return httpapi.NewServer(cfg.Address(), router, logger).Run(ctx)
}

// buildGenerator wires catalog, template source and assembly pipeline
func buildGenerator(cfg *config.Config, logger *zap.Logger) (*service.Generator, error) {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	src, err := newTemplateSource(cfg)
	if err != nil {
		return nil, err
	}

	reg, err := templates.NewRegistry(cat, src)
	if err != nil {
		return nil, err
	}

	return service.NewGenerator(reg, enrich.New(cat), assemble.New(assemble.WithFontSize(cfg.FontSize)), pdf.NewValidator(cfg.MaxTemplateSize), logger)
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogFile == "" {
		return catalog.LoadDefault()
	}
	return catalog.LoadFile(cfg.CatalogFile)
}

func newTemplateSource(cfg *config.Config) (templates.Source, error) {
	switch cfg.TemplateSource {
	case config.SourceFS, "":
		return templates.NewFSSource(cfg.TemplateDir, cfg.MaxTemplateSize)
	case config.SourceMinio:
		return templates.NewMinioSource(templates.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			Prefix:    cfg.Minio.Prefix,
			UseSSL:    cfg.Minio.UseSSL,
		}, cfg.MaxTemplateSize)
	default:
		return nil, errors.New("unknown template source: " + cfg.TemplateSource)
	}
}

// loggingConfig maps the service configuration onto the logger settings.
// Logs always go to stderr so stdio mode keeps stdout for the protocol.
func loggingConfig(cfg *config.Config) logging.Config {
	return logging.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Output:      "stderr",
		Development: cfg.IsDebug(),
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("CESUMA Contratos API\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
