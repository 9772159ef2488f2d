// Package app holds the runtime shared by the command line subcommands:
// loaded settings, the central logger, telemetry and the metrics endpoint.
package app

import (
	"context"
	"sync"

	"github.com/edaschema/edaschema/internal/buildinfo"
	"github.com/edaschema/edaschema/internal/conf"
	"github.com/edaschema/edaschema/internal/dataset"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/observability"
	"github.com/edaschema/edaschema/internal/telemetry"
)

// Context is created empty by main and filled by Setup before a subcommand
// runs
type Context struct {
	Build    *buildinfo.Context
	Settings *conf.Settings
	Metrics  *observability.Metrics
	Log      logger.Logger

	central       *logger.CentralLogger
	flush         func()
	stopEndpoint  context.CancelFunc
	endpointGroup sync.WaitGroup
}

// New returns an empty Context for the given build metadata
func New(build *buildinfo.Context) *Context {
	return &Context{
		Build:    build,
		Settings: &conf.Settings{},
		Log:      logger.Global().Module("cli"),
	}
}

// Setup loads the configuration at path and starts the ambient services.
// Flags bound to the global viper instance take precedence over the file.
func (c *Context) Setup(ctx context.Context, path string) error {
	settings, err := conf.Load(path)
	if err != nil {
		return err
	}
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}
	*c.Settings = *settings

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return err
	}
	logger.SetGlobal(central)
	c.central = central
	c.Log = central.Module("cli")
	c.Log.Debug("settings loaded", logger.Any("settings", settings.Redacted()))

	flush, err := telemetry.Init(settings.Telemetry, c.Build.GetVersion(), central.Module("telemetry"))
	if err != nil {
		return err
	}
	c.flush = flush

	if !settings.Metrics.Enabled {
		return nil
	}
	if c.Metrics, err = observability.NewMetrics(); err != nil {
		return err
	}
	if settings.Metrics.Listen == "" {
		return nil
	}
	endpoint, err := observability.NewEndpoint(settings, c.Metrics)
	if err != nil {
		return err
	}
	endpointCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.stopEndpoint = cancel
	endpoint.Start(endpointCtx, &c.endpointGroup)
	return nil
}

// OpenDataset opens the configured backend with metrics and snapshots wired
func (c *Context) OpenDataset(ctx context.Context) (*dataset.Dataset, error) {
	return dataset.Open(ctx, c.Settings, dataset.Options{
		Metrics: c.Metrics,
		Logger:  c.Log.Module("dataset"),
	})
}

// Shutdown stops the metrics endpoint, flushes telemetry and closes log
// files. It is safe to call when Setup did not run or failed.
func (c *Context) Shutdown() {
	if c.stopEndpoint != nil {
		c.stopEndpoint()
		c.endpointGroup.Wait()
	}
	if c.flush != nil {
		c.flush()
	}
	if c.central != nil {
		if err := c.central.Close(); err != nil {
			c.Log.Warn("failed to close log files", logger.Error(err))
		}
	}
}
