// Package servecmder provides the serve command that runs the stream proxy.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/hypedigitaly/streamer/pkg/config"
	"github.com/hypedigitaly/streamer/pkg/credentials"
	"github.com/hypedigitaly/streamer/pkg/eventstream"
	"github.com/hypedigitaly/streamer/pkg/eventstream/kafka"
	"github.com/hypedigitaly/streamer/pkg/eventstream/nop"
	"github.com/hypedigitaly/streamer/pkg/logger"
	"github.com/hypedigitaly/streamer/proxy"
)

type serveCommander struct {
	listen            string
	allowedOrigins    string
	anthropicUpstream string
	variables         bool
	variablesEndpoint string
	eventsProvider    string
	eventsBrokers     string
	eventsTopic       string

	watch     bool
	logFile   string
	debug     bool
	configDir string

	cmd    *cobra.Command
	cfg    *config.Config
	logger *slog.Logger
}

const serveLongDesc string = `Run the stream proxy.

The proxy accepts chat requests from allow-listed origins, streams the answer
from the Anthropic Messages API back as simplified server-sent events, and
writes the finished answer to the Voiceflow variable store for the user that
asked.

API keys are read from the environment (ANTHROPIC_API_KEY, VOICEFLOW_API_KEY
and their _<PROJECT> variants) or from credentials stored with "streamer auth".

With --watch the origin allow-list is reloaded whenever config.toml changes.

Examples:
  streamer serve
  streamer serve --listen :9000 --allowed-origins teplice.cz,hypedigitaly.ai
  streamer serve --events-provider kafka --events-brokers kafka:9092
  streamer serve --watch`

const serveShortDesc string = "Run the stream proxy"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.cmd = cmd
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			cfg, err := cmder.loadConfig()
			if err != nil {
				return err
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.ProxyFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.ProxyFlags, config.FlagAllowedOrigins, &cmder.allowedOrigins)
	config.AddStringFlag(cmd, config.ProxyFlags, config.FlagAnthropicUpstream, &cmder.anthropicUpstream)
	config.AddBoolFlag(cmd, config.ProxyFlags, config.FlagVariablesEnabled, &cmder.variables)
	config.AddStringFlag(cmd, config.ProxyFlags, config.FlagVariablesEndpoint, &cmder.variablesEndpoint)
	config.AddStringFlag(cmd, config.ProxyFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.ProxyFlags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, config.ProxyFlags, config.FlagEventsTopic, &cmder.eventsTopic)
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Reload the origin allow-list when config.toml changes")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON log records to this file")

	return cmd
}

// loadConfig resolves the effective configuration: flags, then STREAMER_*
// environment variables, then config.toml, then defaults.
func (c *serveCommander) loadConfig() (*config.Config, error) {
	v, err := config.InitViper(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	c.bindFlags(v)

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func (c *serveCommander) bindFlags(v *viper.Viper) {
	if c.cmd == nil {
		return
	}
	config.BindRegisteredFlags(v, c.cmd, config.ProxyFlags, config.ProxyFlags.Keys())
}

func (c *serveCommander) run(ctx context.Context) error {
	closeLog, err := c.newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	keys := credentials.NewResolver(mgr, credentials.WithLogger(c.logger))

	publisher, err := newPublisher(c.cfg.Events)
	if err != nil {
		return err
	}

	p, err := proxy.New(proxyConfig(c.cfg, publisher), keys, c.logger)
	if err != nil {
		_ = publisher.Close()
		return fmt.Errorf("creating proxy: %w", err)
	}
	defer p.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.watch {
		if err := c.watchConfig(ctx, p); err != nil {
			return err
		}
	}

	c.logger.Debug("proxy configured",
		"upstream", c.cfg.Proxy.AnthropicUpstream,
		"variables", c.cfg.Variables.Enabled,
		"events", c.cfg.Events.Provider,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("running proxy: %w", err)
		}
		return nil
	case <-ctx.Done():
		c.logger.Info("shutting down proxy server")
		return nil
	}
}

// newLogger logs to stdout, pretty on a terminal, and additionally as JSON
// to --log-file when set.
func (c *serveCommander) newLogger() (func(), error) {
	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(term.IsTerminal(int(os.Stdout.Fd()))),
		logger.WithPrefix("streamer"),
	)
	if c.logFile == "" {
		c.logger = console
		return func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	c.logger = logger.Multi(
		console,
		logger.New(logger.WithDebug(c.debug), logger.WithJSON(true), logger.WithWriter(f)),
	)
	return func() { _ = f.Close() }, nil
}

// watchConfig reloads the origin allow-list whenever config.toml changes.
func (c *serveCommander) watchConfig(ctx context.Context, p *proxy.Proxy) error {
	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	path := cfger.GetTarget()

	err = watchFile(ctx, path, c.logger, func() {
		cfg, err := c.loadConfig()
		if err != nil {
			c.logger.Warn("config reload failed", "path", path, "error", err)
			return
		}
		c.logger.Debug("config changed", "path", path)
		p.SetAllowedOrigins(cfg.Proxy.AllowedOrigins)
	})
	if err != nil {
		return fmt.Errorf("watching config: %w", err)
	}

	c.logger.Info("watching config file", "path", path)
	return nil
}

// proxyConfig maps the file configuration onto the proxy's.
func proxyConfig(cfg *config.Config, publisher eventstream.Publisher) proxy.Config {
	return proxy.Config{
		ListenAddr:         cfg.Proxy.Listen,
		AllowedOrigins:     cfg.Proxy.AllowedOrigins,
		AnthropicUpstream:  cfg.Proxy.AnthropicUpstream,
		AnthropicVersion:   cfg.Proxy.AnthropicVersion,
		DefaultModel:       cfg.Proxy.DefaultModel,
		DefaultMaxTokens:   cfg.Proxy.DefaultMaxTokens,
		DefaultTemperature: cfg.Proxy.DefaultTemperature,
		Variables: proxy.VariablesConfig{
			Enabled:      cfg.Variables.Enabled,
			Endpoint:     cfg.Variables.Endpoint,
			VersionID:    cfg.Variables.VersionID,
			VariableName: cfg.Variables.VariableName,
		},
		Publisher: publisher,
	}
}

// newPublisher creates the answer event publisher for the events provider.
func newPublisher(c config.EventsConfig) (eventstream.Publisher, error) {
	switch c.Provider {
	case config.EventsProviderKafka:
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers: c.Brokers,
			Topic:   c.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return pub, nil
	case config.EventsProviderNone, "":
		return nop.NewPublisher(), nil
	default:
		return nil, fmt.Errorf("unknown events provider %q", c.Provider)
	}
}
