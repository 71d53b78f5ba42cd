package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/khanhnv2901/sparrow-cli/internal/application"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var cfgFile string

// AppContext carries per-invocation state shared by subcommands.
type AppContext struct {
	Logger   *zap.SugaredLogger
	Config   *CLIConfig
	Registry *prometheus.Registry

	once      sync.Once
	container *application.Container
	err       error
}

type appContextKey struct{}

var globalAppContext *AppContext

func storeAppContext(cmd *cobra.Command, appCtx *AppContext) {
	globalAppContext = appCtx
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appContextKey{}, appCtx))
}

func getAppContext(cmd *cobra.Command) *AppContext {
	if ctx := cmd.Context(); ctx != nil {
		if appCtx, ok := ctx.Value(appContextKey{}).(*AppContext); ok {
			return appCtx
		}
	}
	return globalAppContext
}

// Container builds the engine on first use so commands such as version never
// touch the rule files.
func (a *AppContext) Container(ctx context.Context) (*application.Container, error) {
	a.once.Do(func() {
		cfg := a.Config.containerConfig()
		cfg.Logger = a.Logger.Desugar()
		cfg.Registry = a.Registry
		a.container, a.err = application.NewContainer(ctx, cfg)
		if a.err == nil && a.container.RuleLoadErr != nil {
			a.Logger.Warnw("rule files could not be loaded, using defaults", "error", a.container.RuleLoadErr)
		}
	})
	return a.container, a.err
}

// Close releases the container if it was built.
func (a *AppContext) Close() {
	if a.container != nil {
		a.container.Close()
	}
}

var rootCmd = &cobra.Command{
	Use:           "sparrow",
	Short:         "Network reconnaissance and live connection monitoring (for authorized testing only)",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		applyConfigDefaults(cmd)

		if cliConfig.Output != outputText && cliConfig.Output != outputJSON {
			return fmt.Errorf("unsupported output format %q (use text or json)", cliConfig.Output)
		}

		l, err := newLogger(cliConfig.Verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		storeAppContext(cmd, &AppContext{
			Logger:   l.Sugar(),
			Config:   cliConfig,
			Registry: prometheus.NewRegistry(),
		})
		l.Debug("configuration loaded",
			zap.String("rules_dir", cliConfig.RulesDir),
			zap.String("config_file", viper.ConfigFileUsed()),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appCtx := getAppContext(cmd); appCtx != nil {
			appCtx.Close()
		}
	},
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".sparrow")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("SPARROW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing default config file is fine; an explicit --config must exist.
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); cfgFile != "" || !notFound {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// newLogger keeps routine engine logs quiet unless --verbose is given.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return cfg.Build()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, renderError(err))
		os.Exit(exitCode(err))
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sparrow.yaml)")
	flags.BoolVarP(&cliConfig.Verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVarP(&cliConfig.Output, "output", "O", cliConfig.Output, "output format: text or json")
	flags.StringVar(&cliConfig.RulesDir, "rules-dir", cliConfig.RulesDir, "directory holding security_rules.yaml and blocked_ips.json")
	flags.StringVar(&cliConfig.DNS.Provider, "doh-provider", cliConfig.DNS.Provider, "DNS-over-HTTPS endpoint or provider name (google, cloudflare, powerdns)")
	flags.DurationVar(&cliConfig.HTTP.Timeout, "http-timeout", cliConfig.HTTP.Timeout, "timeout for fingerprint, TLS, whois and DoH requests")

	rootCmd.AddCommand(versionCmd)
}
