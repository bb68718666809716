package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tigerroll/congresso/pkg/batch/core/config"
)

// Keys of the global options. Each can also be set as CONGRESSO_<KEY>.
const (
	keyConfig          = "config"
	keyEnvFile         = "env_file"
	keyLogLevel        = "log_level"
	keyMetricsTextfile = "metrics_textfile"
	keyMetricsAddress  = "metrics_address"
)

// cli holds the state shared by the commands of one invocation.
type cli struct {
	v        *viper.Viper
	exitCode int
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CONGRESSO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetDefault(keyEnvFile, ".env")
	return v
}

func newRootCmd(ctx context.Context, c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "congresso",
		Short: "congresso - ETL of Brazilian legislative open data",
		Long: `congresso extracts data from the Senado Federal and Câmara dos Deputados open data
APIs, consolidates it per legislator and loads one document per entity into the
configured document store.

Examples:
  congresso process materias 57 --limite 5
  congresso process discursos 57 --deputado 204554 --destino local-filesystem
  congresso process mesas 57 --destino emulated-store`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetContext(ctx)

	flags := root.PersistentFlags()
	flags.String("config", "", "YAML configuration file layered over the embedded defaults")
	flags.String("env-file", ".env", "dotenv file loaded before the configuration")
	flags.String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	flags.String("metrics-textfile", "", "write Prometheus metrics to this file when the run ends")
	flags.String("metrics-address", "", "serve Prometheus metrics on this address during the run")
	for key, flag := range map[string]string{
		keyConfig:          "config",
		keyEnvFile:         "env-file",
		keyLogLevel:        "log-level",
		keyMetricsTextfile: "metrics-textfile",
		keyMetricsAddress:  "metrics-address",
	} {
		_ = c.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(newProcessCmd(c))
	return root
}

// overrides turns the global options into configuration overrides.
func (c *cli) overrides(verbose bool) config.Overrides {
	o := config.Overrides{
		LogLevel:        strings.ToUpper(c.v.GetString(keyLogLevel)),
		MetricsTextfile: c.v.GetString(keyMetricsTextfile),
		MetricsAddress:  c.v.GetString(keyMetricsAddress),
	}
	if verbose {
		o.LogLevel = "DEBUG"
	}
	return o
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string) int {
	c := &cli{v: newViper()}
	root := newRootCmd(ctx, c)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		printError(err)
		return 1
	}
	return c.exitCode
}
