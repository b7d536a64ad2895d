// Command waterfall computes the MANNED vs ADS present-value waterfall from
// an evaluation workbook without starting the web server.
//
// Flags can also come from ~/.waterfall.yaml (or --config) and from
// WATERFALL_* environment variables, e.g. WATERFALL_RATE=10.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ecoads/internal/log"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	logger  *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "waterfall",
		Short: "Present-value waterfall of MANNED vs ADS",
		Long: `waterfall reads the evaluation workbook, discounts every category's
cash flows and prints the bars that bridge the MANNED total to the ADS total.`,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.waterfall.yaml)")
	pf.String("layout", "", "YAML file overriding the workbook cell layout")
	pf.StringP("loglevel", "l", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		a.computeCmd(),
		a.exportCmd(),
		a.sheetsCmd(),
		a.layoutCmd(),
		a.guideCmd(),
	)
	return rootCmd
}

// initConfig reads in config file and ENV variables if set.
func (a *app) initConfig(cmd *cobra.Command) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return err
		}
		a.v.AddConfigPath(home)
		a.v.SetConfigName(".waterfall")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix("WATERFALL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	// Flags are bound per running command so the same key can back flags of
	// several subcommands. Flags() includes the inherited persistent ones.
	if err := a.bind(cmd.Flags()); err != nil {
		return err
	}

	lvl := log.ParseLevel(a.v.GetString("loglevel"))
	a.logger = log.New(log.Config{
		Level:     lvl,
		Component: log.ComponentCLI,
		Handler:   slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}),
	})
	return nil
}

// bind attaches every flag of fs to the viper key of the same name.
func (a *app) bind(fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err == nil && f.Name != "config" {
			err = a.v.BindPFlag(f.Name, f)
		}
	})
	return err
}
