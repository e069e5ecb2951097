package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sentinel-energy/friendly-data/internal/app"
	"github.com/sentinel-energy/friendly-data/internal/config"
)

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "friendly-data",
		Short:         "A frictionless data package manager for energy model data",
		Long: `friendly-data manages frictionless data packages whose datasets follow a
shared column registry, and converts them to and from the IAMC format.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "tool configuration file (YAML or JSON)")

	newApp := func() (*app.App, error) {
		cfg := config.DefaultConfig()
		if configFile != "" {
			loaded, err := config.LoadFromFile(configFile)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
		config.LoadFromEnv(cfg)
		setupLogging(cfg)
		return app.New(cfg)
	}

	cmd.AddCommand(
		newCreateCmd(newApp),
		newUpdateCmd(newApp),
		newRemoveCmd(newApp),
		newDescribeCmd(newApp),
		newRegistryCmd(newApp),
		newToIAMCCmd(newApp),
		newFromIAMCCmd(newApp),
		newValidateCmd(newApp),
		newPackCmd(newApp),
		newUnpackCmd(newApp),
		newFetchCmd(newApp),
		newLicensesCmd(newApp),
	)
	return cmd
}

type appFactory func() (*app.App, error)

// withApp runs fn with a fresh App and prints its result to stdout.
func withApp(factory appFactory, fn func(*app.App) (string, error)) error {
	a, err := factory()
	if err != nil {
		return err
	}
	defer a.Close()
	out, err := fn(a)
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintln(os.Stdout, out)
	}
	return nil
}
