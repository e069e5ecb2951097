package main

import (
	"github.com/spf13/cobra"

	"github.com/sentinel-energy/friendly-data/internal/app"
)

func newToIAMCCmd(factory appFactory) *cobra.Command {
	var wide bool
	cmd := &cobra.Command{
		Use:   "to-iamc <config> <index> <output>",
		Short: "Aggregate package datasets into an IAMC dataset",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(factory, func(a *app.App) (string, error) {
				return a.ToIAMC(args[0], args[1], args[2], wide)
			})
		},
	}
	cmd.Flags().BoolVar(&wide, "wide", false, "write wide IAMC format (years as columns)")
	return cmd
}

func newFromIAMCCmd(factory appFactory) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "from-iamc <config> <index> <iamc-file>",
		Short: "Split an IAMC dataset into package datasets",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(factory, func(a *app.App) (string, error) {
				return a.FromIAMC(args[0], args[1], args[2], outDir)
			})
		},
	}
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", ".", "directory the datasets are written to")
	return cmd
}
