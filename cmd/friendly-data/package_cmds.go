package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/sentinel-energy/friendly-data/internal/app"
)

func metaFlags(cmd *cobra.Command, flags *app.MetaFlags, confFile *string) {
	cmd.Flags().StringVar(&flags.Name, "name", "", "package name (no spaces or special characters)")
	cmd.Flags().StringVar(&flags.Title, "title", "", "package title")
	cmd.Flags().StringVar(&flags.License, "license", "", "package license (an ODLS license ID)")
	cmd.Flags().StringVar(&flags.Description, "description", "", "package description")
	cmd.Flags().StringVar(&flags.Keywords, "keywords", "", "space separated list of keywords")
	cmd.Flags().StringVar(confFile, "metadata", "", "YAML file with metadata and registry sections")
}

func newCreateCmd(factory appFactory) *cobra.Command {
	var (
		flags    app.MetaFlags
		confFile string
	)
	cmd := &cobra.Command{
		Use:   "create <index-or-pkgdir> [dataset...]",
		Short: "Create a package from an index file and datasets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(factory, func(a *app.App) (string, error) {
				return a.Create(cmd.Context(), args[0], args[1:], flags, confFile)
			})
		},
	}
	metaFlags(cmd, &flags, &confFile)
	return cmd
}

func newUpdateCmd(factory appFactory) *cobra.Command {
	var (
		flags    app.MetaFlags
		confFile string
	)
	cmd := &cobra.Command{
		Use:   "update <pkgdir> [dataset...]",
		Short: "Update metadata and datasets in a package",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(factory, func(a *app.App) (string, error) {
				return a.Update(cmd.Context(), args[0], args[1:], flags, confFile)
			})
		},
	}
	metaFlags(cmd, &flags, &confFile)
	return cmd
}

func newRemoveCmd(factory appFactory) *cobra.Command {
	var rmFromDisk bool
	cmd := &cobra.Command{
		Use:   "remove <pkgdir> <dataset>...",
		Short: "Remove datasets from a package",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(factory, func(a *app.App) (string, error) {
				return a.Remove(args[0], args[1:], rmFromDisk)
			})
		},
	}
	cmd.Flags().BoolVar(&rmFromDisk, "rm-from-disk", false, "also delete the dataset files")
	return cmd
}

func newDescribeCmd(factory appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <pkgdir>",
		Short: "Summarise a package and its resource schemas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(factory, func(a *app.App) (string, error) {
				return a.Describe(args[0])
			})
		},
	}
}

func newRegistryCmd(factory appFactory) *cobra.Command {
	var colType string
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Show the column registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(factory, func(a *app.App) (string, error) {
				return a.DescribeRegistry(colType)
			})
		},
	}
	cmd.Flags().StringVar(&colType, "col-type", "", "restrict to a column type: idxcols or cols")
	return cmd
}

func newValidateCmd(factory appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <pkgdir>",
		Short: "Check package resources against their schemas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(factory, func(a *app.App) (string, error) {
				return a.Validate(args[0])
			})
		},
	}
}

func newPackCmd(factory appFactory) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "pack <pkgdir>",
		Short: "Archive a package directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(factory, func(a *app.App) (string, error) {
				return a.Pack(args[0], out)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "archive path (default: <pkgdir>.tar.sz)")
	return cmd
}

func newUnpackCmd(factory appFactory) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "unpack <archive>",
		Short: "Extract a package archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(factory, func(a *app.App) (string, error) {
				return a.Unpack(args[0], dest)
			})
		},
	}
	cmd.Flags().StringVarP(&dest, "dest", "d", "", "destination directory")
	return cmd
}

func newFetchCmd(factory appFactory) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "fetch <remote-path>",
		Short: "Download a package from the configured object store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(factory, func(a *app.App) (string, error) {
				return a.Fetch(cmd.Context(), args[0], dest)
			})
		},
	}
	cmd.Flags().StringVarP(&dest, "dest", "d", "", "destination directory")
	return cmd
}

func newLicensesCmd(factory appFactory) *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "licenses [license-id]",
		Short: "List known licenses, or show one license",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(factory, func(a *app.App) (string, error) {
				if len(args) == 1 {
					lic, err := a.Licenses().Get(cmd.Context(), args[0], group)
					if err != nil {
						return "", err
					}
					return lic.Name + ": " + lic.Title + "\n" + lic.Path, nil
				}
				ids, err := a.Licenses().List(cmd.Context(), group)
				if err != nil {
					return "", err
				}
				return strings.Join(ids, "\n"), nil
			})
		},
	}
	cmd.Flags().StringVar(&group, "group", "all", "license group: all, osi, od, ckan")
	return cmd
}
