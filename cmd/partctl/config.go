package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oba-ldap/partition/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage a partition's working-directory configuration",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var suffix, name, schemaPath string

	initCmd := &cobra.Command{
		Use:   "init <directory>",
		Short: "Write a default store config into a working directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			life := config.NewLifecycle(dir)
			if err := life.Acquire(); err != nil {
				return err
			}
			defer life.Release()

			cfg := config.DefaultStoreConfig()
			cfg.Name = name
			cfg.WorkingDirectory = dir
			cfg.SuffixDN = suffix
			cfg.SchemaPath = schemaPath

			path := dir + "/partition.yaml"
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("wrote %s", path))
			return nil
		},
	}
	initCmd.Flags().StringVar(&suffix, "suffix", "", "suffix DN for the new partition")
	initCmd.Flags().StringVar(&name, "name", "", "partition name")
	initCmd.Flags().StringVar(&schemaPath, "schema", "", "path to an LDIF schema file to bind this partition to")
	return initCmd
}
