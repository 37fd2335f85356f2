// Package main provides partctl, a diagnostic CLI for inspecting a
// directory partition store: entry lookup, child listing, index stats,
// and config scaffolding. It mirrors the teacher's cmd/oba layout (one
// root dispatcher, one file per subcommand) built on spf13/cobra instead
// of the teacher's hand-rolled flag-based dispatch, the way the rest of
// the retrieval pack's CLIs are built.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var path, schemaPath string

	root := &cobra.Command{
		Use:   "partctl",
		Short: "Inspect and administer an oba-ldap directory partition store",
	}
	root.PersistentFlags().StringVar(&path, "store", "", "path to the partition's record file")
	root.PersistentFlags().StringVar(&schemaPath, "schema", "", "path to an LDIF schema file; attribute keys and value normalization become schema-aware when set")

	root.AddCommand(
		newLookupCmd(&path, &schemaPath),
		newChildrenCmd(&path, &schemaPath),
		newSubtreeCmd(&path, &schemaPath),
		newIndicesCmd(&path, &schemaPath),
		newCountCmd(&path, &schemaPath),
		newConfigCmd(),
	)
	return root
}
