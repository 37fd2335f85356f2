package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oba-ldap/partition/internal/partition"
	"github.com/oba-ldap/partition/internal/schema"
)

// openStore opens the partition store at path. When schemaPath is
// non-empty, it loads that LDIF schema file and binds it to the store so
// attribute keys and value normalization run through the schema's OIDs
// and matching rules instead of the bare lowercased-name fallback.
func openStore(path, schemaPath string) (*partition.Store, error) {
	resolver, err := loadResolver(schemaPath)
	if err != nil {
		return nil, err
	}
	return partition.Open(partition.Config{Path: path, ReadOnly: true}, resolver, nil)
}

func loadResolver(schemaPath string) (schema.Resolver, error) {
	if schemaPath == "" {
		return nil, nil
	}
	s, err := schema.LoadSchema(schemaPath)
	if err != nil {
		return nil, err
	}
	return schema.NewResolver(s), nil
}

func newLookupCmd(path, schemaPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <dn>",
		Short: "Print an entry's attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(*path, *schemaPath)
			if err != nil {
				return err
			}
			defer st.Close()

			entry, err := st.Lookup(args[0])
			if err != nil {
				return err
			}
			for _, a := range entry.Attributes {
				for _, v := range a.Values {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", a.Type, v)
				}
			}
			return nil
		},
	}
}

func newChildrenCmd(path, schemaPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "children <dn>",
		Short: "List an entry's direct children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(*path, *schemaPath)
			if err != nil {
				return err
			}
			defer st.Close()

			children, err := st.Children(args[0])
			if err != nil {
				return err
			}
			for _, c := range children {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

func newSubtreeCmd(path, schemaPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "subtree <dn>",
		Short: "List an entry and every descendant beneath it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(*path, *schemaPath)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.Subtree(args[0])
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintln(cmd.OutOrStdout(), e)
			}
			return nil
		},
	}
}

func newCountCmd(path, schemaPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the total number of entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(*path, *schemaPath)
			if err != nil {
				return err
			}
			defer st.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "instance: %s\nentries:  %d\n", st.InstanceID(), st.Count())
			return nil
		},
	}
}
