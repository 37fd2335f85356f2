package main

import (
	"fmt"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newIndicesCmd(path, schemaPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "indices",
		Short: "List configured user indices and their (value, id) pair counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(*path, *schemaPath)
			if err != nil {
				return err
			}
			defer st.Close()

			names := st.IndexNames()
			sort.Strings(names)

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Attribute", "Value/ID Pairs"})
			for _, name := range names {
				count, err := st.IndexStats(name)
				if err != nil {
					return err
				}
				table.Append([]string{name, fmt.Sprint(count)})
			}
			table.Render()
			return nil
		},
	}
}
