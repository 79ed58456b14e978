package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *cli) dictionaryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dictionary",
		Short: "Inspect dictionaries",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List dictionaries and their codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCODES")
			for _, name := range c.catalog.Names() {
				d, err := c.catalog.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(d.Codes(), ","))
			}
			return w.Flush()
		},
	})
	return cmd
}
