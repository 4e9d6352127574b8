package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTemplatesCmd(opts *rootOptions) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List capture templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := opts.clientLogger()
			if err != nil {
				return err
			}
			api, err := opts.apiClient(log)
			if err != nil {
				return err
			}
			ctx, _ := tracedContext(cmd.Context())
			tpls, err := api.Templates(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if full {
				for _, t := range tpls {
					fmt.Fprintf(out, "[%s] %s\n%s\n\n", t.Key, t.Label, t.Text)
				}
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tLABEL\tDESCRIPTION")
			for _, t := range tpls {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Key, t.Label, t.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "print each template body")
	return cmd
}
