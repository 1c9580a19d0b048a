package cmds

import (
	"fmt"
	"text/tabwriter"

	"github.com/go-go-golems/converse/pkg/providers/types"
	"github.com/spf13/cobra"
)

func NewProvidersCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List the configured providers, highest priority first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := LoadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			names := app.Config.EnabledProviders()
			if all {
				for _, name := range types.AllProviders() {
					ps, _ := app.Config.For(name)
					if !ps.Enabled() {
						names = append(names, name)
					}
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tPRIORITY\tMODEL\tKEY")
			for _, name := range names {
				ps, err := app.Config.For(name)
				if err != nil {
					return err
				}
				key := "missing"
				if ps.API != "" {
					key = "set"
				}
				model := ps.Model
				if model == "" {
					model = "-"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", name, ps.UseModel, model, key)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include disabled providers")
	return cmd
}
