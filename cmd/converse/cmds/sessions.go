package cmds

import (
	"bytes"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/go-go-golems/converse/pkg/sessions"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and remove stored sessions",
	}

	cmd.AddCommand(newListSessionsCommand())
	cmd.AddCommand(newShowSessionCommand())
	cmd.AddCommand(newRemoveSessionCommand())

	return cmd
}

func newListSessionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sessions, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := LoadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			paths, err := app.Store.ListSessions()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tCREATED\tPROVIDER\tTURNS")
			for _, path := range paths {
				doc := app.Store.Read(path)
				created := "-"
				if t, ok := sessions.CreatedAt(path); ok {
					created = t.Format("2006-01-02 15:04:05")
				}
				provider := doc.Model
				if provider == "" {
					provider = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", shortName(path), created, provider, len(doc.Chat))
			}
			return w.Flush()
		},
	}
}

func newShowSessionCommand() *cobra.Command {
	var (
		output  string
		concise bool
	)

	cmd := &cobra.Command{
		Use:   "show <session|latest>",
		Short: "Print a session as markdown, html, json or yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := sessions.ParseExportFormat(output)
			if err != nil {
				return err
			}

			app, err := LoadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			path, err := app.ResolveSessionPath(args[0])
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err != nil {
				return errors.Wrapf(sessions.ErrSessionNotFound, "%s", path)
			}

			exporter := &sessions.Exporter{Concise: concise}
			doc := app.Store.Read(path)

			if format != sessions.FormatMarkdown {
				return exporter.Export(cmd.OutOrStdout(), path, doc, format)
			}
			var buf bytes.Buffer
			if err := exporter.Export(&buf, path, doc, format); err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), RenderMarkdown(cmd.OutOrStdout(), buf.String()))
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "markdown", "Output format (markdown, html, json, yaml)")
	cmd.Flags().BoolVar(&concise, "concise", false, "One line per turn, no header")
	return cmd
}

func newRemoveSessionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <session|latest>...",
		Short: "Delete stored sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := LoadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			for _, arg := range args {
				path, err := app.ResolveSessionPath(arg)
				if err != nil {
					return err
				}
				if err := app.Store.Remove(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", shortName(path))
			}
			return nil
		},
	}
}
