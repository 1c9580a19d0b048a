package cmds

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewRenderCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render model text into display blocks",
		Long:  "Render a file, or stdin, the way answers are displayed. Output is terminal text, the raw Pango markup blocks, or JSON.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				b   []byte
				err error
			)
			if len(args) == 1 && args[0] != "-" {
				b, err = os.ReadFile(args[0])
			} else {
				b, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return errors.Wrap(err, "could not read input")
			}

			app, err := LoadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			blocks := app.Renderer.Render(string(b))
			out := cmd.OutOrStdout()

			switch output {
			case "text":
				return NewBlockPrinter(out).Print(blocks)
			case "pango":
				for _, block := range blocks {
					kind := "text"
					if block.IsCode {
						kind = "code"
						if block.Language != "" {
							kind += ":" + block.Language
						}
					}
					fmt.Fprintf(out, "--- %s\n%s\n", kind, block.Content)
				}
				return nil
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(blocks)
			default:
				return errors.Errorf("unknown output %q", output)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output (text, pango, json)")
	return cmd
}
