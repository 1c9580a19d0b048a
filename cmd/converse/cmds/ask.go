package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-go-golems/converse/pkg/dispatch"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewAskCommand() *cobra.Command {
	var (
		provider    string
		session     string
		resume      bool
		printEvents bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a single question and print the answer",
		Long: `Ask a single question. Without --session or --continue a new session is started.
The question is read from stdin when no argument is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(args)
			if err != nil {
				return err
			}

			app, err := LoadApp(cmd.Context(), WithPrintedEvents(printEvents))
			if err != nil {
				return err
			}
			defer app.Close()

			return runAsk(cmd.Context(), app, askOptions{
				provider: provider,
				session:  session,
				resume:   resume,
			}, query, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Provider (Gemini, Cohere, Claude, OpenAI), default: session binding or highest use_model")
	cmd.Flags().StringVarP(&session, "session", "s", "", "Session path or file name to continue")
	cmd.Flags().BoolVarP(&resume, "continue", "c", false, "Continue the latest session")
	cmd.Flags().BoolVar(&printEvents, "print-events", false, "Print exchange events to stderr")

	return cmd
}

type askOptions struct {
	provider string
	session  string
	resume   bool
}

// runAsk sends one question and prints the rendered answer. An answer that
// could not be saved is still printed, and the save error is returned after.
func runAsk(ctx context.Context, app *App, opts askOptions, query string, out, errOut io.Writer) error {
	var (
		path string
		err  error
	)
	switch {
	case opts.session != "":
		path, err = app.ResolveSessionPath(opts.session)
	case opts.resume:
		path, err = app.ResolveSessionPath("latest")
	default:
		path = app.Store.NewSessionPath(time.Now())
	}
	if err != nil {
		return err
	}

	name, ps, err := app.ResolveProvider(opts.provider, app.BoundProvider(path))
	if err != nil {
		return err
	}

	result, sendErr := app.Dispatcher.Send(ctx, name, query, path, ps)
	if result == nil || !result.Succeeded() {
		if sendErr != nil && !dispatch.IsTransportFailure(sendErr) {
			return sendErr
		}
		return errors.New(dispatch.Describe(result, sendErr))
	}

	if result.Degraded {
		fmt.Fprintln(errOut, "The provider answered but the answer could not be read.")
	}
	if err := NewBlockPrinter(out).Print(app.Renderer.Render(result.Answer)); err != nil {
		return err
	}
	if sendErr != nil {
		return errors.Wrapf(sendErr, "answer received but session %s could not be saved", path)
	}
	log.Info().Str("session", path).Str("provider", name.String()).Msg("Exchange saved")
	return nil
}

func readQuery(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if isatty.IsTerminal(os.Stdin.Fd()) {
		return "", errors.New("no question given")
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", errors.Wrap(err, "could not read question from stdin")
	}
	query := strings.TrimSpace(string(b))
	if query == "" {
		return "", errors.New("no question given")
	}
	return query, nil
}
