package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-go-golems/converse/pkg/dispatch"
	"github.com/go-go-golems/converse/pkg/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /new              start a new session
  /sessions         list open sessions
  /switch N         switch to session N
  /provider NAME    use NAME for new sessions, bound sessions keep theirs
  /close            close the current session and delete its file
  /quit             leave`

func NewChatCommand() *cobra.Command {
	var (
		provider    string
		fresh       bool
		printEvents bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive conversation, resuming the latest session",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := LoadApp(cmd.Context(), WithPrintedEvents(printEvents))
			if err != nil {
				return err
			}
			defer app.Close()

			registry := sessions.NewRegistry(app.Store)
			handles, err := registry.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			current := handles[len(handles)-1]
			if fresh && current.Turns > 0 {
				current = registry.OpenNew()
			}

			worker := dispatch.NewWorker(app.Dispatcher)
			defer worker.Close()

			c := &chat{
				app:      app,
				registry: registry,
				worker:   worker,
				current:  current,
				provider: provider,
				out:      cmd.OutOrStdout(),
			}
			return c.run(cmd.Context(), cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Provider to use, default: session binding or highest use_model")
	cmd.Flags().BoolVar(&fresh, "new", false, "Start with a new session")
	cmd.Flags().BoolVar(&printEvents, "print-events", false, "Print exchange events to stderr")

	return cmd
}

type chat struct {
	app      *App
	registry *sessions.Registry
	worker   *dispatch.Worker
	current  sessions.Handle
	provider string
	out      io.Writer
}

func (c *chat) run(ctx context.Context, in io.Reader) error {
	c.printCurrent()
	fmt.Fprintln(c.out, "Type /help for commands.")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := c.command(line)
			if err != nil {
				fmt.Fprintln(c.out, err.Error())
			}
			if quit {
				return nil
			}
			continue
		}

		if err := c.ask(ctx, line); err != nil {
			return err
		}
	}
}

func (c *chat) command(line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(c.out, chatHelp)
	case "/new":
		c.current = c.registry.OpenNew()
		c.printCurrent()
	case "/sessions":
		for i, h := range c.registry.List() {
			marker := " "
			if h.ID == c.current.ID {
				marker = "*"
			}
			fmt.Fprintf(c.out, "%s %d  %s  %s  %d turns\n", marker, i+1, shortName(h.Path), providerLabel(h), h.Turns)
		}
	case "/switch":
		if len(fields) != 2 {
			return false, errors.New("usage: /switch N")
		}
		n, err := strconv.Atoi(fields[1])
		list := c.registry.List()
		if err != nil || n < 1 || n > len(list) {
			return false, errors.Errorf("no session %s", fields[1])
		}
		c.current = list[n-1]
		c.printCurrent()
	case "/provider":
		if len(fields) != 2 {
			return false, errors.New("usage: /provider NAME")
		}
		if _, _, err := c.app.ResolveProvider(fields[1], c.current.Provider); err != nil {
			return false, err
		}
		c.provider = fields[1]
	case "/close":
		if err := c.registry.Close(c.current.ID, true); err != nil {
			return false, err
		}
		list := c.registry.List()
		if len(list) == 0 {
			c.current = c.registry.OpenNew()
		} else {
			c.current = list[len(list)-1]
		}
		c.printCurrent()
	default:
		return false, errors.Errorf("unknown command %s, try /help", fields[0])
	}
	return false, nil
}

func (c *chat) ask(ctx context.Context, query string) error {
	// the preferred provider only applies to sessions that are not bound yet
	preferred := c.provider
	if c.current.IsBound() {
		preferred = ""
	}
	name, ps, err := c.app.ResolveProvider(preferred, c.current.Provider)
	if err != nil {
		fmt.Fprintln(c.out, err.Error())
		return nil
	}

	handle, err := c.worker.Submit(ctx, dispatch.Request{
		Provider:    name,
		Query:       query,
		SessionPath: c.current.Path,
		Settings:    ps,
	})
	if err != nil {
		if errors.Cause(err) == dispatch.ErrSessionBusy {
			fmt.Fprintln(c.out, "Still waiting for the previous answer.")
			return nil
		}
		return err
	}
	log.Debug().Str("execution_id", handle.ExecutionID).Msg("Submitted exchange")

	var completion dispatch.Completion
	select {
	case completion = <-c.worker.Results():
	case <-ctx.Done():
		handle.Cancel()
		return ctx.Err()
	}

	result := completion.Result
	if result == nil || !result.Succeeded() {
		fmt.Fprintln(c.out, completion.Text())
		return nil
	}
	if err := NewBlockPrinter(c.out).Print(c.app.Renderer.Render(result.Answer)); err != nil {
		return err
	}
	if completion.Err != nil {
		log.Error().Err(completion.Err).Str("session", c.current.Path).Msg("Could not save exchange")
		fmt.Fprintf(c.out, "The answer was not saved: %v\n", completion.Err)
		return nil
	}
	h, err := c.registry.RecordExchange(c.current.ID, name)
	if err != nil {
		return err
	}
	c.current = h
	return nil
}

func (c *chat) printCurrent() {
	fmt.Fprintf(c.out, "Session %s (%s, %d turns)\n", shortName(c.current.Path), providerLabel(c.current), c.current.Turns)
}

func providerLabel(h sessions.Handle) string {
	if !h.IsBound() {
		return "unbound"
	}
	return h.Provider.String()
}

func shortName(path string) string {
	return filepath.Base(path)
}
