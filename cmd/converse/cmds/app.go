package cmds

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-go-golems/converse/pkg/dispatch"
	"github.com/go-go-golems/converse/pkg/events"
	"github.com/go-go-golems/converse/pkg/markdown"
	"github.com/go-go-golems/converse/pkg/providers/types"
	"github.com/go-go-golems/converse/pkg/security"
	"github.com/go-go-golems/converse/pkg/sessions"
	"github.com/go-go-golems/converse/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// App bundles what every command needs, built from the config file and flags.
type App struct {
	Config     *settings.Config
	Store      *sessions.Store
	Dispatcher *dispatch.Dispatcher
	Renderer   *markdown.Renderer

	router *events.EventRouter
	cancel context.CancelFunc
}

type AppOption func(*appOptions)

type appOptions struct {
	printEvents bool
}

// WithPrintedEvents prints every exchange event to stderr as JSON.
func WithPrintedEvents(enabled bool) AppOption {
	return func(o *appOptions) {
		o.printEvents = enabled
	}
}

func LoadApp(ctx context.Context, options ...AppOption) (*App, error) {
	opts := &appOptions{}
	for _, o := range options {
		o(opts)
	}

	v, err := settings.NewViper(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	cfg, err := settings.LoadConfig(v)
	if err != nil {
		return nil, err
	}

	store, err := sessions.NewStore(sessions.WithDirectory(cfg.General.CacheDir))
	if err != nil {
		return nil, err
	}

	dispatchOptions := []dispatch.Option{dispatch.WithTimeout(cfg.General.Timeout)}
	if viper.GetBool("allow-local") {
		dispatchOptions = append(dispatchOptions, dispatch.WithOutboundURLOptions(security.LocalTestingOptions()))
	}

	app := &App{
		Config:   cfg,
		Store:    store,
		Renderer: markdown.NewRenderer(markdown.WithTheme(cfg.Theme)),
	}

	if opts.printEvents {
		router, err := events.NewEventRouter(events.WithVerbose(viper.GetBool("verbose")))
		if err != nil {
			return nil, err
		}
		router.AddHandler("print-events", events.TopicExchanges, router.PrintEvents(os.Stderr))

		runCtx, cancel := context.WithCancel(ctx)
		go func() {
			if err := router.Run(runCtx); err != nil {
				log.Error().Err(err).Msg("Event router stopped")
			}
		}()
		<-router.Running()

		app.router = router
		app.cancel = cancel
		dispatchOptions = append(dispatchOptions, dispatch.WithEventSink(router.Sink()))
	}

	app.Dispatcher = dispatch.New(store, dispatchOptions...)
	log.Debug().Str("sessions", store.Directory()).Msg("Application ready")
	return app, nil
}

func (a *App) Close() {
	if a.router != nil {
		_ = a.router.Close()
		a.cancel()
	}
}

// ResolveProvider picks the provider for an exchange. A bound session always
// uses its binding, and an explicit name that disagrees with it is refused
// with dispatch.ErrProviderMismatch. Unbound sessions use the explicit name,
// then the highest priority enabled provider.
func (a *App) ResolveProvider(explicit string, bound types.ProviderName) (types.ProviderName, *settings.ProviderSettings, error) {
	var name types.ProviderName
	if explicit != "" {
		p, err := types.ParseProviderName(explicit)
		if err != nil {
			return "", nil, err
		}
		name = p
	}
	switch {
	case bound != "" && name != "" && name != bound:
		return "", nil, errors.Wrapf(dispatch.ErrProviderMismatch, "session uses %s", bound)
	case bound != "":
		name = bound
	case name != "":
	default:
		enabled := a.Config.EnabledProviders()
		if len(enabled) == 0 {
			return "", nil, errors.New("no provider enabled, set use_model in the config file")
		}
		name = enabled[0]
	}

	ps, err := a.Config.For(name)
	if err != nil {
		return "", nil, err
	}
	if !ps.Enabled() {
		log.Warn().Str("provider", name.String()).Msg("Provider is disabled in the config, using it anyway")
	}
	return name, ps, nil
}

// ResolveSessionPath accepts a full path, a file name inside the session
// directory, or "latest".
func (a *App) ResolveSessionPath(arg string) (string, error) {
	if arg == "latest" {
		paths, err := a.Store.ListSessions()
		if err != nil {
			return "", err
		}
		if len(paths) == 0 {
			return "", errors.Wrap(sessions.ErrSessionNotFound, "no stored session")
		}
		return paths[len(paths)-1], nil
	}
	if strings.ContainsRune(arg, filepath.Separator) {
		return arg, nil
	}
	if !strings.HasSuffix(arg, sessions.FileSuffix) {
		arg += sessions.FileSuffix
	}
	return filepath.Join(a.Store.Directory(), arg), nil
}

// BoundProvider returns the provider recorded in the session file, if any.
func (a *App) BoundProvider(path string) types.ProviderName {
	doc := a.Store.Read(path)
	if !doc.IsBound() {
		return ""
	}
	p, err := types.ParseProviderName(doc.Model)
	if err != nil {
		return ""
	}
	return p
}
