package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/converse/pkg/providers/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrSessionNotFound = errors.New("session not found")

// Handle identifies an open session. Callers only ever hold copies; the
// registry owns the authoritative state.
type Handle struct {
	ID   string
	Path string
	// Provider is the bound provider, empty until the first successful exchange.
	Provider types.ProviderName
	Turns    int
}

func (h Handle) IsBound() bool {
	return h.Provider != ""
}

// Registry tracks the sessions a front-end has open, keyed by a stable ID.
type Registry struct {
	store *Store

	mu      sync.RWMutex
	entries map[string]*Handle
	order   []string
}

func NewRegistry(store *Store) *Registry {
	return &Registry{
		store:   store,
		entries: map[string]*Handle{},
	}
}

func (r *Registry) Store() *Store {
	return r.store
}

// Open registers the session stored at path. Opening an already open path
// returns the existing handle.
func (r *Registry) Open(path string) Handle {
	r.mu.RLock()
	for _, id := range r.order {
		if h := r.entries[id]; h.Path == path {
			r.mu.RUnlock()
			return *h
		}
	}
	r.mu.RUnlock()

	return r.register(path, newHandle(path, r.store))
}

// OpenNew registers a fresh session. Its file is only written on the first
// successful exchange.
func (r *Registry) OpenNew() Handle {
	path := r.store.NewSessionPath(time.Now())
	return r.register(path, &Handle{Path: path})
}

func newHandle(path string, store *Store) *Handle {
	doc := store.Read(path)
	h := &Handle{Path: path, Turns: len(doc.Chat)}
	if doc.IsBound() {
		p, err := types.ParseProviderName(doc.Model)
		if err != nil {
			log.Warn().Str("path", path).Str("model", doc.Model).Msg("Session bound to unknown provider")
		} else {
			h.Provider = p
		}
	}
	return h
}

func (r *Registry) register(path string, h *Handle) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if existing := r.entries[id]; existing.Path == path {
			return *existing
		}
	}
	h.ID = uuid.NewString()
	r.entries[h.ID] = h
	r.order = append(r.order, h.ID)
	return *h
}

func (r *Registry) Get(id string) (Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[id]
	if !ok {
		return Handle{}, errors.Wrapf(ErrSessionNotFound, "%s", id)
	}
	return *h, nil
}

// List returns the open sessions in the order they were opened.
func (r *Registry) List() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]Handle, 0, len(r.order))
	for _, id := range r.order {
		ret = append(ret, *r.entries[id])
	}
	return ret
}

// RecordExchange notes a successful exchange: the session is bound to provider
// unless it already is, and its turn count grows by one pair.
func (r *Registry) RecordExchange(id string, provider types.ProviderName) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.entries[id]
	if !ok {
		return Handle{}, errors.Wrapf(ErrSessionNotFound, "%s", id)
	}
	if h.Provider == "" {
		h.Provider = provider
	}
	h.Turns += 2
	return *h, nil
}

// Close forgets the session. With remove set the session file is deleted too.
func (r *Registry) Close(id string, remove bool) error {
	r.mu.Lock()
	h, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return errors.Wrapf(ErrSessionNotFound, "%s", id)
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if remove {
		return r.store.Remove(h.Path)
	}
	return nil
}

// LoadAll opens every stored session, oldest first. When there is none, a new
// empty session is opened so callers always get at least one handle.
func (r *Registry) LoadAll(ctx context.Context) ([]Handle, error) {
	paths, err := r.store.ListSessions()
	if err != nil {
		return nil, err
	}

	loaded := make([]*Handle, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			loaded[i] = newHandle(path, r.store)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, h := range loaded {
		r.register(paths[i], h)
	}
	if len(paths) == 0 {
		r.OpenNew()
	}
	return r.List(), nil
}
