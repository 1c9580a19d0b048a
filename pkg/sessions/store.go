// Package sessions persists conversations as one JSON document per session.
//
// A session file looks like
//
//	{"model": "Gemini", "chat": [{"role": "user", "text": "hi"}, {"role": "model", "text": "hello"}]}
//
// and is named {unix-millis}-history.json, so sorting file names sorts sessions
// by creation time.
package sessions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-go-golems/converse/pkg/conversation"
	"github.com/go-go-golems/converse/pkg/helpers"
	"github.com/go-go-golems/converse/pkg/providers/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const FileSuffix = "-history.json"

// ErrPersistence is the cause of every error returned when a session cannot be written.
var ErrPersistence = errors.New("could not persist session")

// Store reads and writes session documents in a single directory.
// All mutation of a session file goes through AppendExchange.
type Store struct {
	directory string
	locks     *helpers.KeyedMutex
}

type Option func(*Store)

func WithDirectory(dir string) Option {
	return func(s *Store) {
		if dir != "" {
			s.directory = dir
		}
	}
}

// DefaultDirectory is $XDG_CACHE_HOME/converse.
func DefaultDirectory() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine cache directory")
	}
	return filepath.Join(dir, "converse"), nil
}

// NewStore creates a store. The directory is created lazily.
func NewStore(opts ...Option) (*Store, error) {
	s := &Store{locks: helpers.NewKeyedMutex()}
	for _, opt := range opts {
		opt(s)
	}
	if s.directory == "" {
		dir, err := DefaultDirectory()
		if err != nil {
			return nil, err
		}
		s.directory = dir
	}
	return s, nil
}

func (s *Store) Directory() string {
	return s.directory
}

// Read returns the document stored at path. A missing file yields an empty
// document, and so does a corrupt one: the latter is logged but not reported.
func (s *Store) Read(path string) *conversation.Document {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Could not read session, starting empty")
		}
		return conversation.NewDocument()
	}

	doc := conversation.NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Corrupt session file, treating as empty")
		return conversation.NewDocument()
	}
	if doc.Chat == nil {
		doc.Chat = []conversation.Turn{}
	}
	return doc
}

// AppendExchange binds the session to provider if it is not bound yet, appends
// the user/model pair of result and rewrites the whole file.
func (s *Store) AppendExchange(path string, result *conversation.ExchangeResult, provider types.ProviderName) error {
	if result == nil {
		return errors.New("nil exchange result")
	}
	unlock := s.locks.Lock(path)
	defer unlock()

	doc := s.Read(path)
	doc.AppendExchange(result, string(provider))

	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrapf(ErrPersistence, "could not serialize %s: %v", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(ErrPersistence, "could not create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(ErrPersistence, "could not write %s: %v", path, err)
	}

	log.Debug().
		Str("path", path).
		Str("provider", doc.Model).
		Int("turns", len(doc.Chat)).
		Msg("Session saved")
	return nil
}

// ListSessions creates the directory if needed and returns the paths of the
// stored sessions, oldest first. Only {unix-millis}-history.json files count as
// sessions, anything else in the directory is skipped.
func (s *Store) ListSessions() ([]string, error) {
	if err := os.MkdirAll(s.directory, 0o755); err != nil {
		return nil, errors.Wrapf(err, "could not create session directory %s", s.directory)
	}
	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return nil, errors.Wrapf(err, "could not list session directory %s", s.directory)
	}

	ret := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.directory, entry.Name())
		if _, ok := CreatedAt(path); !ok {
			log.Debug().Str("path", path).Msg("Skipping file that is not a session")
			continue
		}
		ret = append(ret, path)
	}
	sort.Slice(ret, func(i, j int) bool {
		ti, _ := CreatedAt(ret[i])
		tj, _ := CreatedAt(ret[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return ret[i] < ret[j]
	})
	return ret, nil
}

// NewSessionPath returns an unused {unix-millis}-history.json path. It does not
// create the file.
func (s *Store) NewSessionPath(now time.Time) string {
	millis := now.UnixMilli()
	for {
		path := filepath.Join(s.directory, fmt.Sprintf("%d%s", millis, FileSuffix))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		millis++
	}
}

// Remove deletes a session file. Removing a session that was never written is not an error.
func (s *Store) Remove(path string) error {
	unlock := s.locks.Lock(path)
	defer unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "could not remove session %s", path)
	}
	log.Debug().Str("path", path).Msg("Session removed")
	return nil
}

// CreatedAt parses the creation time out of a session file name.
func CreatedAt(path string) (time.Time, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, FileSuffix) {
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(strings.TrimSuffix(base, FileSuffix), 10, 64)
	if err != nil || millis < 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}
