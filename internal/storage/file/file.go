// Package file stores settings in a JSON object on the local filesystem.
package file

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/thriftmarket/internal/endpoint"
)

var _ endpoint.Store = (*Store)(nil)

// Store keeps string settings in a single JSON file. Writes replace the file
// atomically.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a Store backed by the file at path. The file and its directory
// are created on first write.
func New(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns <user config dir>/thriftctl/state.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "user config dir")
	}
	return filepath.Join(dir, "thriftctl", "state.json"), nil
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string { return s.path }

// Get returns the value stored under key, or endpoint.ErrNotFound.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := m[key]
	if !ok {
		return "", endpoint.ErrNotFound
	}
	return v, nil
}

// Set stores value under key, keeping other keys.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	m[key] = value
	return s.save(m)
}

func (s *Store) load() (map[string]string, error) {
	m := map[string]string{}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return m, nil
	case err != nil:
		return nil, errors.Wrap(err, "read state")
	case len(data) == 0:
		return m, nil
	}

	if err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		v, err := d.Str()
		if err != nil {
			return errors.Wrapf(err, "key %q", key)
		}
		m[string(key)] = v
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "decode %s", s.path)
	}
	return m, nil
}

func (s *Store) save(m map[string]string) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var e jx.Encoder
	e.SetIdent(2)
	e.ObjStart()
	for _, k := range keys {
		e.FieldStart(k)
		e.Str(m[k])
	}
	e.ObjEnd()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "create state dir")
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(e.Bytes(), '\n')); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write state")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close state")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, "replace state")
	}
	return nil
}
