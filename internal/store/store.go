// Package store persists the watch configuration list and the typed
// application-data map in a versioned binary format.
//
// The file begins with a single version byte that selects the codec for the
// rest of the stream. Versions own their grammar completely, so a newer
// version can add fields without breaking readers of older files: each tag
// maps to its own reader/writer pair.
//
// Error policy: grammar violations (bad sentinel, unknown tag, truncation)
// are fatal FormatErrors yielding no partial result. A well-formed watch
// record that fails configuration validation is logged, skipped, and the
// load continues.
package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/brianly1003/janus/internal/config"
)

// Data is the persisted aggregate root: the ordered watch configuration list
// plus a free-form typed key/value map. Values are restricted to string,
// int32, float64 and bool; anything else is dropped at write time.
type Data struct {
	Watches []config.WatchConfig
	Values  map[string]interface{}
}

// NewData returns an empty Data with an initialized value map.
func NewData() Data {
	return Data{Values: make(map[string]interface{})}
}

// Equal reports deep equality: watch order, filter order, pattern order and
// the exact key/value mapping including value types.
func (d Data) Equal(o Data) bool {
	if len(d.Watches) != len(o.Watches) || len(d.Values) != len(o.Values) {
		return false
	}
	for i := range d.Watches {
		if !d.Watches[i].Equal(o.Watches[i]) {
			return false
		}
	}
	for k, v := range d.Values {
		ov, ok := o.Values[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// codec is one format version's reader/writer pair.
type codec interface {
	read(r *bufio.Reader) (Data, error)
	write(w *bufio.Writer, data Data) error
}

// Format versions. The leading byte of every store file.
const (
	VersionV1 byte = 1

	// CurrentVersion is the version new files are written with.
	CurrentVersion = VersionV1
)

var codecs = map[byte]codec{
	VersionV1: v1Codec{},
}

// Store reads and writes the binary store file.
type Store struct {
	fs      afero.Fs
	path    string
	version byte
}

// New creates a store over fs at path, writing the current format version.
func New(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path, version: CurrentVersion}
}

// DefaultPath returns the fixed OS-profile-relative store file location.
func DefaultPath() (string, error) {
	dir, err := config.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "janus.dat"), nil
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// Initialise prepares the store location for use.
func (s *Store) Initialise() error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	return nil
}

// Load reads the store file. A missing file is a first run and yields empty
// data. A FormatError means the file is unusable: the caller gets empty data
// alongside the error and must treat the session as starting fresh.
func (s *Store) Load() (Data, error) {
	f, err := s.fs.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewData(), nil
		}
		return NewData(), fmt.Errorf("failed to open store file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	version, err := r.ReadByte()
	if err != nil {
		return NewData(), formatErrorf("missing version tag: %v", err)
	}
	c, ok := codecs[version]
	if !ok {
		return NewData(), formatErrorf("unknown format version %d", version)
	}

	data, err := c.read(r)
	if err != nil {
		return NewData(), err
	}
	log.Debug().
		Str("path", s.path).
		Int("watches", len(data.Watches)).
		Int("values", len(data.Values)).
		Msg("store loaded")
	return data, nil
}

// Save writes data atomically: the stream goes to a temp file which is
// renamed over the store path, so a crashed write never leaves a truncated
// file behind for the strict reader to choke on.
func (s *Store) Save(data Data) error {
	c, ok := codecs[s.version]
	if !ok {
		return fmt.Errorf("unknown store version %d", s.version)
	}

	tmp := s.path + ".tmp"
	f, err := s.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}

	w := bufio.NewWriter(f)
	err = w.WriteByte(s.version)
	if err == nil {
		err = c.write(w, data)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to write store file: %w", err)
	}

	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace store file: %w", err)
	}

	log.Debug().
		Str("path", s.path).
		Int("watches", len(data.Watches)).
		Msg("store written")
	return nil
}

// sortedKeys returns the value map keys in stable order so writes are
// deterministic.
func sortedKeys(values map[string]interface{}) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
