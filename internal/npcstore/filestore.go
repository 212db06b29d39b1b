package npcstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/npcforge/internal/record"
)

// Compile-time interface checks.
var (
	_ Store  = (*FileStore)(nil)
	_ Pinger = (*FileStore)(nil)
)

// scopeNameRE limits scope names so they are safe to use as file names.
var scopeNameRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Zone is the on-disk representation of one scope.
type Zone struct {
	Scope    string          `yaml:"scope"`
	Entities []record.Record `yaml:"entities"`
}

// ReadZone decodes a zone document from r. Unknown top-level keys are
// rejected. Entity values are normalised.
func ReadZone(r io.Reader) (Zone, error) {
	var raw struct {
		Scope    string           `yaml:"scope"`
		Entities []map[string]any `yaml:"entities"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return Zone{Entities: []record.Record{}}, nil
		}
		return Zone{}, fmt.Errorf("npcstore: decode zone: %w", err)
	}
	z := Zone{Scope: raw.Scope, Entities: make([]record.Record, 0, len(raw.Entities))}
	for _, e := range raw.Entities {
		z.Entities = append(z.Entities, record.NormalizeRecord(e))
	}
	return z, nil
}

// WriteZone encodes z to w as YAML.
func WriteZone(w io.Writer, z Zone) error {
	if z.Entities == nil {
		z.Entities = []record.Record{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(z); err != nil {
		return fmt.Errorf("npcstore: encode zone: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("npcstore: encode zone: %w", err)
	}
	return nil
}

// FileStore keeps each scope in its own YAML file, <dir>/<scope>.yaml. Writes
// go to a temporary file that is renamed into place.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore returns a store rooted at dir, creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("npcstore: file store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("npcstore: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string { return s.dir }

// Ping checks that the directory is still accessible.
func (s *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return persistErr("ping", err)
	}
	if !info.IsDir() {
		return persistErr("ping", fmt.Errorf("%s is not a directory", s.dir))
	}
	return nil
}

// ListEntities implements [Store.ListEntities].
func (s *FileStore) ListEntities(ctx context.Context, scope string) ([]record.Record, error) {
	if err := s.checkScopeName(scope); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	z, err := s.read(scope)
	if err != nil {
		return nil, persistErr("list "+scope, err)
	}
	return z.Entities, nil
}

// SaveEntity implements [Store.SaveEntity].
func (s *FileStore) SaveEntity(ctx context.Context, scope string, rec record.Record) error {
	if err := checkRecord(scope, rec); err != nil {
		return err
	}
	if err := s.checkScopeName(scope); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	z, err := s.read(scope)
	if err != nil {
		return persistErr("save "+scope, err)
	}
	rec = record.NormalizeRecord(rec)
	if i := slices.IndexFunc(z.Entities, func(e record.Record) bool { return e.ID() == rec.ID() }); i >= 0 {
		z.Entities[i] = rec
	} else {
		z.Entities = append(z.Entities, rec)
	}
	if err := s.write(z); err != nil {
		return persistErr("save "+scope, err)
	}
	return nil
}

// DeleteEntity implements [Store.DeleteEntity].
func (s *FileStore) DeleteEntity(ctx context.Context, scope, id string) error {
	if err := s.checkScopeName(scope); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	z, err := s.read(scope)
	if err != nil {
		return persistErr("delete "+scope, err)
	}
	n := len(z.Entities)
	z.Entities = slices.DeleteFunc(z.Entities, func(e record.Record) bool { return e.ID() == id })
	if len(z.Entities) == n {
		return nil
	}
	if err := s.write(z); err != nil {
		return persistErr("delete "+scope, err)
	}
	return nil
}

// Scopes lists the scopes that have a zone file, sorted.
func (s *FileStore) Scopes() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, persistErr("scopes", err)
	}
	var out []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".yaml")
		if !e.IsDir() && ok && scopeNameRE.MatchString(name) {
			out = append(out, name)
		}
	}
	return out, nil
}

func (s *FileStore) checkScopeName(scope string) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	if !scopeNameRE.MatchString(scope) {
		return fmt.Errorf("%w: scope %q may only contain letters, digits, '_' and '-'", ErrInvalidRecord, scope)
	}
	return nil
}

func (s *FileStore) path(scope string) string {
	return filepath.Join(s.dir, scope+".yaml")
}

// read loads a zone. A missing file is an empty zone.
func (s *FileStore) read(scope string) (Zone, error) {
	f, err := os.Open(s.path(scope))
	if errors.Is(err, fs.ErrNotExist) {
		return Zone{Scope: scope, Entities: []record.Record{}}, nil
	}
	if err != nil {
		return Zone{}, err
	}
	defer f.Close()
	z, err := ReadZone(f)
	if err != nil {
		return Zone{}, err
	}
	z.Scope = scope
	return z, nil
}

func (s *FileStore) write(z Zone) error {
	tmp, err := os.CreateTemp(s.dir, "."+z.Scope+"-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := WriteZone(tmp, z); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(z.Scope))
}
