// Package manager implements the directory-rooted registry of named
// collections: CollectionManager in §4.5. It lazily discovers collections by
// scanning subdirectories at construction, and otherwise owns their
// lifetime — a Collection handed out by Manager is invalid once the
// manager deletes it.
package manager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/torinriley/vecstream/collection"
	"github.com/torinriley/vecstream/logging"
)

// ErrCollectionExists is returned by CreateCollection when name is already
// registered.
var ErrCollectionExists = errors.New("manager: collection already exists")

// ErrNoSuchCollection is returned by GetCollection/DeleteCollection/
// GetCollectionStats when name is not registered.
var ErrNoSuchCollection = errors.New("manager: no such collection")

// ErrInvalidName is returned when a collection name doesn't match
// [A-Za-z0-9_-]{1,64}.
var ErrInvalidName = errors.New("manager: invalid collection name")

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateName reports whether name is a legal collection name.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Manager is a directory-rooted registry of named Collections. Its own
// registry operations (create/get/list/delete) are guarded by one exclusive
// lock; the Collections it hands out manage their own concurrency
// independently, per §5.
type Manager struct {
	mu     sync.RWMutex
	root   string
	logger *logging.Logger

	collections map[string]*collection.Collection
	opts        []collection.Option
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger passed through to every discovered
// or created Collection, tagged with its collection name via
// Logger.WithCollection.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithCollectionOptions sets the default collection.Option list applied to
// collections the manager creates and to those it reopens during discovery.
// A reopened collection's persisted HNSW parameters replace any given here.
func WithCollectionOptions(opts ...collection.Option) Option {
	return func(m *Manager) { m.opts = opts }
}

// Open roots a Manager at dir, creating it if necessary, and lazily
// discovers existing collections by scanning its subdirectories.
func Open(dir string, optFns ...Option) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("manager: %w", err)
	}

	m := &Manager{
		root:        dir,
		logger:      logging.NoopLogger(),
		collections: make(map[string]*collection.Collection),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(m)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("manager: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && nameRe.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(8)
	for _, name := range names {
		name := name
		g.Go(func() error {
			opts := m.collectionOpts(name)
			c := collection.New(filepath.Join(dir, name), opts...)
			if err := c.Load(); err != nil {
				m.logger.LogDiscoverSkip(name, err)
				return nil
			}
			mu.Lock()
			m.collections[name] = c
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // per-collection load failures are logged, not fatal to Open

	return m, nil
}

// collectionOpts builds the Option list a Collection named name is
// constructed with: m's default logger (tagged with name) followed by m.opts,
// so a caller-supplied collection.WithLogger in m.opts still takes
// precedence.
func (m *Manager) collectionOpts(name string) []collection.Option {
	opts := make([]collection.Option, 0, len(m.opts)+1)
	opts = append(opts, collection.WithLogger(m.logger.WithCollection(name)))
	opts = append(opts, m.opts...)
	return opts
}

// CreateCollection creates and registers a new, empty collection named
// name. Fails with ErrCollectionExists if already registered, or
// ErrInvalidName if name is illegal.
func (m *Manager) CreateCollection(name string, optFns ...collection.Option) (*collection.Collection, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrCollectionExists, name)
	}

	dir := filepath.Join(m.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("manager: %w", err)
	}

	opts := optFns
	if len(opts) == 0 {
		opts = m.collectionOpts(name)
	}
	c := collection.New(dir, opts...)
	m.collections[name] = c
	return c, nil
}

// GetCollection returns the handle for name, or ErrNoSuchCollection.
func (m *Manager) GetCollection(name string) (*collection.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchCollection, name)
	}
	return c, nil
}

// ListCollections returns registered collection names in stable
// alphabetical order.
func (m *Manager) ListCollections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DeleteCollection removes name's in-memory handle and its on-disk
// directory. Fails with ErrNoSuchCollection if not registered.
func (m *Manager) DeleteCollection(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchCollection, name)
	}
	_ = c.Unlock()

	dir := filepath.Join(m.root, name)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("manager: %w", err)
	}
	delete(m.collections, name)
	return nil
}

// RenameCollection renames a registered collection's on-disk directory and
// its registry key. Fails with ErrNoSuchCollection if old is not
// registered, ErrCollectionExists if newName is already taken, or
// ErrInvalidName if newName is illegal.
func (m *Manager) RenameCollection(oldName, newName string) error {
	if err := ValidateName(newName); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[oldName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchCollection, oldName)
	}
	if _, taken := m.collections[newName]; taken {
		return fmt.Errorf("%w: %q", ErrCollectionExists, newName)
	}

	oldDir := filepath.Join(m.root, oldName)
	newDir := filepath.Join(m.root, newName)
	if err := os.Rename(oldDir, newDir); err != nil {
		return fmt.Errorf("manager: %w", err)
	}

	c.SetDir(newDir)
	delete(m.collections, oldName)
	m.collections[newName] = c
	return nil
}

// GetCollectionStats passes through to name's Stats, or ErrNoSuchCollection.
func (m *Manager) GetCollectionStats(name string) (collection.Stats, error) {
	c, err := m.GetCollection(name)
	if err != nil {
		return collection.Stats{}, err
	}
	return c.Stats(), nil
}
