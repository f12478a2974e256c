package definition

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

// Catalog holds the published workflow definitions by id.
type Catalog struct {
	mu          sync.RWMutex
	definitions map[string]*Workflow
	checker     ConditionChecker
}

// NewCatalog returns an empty catalog. checker compiles conditions on
// registration and may be nil.
func NewCatalog(checker ConditionChecker) *Catalog {
	return &Catalog{definitions: make(map[string]*Workflow), checker: checker}
}

// Register validates def and adds a private copy of it.
func (c *Catalog) Register(def *Workflow) error {
	if err := def.Validate(c.checker); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.definitions[def.ID]; exists {
		return services.Wrap(services.ErrConfiguration, "catalog", "register", fmt.Sprintf("duplicate workflow id %q", def.ID), nil)
	}
	c.definitions[def.ID] = def.Clone()
	return nil
}

// Get returns a copy of the definition with id.
func (c *Catalog) Get(id string) (*Workflow, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.definitions[id]
	if !ok {
		return nil, false
	}
	return def.Clone(), true
}

// List returns copies of all definitions sorted by id.
func (c *Catalog) List() []*Workflow {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Workflow, 0, len(c.definitions))
	for _, def := range c.definitions {
		out = append(out, def.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Validate checks references between definitions: every exception handling
// workflow must exist in the catalog.
func (c *Catalog) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var errs []error
	ids := make([]string, 0, len(c.definitions))
	for id := range c.definitions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		for pos, op := range c.definitions[id].Operations {
			target := op.ExceptionHandlingWorkflow
			if target == "" {
				continue
			}
			if _, ok := c.definitions[target]; !ok {
				errs = append(errs, services.Wrap(services.ErrConfiguration, "catalog", "validate",
					fmt.Sprintf("workflow %q position %d (%s): unknown exception handler workflow %q", id, pos, op.ID, target), nil))
			}
		}
	}
	return errors.Join(errs...)
}

// LoadFile parses, validates and registers one definition file.
func (c *Catalog) LoadFile(path string, defaultMaxAttempts int) (*Workflow, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "load", fmt.Sprintf("unsupported definition file %s", path), nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition %s: %w", path, err)
	}
	def, err := Parse(data, format, defaultMaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := c.Register(def); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return def, nil
}

// LoadDir registers every *.toml and *.json file in dir and then validates
// cross references. A missing directory is not an error.
func (c *Catalog) LoadDir(dir string, defaultMaxAttempts int, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read definitions directory: %w", err)
	}
	loaded := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if _, ok := FormatFromPath(entry.Name()); !ok {
			continue
		}
		def, err := c.LoadFile(filepath.Join(dir, entry.Name()), defaultMaxAttempts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		loaded++
		logger.Debug("workflow definition loaded",
			logging.String(logging.FieldDefinitionID, def.ID),
			logging.Int("operations", len(def.Operations)),
			logging.String("file", entry.Name()),
		)
	}
	if len(errs) > 0 {
		return loaded, errors.Join(errs...)
	}
	return loaded, c.Validate()
}
