package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mediaflow/internal/condition"
	"mediaflow/internal/config"
	"mediaflow/internal/definition"
	"mediaflow/internal/handler"
	"mediaflow/internal/operations"
	"mediaflow/internal/store"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) withStore(fn func(*store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open workflow store: %w", err)
	}
	defer st.Close()
	return fn(st)
}

// loadCatalog parses the definitions directory. Files that fail to load are
// returned as an error alongside the definitions that did load.
func (c *commandContext) loadCatalog() (*definition.Catalog, error) {
	catalog := definition.NewCatalog(condition.NewEvaluator())
	cfg, err := c.ensureConfig()
	if err != nil {
		return catalog, err
	}
	_, err = catalog.LoadDir(cfg.Paths.DefinitionsDir, cfg.Workflow.DefaultMaxAttempts, nil)
	return catalog, err
}

// handlerRegistry registers the built-in handlers without a job cluster.
// It is only suitable for validation.
func (c *commandContext) handlerRegistry() (*handler.Registry, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	reg := handler.NewRegistry()
	if err := operations.Register(reg, nil, cfg); err != nil {
		return nil, err
	}
	return reg, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func flagLabel(value *bool) string {
	if value == nil {
		return "unknown"
	}
	return yesNo(*value)
}

// parseProperties turns repeated key=value flags into a map.
func parseProperties(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, raw := range values {
		key, value, ok := strings.Cut(raw, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q (expected key=value)", raw)
		}
		out[key] = value
	}
	return out, nil
}
