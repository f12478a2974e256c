package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeJobs()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.data_dir", &c.Paths.DataDir, defaultDataDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.definitions_dir", &c.Paths.DefinitionsDir, defaultDefinitionsDir},
		{"paths.workspace_dir", &c.Paths.WorkspaceDir, defaultWorkspaceDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers == 0 {
		c.Workflow.Workers = defaultWorkflowWorkers
	}
	if c.Workflow.PollInterval == 0 {
		c.Workflow.PollInterval = defaultWorkflowPollInterval
	}
	if c.Workflow.ErrorRetryInterval == 0 {
		c.Workflow.ErrorRetryInterval = defaultWorkflowErrorRetry
	}
	if c.Workflow.HeartbeatInterval == 0 {
		c.Workflow.HeartbeatInterval = defaultWorkflowHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout == 0 {
		c.Workflow.HeartbeatTimeout = defaultWorkflowHeartbeatTimeout
	}
	if c.Workflow.DefaultMaxAttempts == 0 {
		c.Workflow.DefaultMaxAttempts = defaultWorkflowDefaultMaxAttempts
	}
}

func (c *Config) normalizeJobs() {
	if c.Jobs.Nodes == 0 {
		c.Jobs.Nodes = defaultJobNodes
	}
	if c.Jobs.Buffer == 0 {
		c.Jobs.Buffer = defaultJobBuffer
	}
	if c.Jobs.PollIntervalMs == 0 {
		c.Jobs.PollIntervalMs = defaultJobPollIntervalMs
	}
	if c.Jobs.WaitTimeout == 0 {
		c.Jobs.WaitTimeout = defaultJobWaitTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("MEDIAFLOW_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}
