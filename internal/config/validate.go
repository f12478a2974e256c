package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers < 1 {
		return errors.New("workflow.workers must be at least 1")
	}
	if c.Workflow.PollInterval <= 0 {
		return errors.New("workflow.poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return fmt.Errorf("workflow.heartbeat_timeout (%d) must exceed workflow.heartbeat_interval (%d)", c.Workflow.HeartbeatTimeout, c.Workflow.HeartbeatInterval)
	}
	if c.Workflow.RetryBackoff < 0 {
		return errors.New("workflow.retry_backoff must not be negative")
	}
	if c.Workflow.DefaultMaxAttempts < 1 {
		return errors.New("workflow.default_max_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Jobs.Nodes < 1 {
		return errors.New("jobs.nodes must be at least 1")
	}
	if c.Jobs.Buffer < 1 {
		return errors.New("jobs.buffer must be at least 1")
	}
	if c.Jobs.PollIntervalMs <= 0 {
		return errors.New("jobs.poll_interval_ms must be positive")
	}
	if c.Jobs.WaitTimeout <= 0 {
		return errors.New("jobs.wait_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	topic := strings.TrimSpace(c.Notifications.NtfyTopic)
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full URL, got %q", topic)
	}
	return nil
}
