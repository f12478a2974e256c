package config

const (
	defaultConfigPath                 = "~/.config/mediaflow/config.toml"
	defaultDataDir                    = "~/.local/share/mediaflow"
	defaultLogDir                     = "~/.local/share/mediaflow/logs"
	defaultDefinitionsDir             = "~/.config/mediaflow/workflows"
	defaultWorkspaceDir               = "~/.local/share/mediaflow/workspace"
	defaultLogFormat                  = "console"
	defaultLogLevel                   = "info"
	defaultWorkflowWorkers            = 2
	defaultWorkflowPollInterval       = 5
	defaultWorkflowErrorRetry         = 10
	defaultWorkflowHeartbeatInterval  = 15
	defaultWorkflowHeartbeatTimeout   = 120
	defaultWorkflowDefaultMaxAttempts = 1
	defaultJobNodes                   = 2
	defaultJobBuffer                  = 64
	defaultJobPollIntervalMs          = 500
	defaultJobWaitTimeout             = 3600
	defaultNotifyRequestTimeout       = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:        defaultDataDir,
			LogDir:         defaultLogDir,
			DefinitionsDir: defaultDefinitionsDir,
			WorkspaceDir:   defaultWorkspaceDir,
		},
		Workflow: Workflow{
			Workers:            defaultWorkflowWorkers,
			PollInterval:       defaultWorkflowPollInterval,
			ErrorRetryInterval: defaultWorkflowErrorRetry,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
			DefaultMaxAttempts: defaultWorkflowDefaultMaxAttempts,
		},
		Jobs: Jobs{
			Nodes:          defaultJobNodes,
			Buffer:         defaultJobBuffer,
			PollIntervalMs: defaultJobPollIntervalMs,
			WaitTimeout:    defaultJobWaitTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Paused:         true,
			Succeeded:      true,
			Failed:         true,
			Stopped:        false,
		},
	}
}
