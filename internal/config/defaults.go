package config

const (
	defaultConfigPath           = "~/.config/lala/config.toml"
	defaultDataDir              = "~/.local/share/lala"
	defaultLogDir               = "~/.local/share/lala/logs"
	defaultInboxDir             = "~/.local/share/lala/inbox"
	defaultAPIBind              = "127.0.0.1:7687"
	defaultMaxFileSizeMB        = 500
	defaultPollIntervalMs       = 500
	defaultErrorRetryIntervalMs = 1000
	defaultSeparatorCommand     = "lala-separate"
	defaultTranscriberCommand   = "lala-transcribe"
	defaultRendererCommand      = "lala-render"
	defaultExportRegion         = "us-east-1"
	defaultInboxSettleMs        = 2000
	defaultNtfyTimeoutSeconds   = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogMaxSizeMB         = 50
	defaultLogMaxBackups        = 5
	defaultLogMaxAgeDays        = 30
)

var defaultPermittedExtensions = []string{"flac", "wav"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			InboxDir: defaultInboxDir,
			APIBind:  defaultAPIBind,
		},
		Upload: Upload{
			PermittedExtensions: append([]string(nil), defaultPermittedExtensions...),
			MaxFileSizeMB:       defaultMaxFileSizeMB,
		},
		Workflow: Workflow{
			PollIntervalMs:       defaultPollIntervalMs,
			ErrorRetryIntervalMs: defaultErrorRetryIntervalMs,
		},
		Tools: Tools{
			Separator: Tool{
				Command: defaultSeparatorCommand,
				Args:    []string{"--model", "{model}", "--output-dir", "{output_dir}", "{input}"},
			},
			Transcriber: Tool{
				Command: defaultTranscriberCommand,
				Args:    []string{"--output", "{output}", "{input}"},
			},
			Renderer: Tool{
				Command: defaultRendererCommand,
				Args:    []string{"--output", "{output}", "{input}"},
			},
		},
		Export: Export{
			Region: defaultExportRegion,
			UseSSL: true,
		},
		Inbox: Inbox{
			SettleMs: defaultInboxSettleMs,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
