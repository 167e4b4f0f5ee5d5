package config

const (
	defaultConfigPath      = "~/.config/vidbridge/config.toml"
	defaultLogDir          = "~/.local/share/vidbridge/logs"
	defaultHistoryDB       = "~/.local/share/vidbridge/history.db"
	defaultCodec           = "h264"
	defaultWidth           = 1280
	defaultHeight          = 720
	defaultQueueCapacity   = 4
	defaultInputTimeoutMS  = 1000
	defaultOutputTimeoutMS = 100
	defaultEOSTimeoutMS    = 1000
	defaultInputSlots      = 8
	defaultSlotSize        = 512 * 1024
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultLogRetention    = 14
	defaultFPS             = 60
	defaultSubmitRetries   = 3
	defaultRetryBackoffMS  = 4
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Decoder: Decoder{
			Codec:           defaultCodec,
			Width:           defaultWidth,
			Height:          defaultHeight,
			QueueCapacity:   defaultQueueCapacity,
			InputTimeoutMS:  defaultInputTimeoutMS,
			OutputTimeoutMS: defaultOutputTimeoutMS,
			EOSTimeoutMS:    defaultEOSTimeoutMS,
		},
		Engine: Engine{
			InputSlots: defaultInputSlots,
			SlotSize:   defaultSlotSize,
			LiveRebind: true,
		},
		Paths: Paths{
			LogDir:    defaultLogDir,
			HistoryDB: defaultHistoryDB,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetention,
		},
		Playback: Playback{
			FPS:            defaultFPS,
			SubmitRetries:  defaultSubmitRetries,
			RetryBackoffMS: defaultRetryBackoffMS,
		},
	}
}
