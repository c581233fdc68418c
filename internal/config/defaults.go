package config

const (
	defaultDataDir               = "~/.local/share/patchwatch"
	defaultLogDir                = "~/.local/share/patchwatch/logs"
	defaultSocketPath            = "~/.local/share/patchwatch/patchwatchd.sock"
	defaultAggregatorTimeout     = 15
	defaultCacheTTLMinutes       = 30
	defaultRequestsPerSecond     = 1.0
	defaultRequestBurst          = 2
	defaultAutoApplyConfidence   = 0.8
	defaultQueueMinConfidence    = 0.3
	defaultPatternConfidence     = 0.6
	defaultSimilarityThreshold   = 0.5
	defaultFreshnessWindowHours  = 24
	defaultTickIntervalSeconds   = 30
	defaultCadenceMinutes        = 360
	defaultCacheSweepMinutes     = 120
	defaultTitleSweepMinutes     = 720
	defaultStatusNextChecks      = 10
	defaultClassifierModel       = "gpt-4o-mini"
	defaultClassifierTimeoutSecs = 20
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			SocketPath: defaultSocketPath,
		},
		Aggregator: Aggregator{
			RequestTimeout:    defaultAggregatorTimeout,
			CacheTTLMinutes:   defaultCacheTTLMinutes,
			RequestsPerSecond: defaultRequestsPerSecond,
			Burst:             defaultRequestBurst,
		},
		Engine: Engine{
			AutoApplyConfidence:  defaultAutoApplyConfidence,
			QueueMinConfidence:   defaultQueueMinConfidence,
			PatternConfidence:    defaultPatternConfidence,
			SimilarityThreshold:  defaultSimilarityThreshold,
			FreshnessWindowHours: defaultFreshnessWindowHours,
		},
		Scheduler: Scheduler{
			TickIntervalSeconds:   defaultTickIntervalSeconds,
			DefaultCadenceMinutes: defaultCadenceMinutes,
			CacheSweepIntervalMin: defaultCacheSweepMinutes,
			TitleSweepIntervalMin: defaultTitleSweepMinutes,
			StatusNextChecksLimit: defaultStatusNextChecks,
		},
		Classifier: Classifier{
			Model:          defaultClassifierModel,
			TimeoutSeconds: defaultClassifierTimeoutSecs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
