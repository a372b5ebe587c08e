package main

import "time"

type Config struct {
	BufferSize            int           `env:"BUFFER_SIZE,default=256"`
	ConnectionBufferSize  int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	ModerationReplacement string        `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
	LimitMessages         *int          `env:"LIMIT_MESSAGES"`
	SinkTimeout           time.Duration `env:"SINK_TIMEOUT,default=2s"`
	RestartInterval       time.Duration `env:"RESTART_INTERVAL,default=5s"`
	LatencyThreshold      time.Duration `env:"LATENCY_THRESHOLD,default=500ms"`
	ShutdownTimeout       time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	BadgerFilepath        string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath         string        `env:"BLUGE_FILEPATH,required=true"`
	LogLevel              string        `env:"LOG_LEVEL,default=info"`
	Host                  string        `env:"HOST,default=localhost"`
	Port                  int           `env:"PORT,default=8080"`
	DebugPort             int           `env:"DEBUG_PORT,default=0"`
	AllowedOrigins        string        `env:"ALLOWED_ORIGINS,default=*"`
	AuthSecret            string        `env:"AUTH_SECRET,required=true"`
	AuthIssuer            string        `env:"AUTH_ISSUER,default=chat-relay"`
	AuthTokenDuration     time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	MaxContentLength      int           `env:"MAX_CONTENT_LENGTH,default=2000"`
	TimelineDepth         int           `env:"TIMELINE_DEPTH,default=50"`
}
