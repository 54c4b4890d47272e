package main

import "time"

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=8080"`
	AdminPort            int           `env:"ADMIN_PORT,default=9090"`
	GinMode              string        `env:"GIN_MODE,default=release"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	NumberOfWorkers      int           `env:"NUMBER_OF_WORKERS,required=true"`
	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`
	LimitMessages        int           `env:"LIMIT_MESSAGES,default=50"`
	MaxMessageSize       int64         `env:"MAX_MESSAGE_SIZE,default=8192"`
	PingPeriod           time.Duration `env:"PING_PERIOD,default=54s"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=1m"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}
