package main

import "time"

type Config struct {
	ConnectionBacklog int           `env:"CONNECTION_BACKLOG,default=64"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	LivenessInterval  time.Duration `env:"LIVENESS_INTERVAL,default=30s"`
	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL,default=60s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	HistoryLimit      int           `env:"HISTORY_LIMIT,default=50"`
	MaskCharacter     string        `env:"MASK_CHARACTER,default=*"`
	AuthSecret        string        `env:"AUTH_SECRET"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath     string        `env:"BLUGE_FILEPATH,required=true"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	Host              string        `env:"HOST,default=localhost"`
	Port              int           `env:"PORT,default=8080"`
}
