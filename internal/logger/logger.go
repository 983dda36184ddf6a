package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	IsDevelopment bool
	Encoding      string // json | console
	Level         string
}

func ConfigFor(appEnv, level string) Config {
	cfg := Config{Encoding: "json", Level: "info"}
	if appEnv == "development" {
		cfg = Config{IsDevelopment: true, Encoding: "console", Level: "debug"}
	}
	if level != "" {
		cfg.Level = level
	}
	return cfg
}

func New(cfg Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.IsDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Encoding != "" {
		zc.Encoding = cfg.Encoding
	}
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
