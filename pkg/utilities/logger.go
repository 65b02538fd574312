package utilities

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level string `env:"LOG_LEVEL"`
	Dev   bool   `env:"LOG_DEV"`
	// File enables a rotated log file next to stdout, e.g. /var/log/latteh/api.log
	File         string        `env:"LOG_FILE"`
	FileMaxAge   time.Duration `env:"LOG_FILE_MAX_AGE" envDefault:"168h"`
	FileRotation time.Duration `env:"LOG_FILE_ROTATION" envDefault:"24h"`
}

// ConfigFromEnv reads minimal config from env vars.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse log env: %w", err)
	}
	if cfg.Level == "" {
		if cfg.Dev {
			cfg.Level = "debug"
		} else {
			cfg.Level = "info"
		}
	}
	return cfg, nil
}

func levelFromString(l string) zapcore.Level {
	switch l {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init initializes and returns a *zap.Logger
func Init(cfg Config) (*zap.Logger, error) {
	lvl := levelFromString(cfg.Level)
	if cfg.Dev && cfg.File == "" {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), lvl),
	}
	if cfg.File != "" {
		w, err := rotatingWriter(cfg)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(w), lvl))
	}
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	return zap.New(zapcore.NewTee(cores...), opts...), nil
}

func rotatingWriter(cfg Config) (*rotatelogs.RotateLogs, error) {
	maxAge := cfg.FileMaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	rotation := cfg.FileRotation
	if rotation <= 0 {
		rotation = 24 * time.Hour
	}
	w, err := rotatelogs.New(
		cfg.File+".%Y%m%d",
		rotatelogs.WithLinkName(cfg.File),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(rotation),
	)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return w, nil
}
