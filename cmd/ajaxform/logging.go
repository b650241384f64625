package main

import (
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the CLI logger: a console or JSON core on console, plus a
// rotated JSON file core when cfg.File is set.
func newLogger(cfg logConfig, console zapcore.WriteSyncer) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	enc, err := encoderFor(cfg.Format)
	if err != nil {
		return nil, err
	}
	cores := []zapcore.Core{zapcore.NewCore(enc, console, level)}

	if cfg.File != "" {
		path, err := homedir.Expand(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("log file: %w", err)
		}
		fileEnc, _ := encoderFor("json")
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(fileEnc, w, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel)).Named("ajaxform"), nil
}

func encoderFor(format string) (zapcore.Encoder, error) {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")

	switch strings.ToLower(format) {
	case "json":
		return zapcore.NewJSONEncoder(ec), nil
	case "", "console":
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.EncodeCaller = zapcore.ShortCallerEncoder
		return zapcore.NewConsoleEncoder(ec), nil
	default:
		return nil, fmt.Errorf("log format %q: want json or console", format)
	}
}
