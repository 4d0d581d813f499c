package logger

import (
	"os"
	"sync"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log  *zap.Logger
	once sync.Once
)

// Options controls the global logger
type Options struct {
	// Debug switches to the development encoder at debug level
	Debug bool
	// Quiet raises the console level to warnings; the file core keeps its level
	Quiet bool
	// File, when set, adds a rotated JSON log file
	File string
}

// Init initializes the global logger with console output only
func Init(debug bool) {
	InitWithOptions(Options{Debug: debug})
}

// InitWithOptions initializes the global logger once; later calls are ignored
func InitWithOptions(opts Options) {
	once.Do(func() {
		log = newLogger(opts)
	})
}

// newLogger tees a console core and an optional rotated file core
func newLogger(opts Options) *zap.Logger {
	level := zapcore.InfoLevel
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if opts.Debug {
		level = zapcore.DebugLevel
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	consoleLevel := level
	if opts.Quiet {
		consoleLevel = zapcore.WarnLevel
	}
	cores := []zapcore.Core{zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		consoleLevel,
	)}

	if opts.File != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    50, // MB
				MaxBackups: 5,
				MaxAge:     30, // days
			}),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zapcore.ErrorLevel))
}

// Get returns the global logger, initializing a console logger on first use
func Get() *zap.Logger {
	once.Do(func() {
		log = newLogger(Options{})
	})
	return log
}

// Sync flushes any buffered log entries
func Sync() {
	if l := Get(); l != nil {
		_ = l.Sync()
	}
}
