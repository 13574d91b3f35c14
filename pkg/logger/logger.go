/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// DAPKIT_DIAGNOSTICS_LOG_FOLDER is the folder diagnostics logs are
	// written to (defaults to a temp folder).
	DAPKIT_DIAGNOSTICS_LOG_FOLDER = "DAPKIT_DIAGNOSTICS_LOG_FOLDER"

	// DAPKIT_DIAGNOSTICS_LOG_LEVEL is the level included in diagnostics
	// logs (unset disables the diagnostics log).
	DAPKIT_DIAGNOSTICS_LOG_LEVEL = "DAPKIT_DIAGNOSTICS_LOG_LEVEL"

	verbosityFlagName      = "verbosity"
	verbosityFlagShortName = "v"
)

var defaultLogPath = filepath.Join(os.TempDir(), "dapkit", "logs")

// Logger wraps a logr.Logger with console output to stderr and an optional
// machine-readable diagnostics log file.
type Logger struct {
	logr.Logger
	name        string
	atomicLevel zap.AtomicLevel
	flush       func()
}

// New creates a logger writing human-readable output to stderr and, when
// DAPKIT_DIAGNOSTICS_LOG_LEVEL is set, JSON output to a log file.
func New(name string) *Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	consoleAtomicLevel := zap.NewAtomicLevel()
	consoleLog := zapcore.Lock(os.Stderr)

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, consoleLog, consoleAtomicLevel),
	}

	var diagnosticsLogErr error
	if logCore, coreErr := getDiagnosticsLogCore(name, encoderConfig); coreErr != nil {
		if !errors.Is(coreErr, errDiagnosticsLogNotEnabled) {
			diagnosticsLogErr = coreErr
		}
	} else {
		cores = append(cores, logCore)
	}

	zapLogger := zap.New(zapcore.NewTee(cores...))
	logger := zapr.NewLogger(zapLogger)

	if diagnosticsLogErr != nil {
		logger.Error(diagnosticsLogErr, "failed to enable diagnostics log output")
		fmt.Fprintf(os.Stderr, "failed to enable diagnostics log output: %v\n", diagnosticsLogErr)
	}

	return &Logger{
		Logger:      logger,
		name:        name,
		atomicLevel: consoleAtomicLevel,
		flush: func() {
			_ = zapLogger.Sync()
		},
	}
}

func (l *Logger) WithName(name string) *Logger {
	l.Logger = l.Logger.WithName(name)
	return l
}

func (l *Logger) SetLevel(level zapcore.Level) {
	l.atomicLevel.SetLevel(level)
}

func (l *Logger) Flush() {
	l.flush()
}

// AddLevelFlag adds the verbosity flag controlling the console log level.
func (l *Logger) AddLevelFlag(fs *pflag.FlagSet) {
	levelVal := NewLevelFlagValue(func(level zapcore.Level) {
		l.SetLevel(level)
	})
	fs.VarP(&levelVal, verbosityFlagName, verbosityFlagShortName,
		"Logging verbosity level (e.g. -v=debug). Can be one of 'debug', 'info', or 'error', or any positive integer corresponding to increasing levels of debug verbosity.")
}

var errDiagnosticsLogNotEnabled = errors.New("diagnostics log not enabled")

func getDiagnosticsLogCore(name string, encoderConfig zapcore.EncoderConfig) (zapcore.Core, error) {
	diagnosticsLogLevel, found := os.LookupEnv(DAPKIT_DIAGNOSTICS_LOG_LEVEL)
	if !found {
		return nil, errDiagnosticsLogNotEnabled
	}

	logLevel, levelErr := StringToLevel(diagnosticsLogLevel, zapcore.ErrorLevel)
	if levelErr != nil {
		return nil, fmt.Errorf("failed to parse log level: %v", diagnosticsLogLevel)
	}

	logFolder, folderErr := EnsureDiagnosticsLogsFolder()
	if folderErr != nil {
		return nil, folderErr
	}

	logName := fmt.Sprintf("%s-%d.log", name, os.Getpid())
	logOutput, openErr := os.OpenFile(
		filepath.Join(logFolder, logName),
		os.O_RDWR|os.O_CREATE|os.O_APPEND,
		0o600,
	)
	if openErr != nil {
		return nil, fmt.Errorf("failed to create log file: %w", openErr)
	}

	logEncoder := zapcore.NewJSONEncoder(encoderConfig)
	return zapcore.NewCore(logEncoder, zapcore.AddSync(logOutput), zap.NewAtomicLevelAt(logLevel)), nil
}

// EnsureDiagnosticsLogsFolder returns the folder diagnostics logs are
// written to, creating it when missing.
func EnsureDiagnosticsLogsFolder() (string, error) {
	logFolder, found := os.LookupEnv(DAPKIT_DIAGNOSTICS_LOG_FOLDER)
	if !found {
		logFolder = defaultLogPath
	}

	info, statErr := os.Stat(logFolder)
	if errors.Is(statErr, os.ErrNotExist) {
		if mkdirErr := os.MkdirAll(logFolder, 0o700); mkdirErr != nil {
			return "", fmt.Errorf("failed to create the diagnostic log folder '%s': %w", logFolder, mkdirErr)
		}
	} else if statErr != nil {
		return "", fmt.Errorf("failed to verify the existence of the diagnostic log folder '%s': %w", logFolder, statErr)
	} else if !info.IsDir() {
		return "", fmt.Errorf("'%s' is not a directory and cannot be used as a log folder", logFolder)
	}

	return logFolder, nil
}
