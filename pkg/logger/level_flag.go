/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package logger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var levelStrings = map[string]zapcore.Level{
	"debug": zap.DebugLevel,
	"info":  zap.InfoLevel,
	"error": zap.ErrorLevel,
}

type LevelFlagValue struct {
	// Called once the requested level is known.
	onLevelAvailable func(zapcore.Level)
	value            string
}

func NewLevelFlagValue(onLevelAvailable func(zapcore.Level)) LevelFlagValue {
	return LevelFlagValue{
		onLevelAvailable: onLevelAvailable,
	}
}

// StringToLevel parses a named level or a positive integer verbosity into
// a zapcore level.
func StringToLevel(value string, defaultLevel zapcore.Level) (zapcore.Level, error) {
	if level, namedLevel := levelStrings[strings.ToLower(value)]; namedLevel {
		return level, nil
	}

	logLevel, parseErr := strconv.Atoi(value)
	if parseErr != nil {
		return defaultLevel, fmt.Errorf("invalid log level \"%s\"", value)
	}

	if logLevel > 0 {
		intLevel := -1 * logLevel // Zap has the levels backwards
		return zapcore.Level(int8(intLevel)), nil
	}
	return defaultLevel, fmt.Errorf("invalid log level \"%s\"", value)
}

func (lfv *LevelFlagValue) Set(flagValue string) error {
	level, levelErr := StringToLevel(flagValue, zapcore.InfoLevel)
	if levelErr != nil {
		return levelErr
	}
	lfv.onLevelAvailable(level)
	lfv.value = flagValue
	return nil
}

func (lfv *LevelFlagValue) String() string {
	return lfv.value
}

func (*LevelFlagValue) Type() string {
	return "level"
}

var _ pflag.Value = &LevelFlagValue{}
