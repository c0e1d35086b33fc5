/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process.
func Setup(environment string) zerolog.Logger {
	return SetupWithWriter(environment, nil)
}

// SetupWithWriter configures zerolog with an additional JSON writer
// (e.g., the log buffer exposed through the control API).
func SetupWithWriter(environment string, additionalWriter io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if environment == "development" {
		level = zerolog.DebugLevel
	}

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout}

	var writer io.Writer = consoleWriter
	if additionalWriter != nil {
		writer = zerolog.MultiLevelWriter(consoleWriter, additionalWriter)
	}

	logger := zerolog.New(writer).With().Timestamp().Logger().Level(level)
	log.Logger = logger
	return logger
}
