// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package loraduplex

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"
)

// Session log state
var (
	sessionLogFile   *os.File
	sessionLogPath   string
	sessionLogWriter io.Writer
)

// SessionInfo identifies the run at the top of a session log. Empty fields
// are left out.
type SessionInfo struct {
	Role       string
	Driver     string
	SPIPort    string
	SerialPort string
}

// InitSessionLog starts loraduplex_<timestamp>.log in the working directory,
// mirrors debug output into it and returns its name.
func InitSessionLog(info SessionInfo) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("loraduplex_%s.log", timestamp)

	logFile, err := os.Create(filename) //nolint:gosec // filename is constructed internally, not user input
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}

	sessionLogFile = logFile
	sessionLogPath = filename
	sessionLogWriter = logFile

	writeSessionHeader(logFile, info)

	return filename, nil
}

// CloseSessionLog marks the end of the session and closes the file
func CloseSessionLog() error {
	if sessionLogFile != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(sessionLogWriter, "\n%s === Session ended ===\n", timestamp)

		err := sessionLogFile.Close()
		sessionLogFile = nil
		sessionLogPath = ""
		sessionLogWriter = nil
		if err != nil {
			return fmt.Errorf("failed to close session log: %w", err)
		}
	}
	return nil
}

// GetSessionLogPath returns the open session log name, or "" if none is open
func GetSessionLogPath() string {
	return sessionLogPath
}

func writeSessionHeader(writer io.Writer, info SessionInfo) {
	_, _ = fmt.Fprint(writer, "=== LoRa Duplex Session Log ===\n")
	for _, field := range []struct{ name, value string }{
		{"Role", info.Role},
		{"Driver", info.Driver},
		{"SPI Port", info.SPIPort},
		{"Serial Port", info.SerialPort},
	} {
		if field.value != "" {
			_, _ = fmt.Fprintf(writer, "%s: %s\n", field.name, field.value)
		}
	}
	_, _ = fmt.Fprintf(writer, "Started: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(writer, "PID: %d (%s/%s, %s)\n", os.Getpid(), runtime.GOOS, runtime.GOARCH, runtime.Version())
	_, _ = fmt.Fprintf(writer, "Command Line: %s\n", strings.Join(os.Args, " "))
	_, _ = fmt.Fprint(writer, "===============================\n\n")
}
