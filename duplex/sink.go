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

package duplex

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	loraduplex "github.com/ZaparooProject/go-loraduplex"
)

// Sink persists received text
type Sink interface {
	WriteLine(line string) error
}

// FileSink appends one line per received payload to a file. It has no size
// bound and no rotation.
type FileSink struct {
	file *os.File
	path string
}

// OpenFileSink opens path for appending, creating it if needed
func OpenFileSink(path string) (*FileSink, error) {
	//nolint:gosec // log path chosen by the operator
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open receive log: %w", err)
	}
	return &FileSink{file: f, path: path}, nil
}

// OpenSink opens the receive log named by LogPath
func (c *Config) OpenSink() (*FileSink, error) {
	if c.LogPath == "" {
		return nil, fmt.Errorf("%w: receive log path is empty", loraduplex.ErrInvalidConfig)
	}
	return OpenFileSink(c.LogPath)
}

// Path returns the file path
func (s *FileSink) Path() string {
	return s.path
}

// lineBreaks folds embedded line breaks so a payload stays on one line
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// WriteLine writes line and a newline in a single write. Line breaks inside
// line are replaced by spaces.
func (s *FileSink) WriteLine(line string) error {
	if _, err := s.file.WriteString(lineBreaks.Replace(line) + "\n"); err != nil {
		return fmt.Errorf("failed to append to %s: %w", s.path, err)
	}
	return nil
}

// Close closes the file
func (s *FileSink) Close() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", s.path, err)
	}
	return nil
}

// DecodeText returns payload as a string if it is valid UTF-8
func DecodeText(payload []byte) (string, error) {
	if !utf8.Valid(payload) {
		return "", fmt.Errorf("%w: % X", loraduplex.ErrDecodeFailure, payload)
	}
	return string(payload), nil
}
