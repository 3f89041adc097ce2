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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	loraduplex "github.com/ZaparooProject/go-loraduplex"
	"github.com/ZaparooProject/go-loraduplex/duplex"
	"github.com/ZaparooProject/go-loraduplex/rylr896"
	"github.com/ZaparooProject/go-loraduplex/sx127x"
)

const transceiverName = "LoRa"

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

type config struct {
	role       duplex.Role
	driver     string
	serialPort string
	logPath    string
	roleTag    string
	configPath string
	debug      bool
	sessionLog bool
	asyncBlink bool
}

// Package-level flag variables
var (
	flagRole       string
	flagDriver     string
	flagSerialPort string
	flagLogPath    string
	flagRoleTag    string
	flagConfigPath string
	flagDebug      bool
	flagSessionLog bool
	flagAsyncBlink bool
)

func init() {
	flag.StringVar(&flagRole, "role", "sender", "Loop role: sender or receiver (receiver appends received text to -log)")
	flag.StringVar(&flagDriver, "driver", "sx127x", "Transceiver driver: sx127x (SPI) or rylr896 (UART)")
	flag.StringVar(&flagSerialPort, "serial", "/dev/serial0", "Serial port for the rylr896 driver, or auto to probe for one")
	flag.StringVar(&flagLogPath, "log", duplex.DefaultLogPath, "File received text is appended to in receiver role")
	flag.StringVar(&flagRoleTag, "tag", "RPi", "Tag prefixed to every outgoing message")
	flag.StringVar(&flagConfigPath, "config", "", "Hardware configuration file (searched in default locations if empty)")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.BoolVar(&flagSessionLog, "session-log", false, "Write a timestamped debug session log in the current directory")
	flag.BoolVar(&flagAsyncBlink, "async-blink", false, "Blink the activity LED without stalling receive polling")
}

func parseConfig() (*config, error) {
	role, err := duplex.ParseRole(flagRole)
	if err != nil {
		return nil, err
	}
	cfg := &config{
		role:       role,
		driver:     flagDriver,
		serialPort: flagSerialPort,
		logPath:    flagLogPath,
		roleTag:    flagRoleTag,
		configPath: flagConfigPath,
		debug:      flagDebug,
		sessionLog: flagSessionLog,
		asyncBlink: flagAsyncBlink,
	}

	if cfg.debug {
		loraduplex.SetDebugEnabled(true)
	}
	return cfg, nil
}

func loadHardwareConfig(cfg *config) (*loraduplex.Config, error) {
	if cfg.configPath != "" {
		hw, err := loraduplex.LoadConfigFile(cfg.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", cfg.configPath, err)
		}
		return hw, nil
	}
	hw, err := loraduplex.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return hw, nil
}

// openTransceiver registers the SPI driver with the controller, or opens the
// UART driver. The returned closer releases whatever the driver holds on top
// of the controller.
func openTransceiver(
	ctx context.Context,
	ctrl *loraduplex.Controller,
	hw *loraduplex.Config,
	cfg *config,
) (loraduplex.Transceiver, io.Closer, error) {
	switch cfg.driver {
	case "sx127x":
		t, err := ctrl.AddTransceiver(transceiverName, hw.Transceiver, sx127x.New(sx127x.DefaultConfig()))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to add transceiver: %w", err)
		}
		return t, noopCloser{}, nil
	case "rylr896":
		rcfg := rylr896.DefaultConfig()
		rcfg.Port = cfg.serialPort
		if rcfg.Port == "auto" {
			port, err := rylr896.Detect(ctx, rylr896.DefaultDetectOptions())
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %w", loraduplex.ErrHardwareUnavailable, err)
			}
			rcfg.Port = port
		}
		dev, err := rylr896.Open(rcfg)
		if err != nil {
			return nil, nil, err
		}
		if err := dev.Init(); err != nil {
			_ = dev.Close()
			return nil, nil, fmt.Errorf("%w: %s: %w", loraduplex.ErrTransceiverInit, transceiverName, err)
		}
		return dev, dev, nil
	default:
		return nil, nil, fmt.Errorf("%w: unsupported driver %q", loraduplex.ErrInvalidConfig, cfg.driver)
	}
}

// loopConfig maps the command line onto the loop configuration
func loopConfig(cfg *config) *duplex.Config {
	loopCfg := duplex.DefaultConfig()
	loopCfg.Role = cfg.role
	loopCfg.RoleTag = cfg.roleTag
	loopCfg.LogPath = cfg.logPath
	loopCfg.AsyncIndicator = cfg.asyncBlink
	return loopCfg
}

func newScheduler(
	t loraduplex.Transceiver,
	indicator loraduplex.Indicator,
	sink duplex.Sink,
	loopCfg *duplex.Config,
	out io.Writer,
) *duplex.Scheduler {
	s := duplex.NewScheduler(t, indicator, sink, loopCfg)
	s.OnSend = func(message string, err error) {
		if err != nil {
			_, _ = fmt.Fprintf(out, "Send failed: %v\n", err)
			return
		}
		_, _ = fmt.Fprintf(out, "Sending message:\n%s\n\n", message)
	}
	s.OnReceive = func(pkt duplex.Packet) {
		if pkt.Err != nil {
			_, _ = fmt.Fprintln(out, pkt.Err)
		} else {
			_, _ = fmt.Fprintf(out, "*** Received message ***\n%s\n", pkt.Text)
		}
		_, _ = fmt.Fprintf(out, "with RSSI %d\n\n", pkt.RSSI)
	}
	return s
}

// sessionInfo names the role and the port the chosen driver talks through
func sessionInfo(cfg *config, hw *loraduplex.Config) loraduplex.SessionInfo {
	info := loraduplex.SessionInfo{Role: cfg.role.String(), Driver: cfg.driver}
	switch cfg.driver {
	case "rylr896":
		info.SerialPort = cfg.serialPort
	default:
		info.SPIPort = hw.SPI.PortName()
	}
	return info
}

func run(ctx context.Context, cfg *config, hw *loraduplex.Config) error {
	ctrl, err := loraduplex.NewController(hw)
	if err != nil {
		return fmt.Errorf("failed to start controller: %w", err)
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close controller: %v\n", err)
		}
	}()

	t, closer, err := openTransceiver(ctx, ctrl, hw, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	loopCfg := loopConfig(cfg)
	var sink duplex.Sink
	if loopCfg.Role == duplex.RoleReceiver {
		fileSink, err := loopCfg.OpenSink()
		if err != nil {
			return err
		}
		defer func() { _ = fileSink.Close() }()
		sink = fileSink
	}

	_, _ = fmt.Println("LoRa Duplex")
	return newScheduler(t, ctrl, sink, loopCfg, os.Stdout).Run(ctx)
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	hw, err := loadHardwareConfig(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if cfg.sessionLog {
		path, err := loraduplex.InitSessionLog(sessionInfo(cfg, hw))
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		_, _ = fmt.Printf("Session log: %s\n", path)
		defer func() { _ = loraduplex.CloseSessionLog() }()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg, hw); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
