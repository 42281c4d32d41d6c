// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

// halyard-tail is a diagnostic tail of an agent daemon's event
// stream. It connects with the same sync runtime the console UI uses,
// logs every inbound frame, and can capture the stream to a file with
// --record or replay a previous capture offline with --replay.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/halyard-dev/halyard/auth"
	"github.com/halyard-dev/halyard/client"
	"github.com/halyard-dev/halyard/conn"
	"github.com/halyard-dev/halyard/lib/config"
	"github.com/halyard-dev/halyard/lib/version"
	"github.com/halyard-dev/halyard/recording"
	"github.com/halyard-dev/halyard/router"
	"github.com/halyard-dev/halyard/state"
	"github.com/halyard-dev/halyard/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var sessionID string
	var recordPath string
	var replayPath string

	// Handle --version before flag parsing to match other Halyard
	// binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("halyard-tail")
		return nil
	}

	flagSet := pflag.NewFlagSet("halyard-tail", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to halyard.yaml (default: $HALYARD_CONFIG)")
	flagSet.StringVar(&sessionID, "session", "", "switch to this session after connecting")
	flagSet.StringVar(&recordPath, "record", "", "capture the inbound stream to this file")
	flagSet.StringVar(&replayPath, "replay", "", "replay a capture file instead of connecting")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	if replayPath != "" {
		return replay(replayPath)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.SlogLevel())); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	return tail(cfg, logger, sessionID, recordPath)
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// tail connects to the daemon and logs every inbound frame until
// interrupted.
func tail(cfg *config.Config, logger *slog.Logger, sessionID, recordPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	token, err := cfg.Token()
	if err != nil {
		return err
	}

	var recorder *recording.Writer
	if recordPath != "" {
		file, err := os.Create(recordPath)
		if err != nil {
			return fmt.Errorf("creating capture file: %w", err)
		}
		defer file.Close()
		recorder, err = recording.NewWriter(file)
		if err != nil {
			return err
		}
		defer recorder.Close()
	}

	onFrame := func(frame []byte) {
		logFrame(logger, frame)
		if recorder != nil {
			if err := recorder.Append(recording.Frame{
				At:   time.Now().UnixMilli(),
				Data: append([]byte(nil), frame...),
			}); err != nil {
				logger.Error("capture write failed", "error", err)
			}
		}
	}

	baseDelay, maxDelay := cfg.Delays()
	c, err := client.New(client.Config{
		URL:       cfg.Daemon.URL,
		Token:     token,
		BaseDelay: baseDelay,
		MaxDelay:  maxDelay,
		OnFrame:   onFrame,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	statusChanged, cancel := c.Connection().Subscribe()
	defer cancel()

	c.Connect()
	logger.Info("tailing daemon", "url", cfg.Daemon.URL)

	switched := false
	for {
		select {
		case <-ctx.Done():
			logger.Info("interrupted, closing")
			return nil
		case <-statusChanged:
			current, detail := c.Connection().Get()
			if detail != "" {
				logger.Info("connection state", "state", current, "detail", detail)
			} else {
				logger.Info("connection state", "state", current)
			}
			if current == conn.StateConnected && sessionID != "" && !switched {
				switched = true
				if err := c.SwitchSession(sessionID); err != nil {
					logger.Error("session switch failed", "error", err)
				}
			}
		}
	}
}

// replay drives a capture file through a router and reports the
// resulting roster, without any network.
func replay(replayPath string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	file, err := os.Open(replayPath)
	if err != nil {
		return fmt.Errorf("opening capture file: %w", err)
	}
	defer file.Close()

	reader, err := recording.NewReader(file)
	if err != nil {
		return err
	}
	defer reader.Close()

	session := state.NewSessionStore()
	roster := state.NewRoster()
	messages := state.NewMessageList()
	route := router.New(router.Config{
		Session:  session,
		Roster:   roster,
		Messages: messages,
		Flows:    auth.NewFlowStore(),
		Logger:   logger,
	})

	frames := 0
	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		frames++

		logFrame(logger, frame.Data)
		event, err := wire.Decode(frame.Data)
		if err != nil {
			logger.Warn("undecodable frame in capture", "error", err)
			continue
		}
		// Treat every session as active so the full detail stream is
		// applied during replay.
		route.Route(event, probeSessionID(frame.Data))
	}

	logger.Info("replay finished", "frames", frames, "sessions", roster.Len())
	for _, summary := range roster.List() {
		logger.Info("session",
			"id", summary.SessionID,
			"title", summary.Title,
			"messages", summary.MessageCount)
	}
	return nil
}

// probeSessionID extracts the session id from a raw frame, or ""
// when the frame has none.
func probeSessionID(frame []byte) string {
	var probe struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(frame, &probe); err != nil {
		return ""
	}
	return probe.SessionID
}

// logFrame logs a frame's type without fully decoding it.
func logFrame(logger *slog.Logger, frame []byte) {
	var probe struct {
		Type      string `json:"type"`
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(frame, &probe); err != nil {
		logger.Warn("frame is not JSON", "bytes", len(frame))
		return
	}
	if probe.SessionID != "" {
		logger.Info("event", "type", probe.Type, "session", probe.SessionID)
	} else {
		logger.Info("event", "type", probe.Type)
	}
}
