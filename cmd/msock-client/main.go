package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jceel/msock/internal/config"
	"github.com/jceel/msock/internal/logging"
	"github.com/jceel/msock/msock"
)

func main() {
	configPath := flag.String("config", "/etc/msock/client.yaml", "path to client config file")
	channelID := flag.Uint("channel", 0, "channel id to open against the server")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File, "msock-client")
	defer closer.Close()

	if err := run(context.Background(), cfg, logger, uint32(*channelID)); err != nil {
		logger.Error("client error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, channelID uint32) error {
	conn, err := msock.Dial(cfg.Dial.Address, msock.Config{
		ChannelBufferSize: int(cfg.Channels.BufferSizeRaw),
		MaxFrameLength:    uint32(cfg.Channels.MaxFrameRaw),
		Logger:            logger,
	}, msock.Callbacks{
		OnClosed: func() {
			logger.Debug("connection closed")
		},
	})
	if err != nil {
		return fmt.Errorf("dialing %q: %w", cfg.Dial.Address, err)
	}
	defer conn.Close()

	id := channelID
	ch, err := conn.CreateChannel(&id, msock.ChannelData)
	if err != nil {
		return fmt.Errorf("creating channel %d: %w", channelID, err)
	}

	rw, err := wrapChannel(ctx, ch, cfg)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(os.Stdout, rw)
		done <- err
	}()

	if _, err := io.Copy(rw, os.Stdin); err != nil {
		return fmt.Errorf("writing to channel: %w", err)
	}
	ch.Close()

	return <-done
}

// wrapChannel layers optional compression and throttling on top of ch
// according to the client's configuration.
func wrapChannel(ctx context.Context, ch *msock.Channel, cfg *config.Config) (io.ReadWriter, error) {
	var rw io.ReadWriter = ch

	switch cfg.Channels.Compression {
	case "gzip":
		cc, err := msock.NewCompressedChannel(ch, msock.CompressionGzip)
		if err != nil {
			return nil, fmt.Errorf("wrapping channel with gzip compression: %w", err)
		}
		rw = cc
	case "zstd":
		cc, err := msock.NewCompressedChannel(ch, msock.CompressionZstd)
		if err != nil {
			return nil, fmt.Errorf("wrapping channel with zstd compression: %w", err)
		}
		rw = cc
	}

	if cfg.Throttle.BytesRaw > 0 {
		rw = &throttledReadWriter{
			Reader: rw,
			writer: msock.NewThrottledChannel(ctx, ch, cfg.Throttle.BytesRaw),
		}
	}

	return rw, nil
}

// throttledReadWriter pairs an unthrottled reader with a rate-limited
// writer, since ThrottledChannel only overrides Write.
type throttledReadWriter struct {
	io.Reader
	writer io.Writer
}

func (t *throttledReadWriter) Write(p []byte) (int, error) {
	return t.writer.Write(p)
}
