// Command zarrstream streams raw frame data into a chunked Zarr store.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - The process-wide level is set from the --log-level flag
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"zarrstream/internal/logging"
	"zarrstream/internal/stream"
	"zarrstream/internal/zarr"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "zarrstream",
		Short: "Streaming Zarr chunk/shard writer",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("log-level")
			level, err := logging.ParseLevel(name)
			if err != nil {
				return err
			}
			logging.SetLevel(level)
			return nil
		},
	}
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warning, error, none")

	streamCmd := &cobra.Command{
		Use:   "stream",
		Short: "Append frames from a file or stdin to a Zarr store",
		RunE: func(cmd *cobra.Command, args []string) error {
			settingsPath, _ := cmd.Flags().GetString("settings")
			inputPath, _ := cmd.Flags().GetString("input")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			return run(ctx, settingsPath, inputPath)
		},
	}
	streamCmd.Flags().String("settings", "", "path to stream settings JSON (required)")
	streamCmd.Flags().String("input", "-", "raw frame data file, or - for stdin")
	_ = streamCmd.MarkFlagRequired("settings")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(streamCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, settingsPath, inputPath string) error {
	logger := logging.NewLogger(os.Stderr)

	settings, err := loadSettings(settingsPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	var input io.Reader = os.Stdin
	if inputPath != "-" {
		f, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		input = f
	}

	s, err := stream.New(ctx, stream.Config{Settings: settings, Logger: logger})
	if err != nil {
		return err
	}
	// Close-on-exit: partial chunks, open shards, and final metadata
	// are written even when ingestion stops early.
	defer func() {
		if cerr := s.Close(context.Background()); cerr != nil {
			logger.Error("close stream", "error", cerr)
		}
	}()

	// Settings are valid once the stream opened, so the geometry is
	// safe to derive here.
	buf := make([]byte, zarr.NewGeometry(&settings).FrameBytes())
	for {
		if err := ctx.Err(); err != nil {
			logger.Info("interrupted, closing stream")
			return nil
		}
		_, err := io.ReadFull(input, buf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			return fmt.Errorf("input truncated mid-frame")
		}
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if err := s.Append(buf); err != nil {
			return fmt.Errorf("append frame %d: %w", s.Frames(), err)
		}
	}

	logger.Info("ingestion finished", "frames", s.Frames())
	return nil
}
