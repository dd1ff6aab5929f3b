// Package main provides the CLI entry point for screenidx.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/halward/screenidx"
	"github.com/halward/screenidx/internal/config"
	"github.com/halward/screenidx/internal/errors"
	"github.com/halward/screenidx/internal/logging"
	"github.com/halward/screenidx/internal/reporter"
	"github.com/halward/screenidx/internal/store"
	"github.com/halward/screenidx/internal/watch"
)

const (
	appName    = "screenidx"
	appVersion = "0.3.0"

	exitConfigError   = 1
	exitPipelineError = 2
)

func main() {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Keyframe indexing and screen-activity analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(indexCommand(), queryCommand(), versionCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.IsKind(err, errors.KindConfig) {
			os.Exit(exitConfigError)
		}
		os.Exit(exitPipelineError)
	}
}

func indexCommand() *cobra.Command {
	var (
		inputDir   string
		outputDir  string
		configPath string
		fps        float64
		follow     bool
		noEncrypt  bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index screen-recorder segments into columnar files",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *config.Config
			if configPath != "" {
				loaded, err := config.LoadFile(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			} else {
				cfg = config.NewConfig(outputDir)
			}
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			if cmd.Flags().Changed("fps") {
				cfg.ExtractionFPS = fps
			}
			if noEncrypt {
				cfg.Storage.EncryptOutputs = false
			}
			cfg.Verbose = verbose
			if err := cfg.Validate(); err != nil {
				return err
			}
			if inputDir == "" {
				return errors.NewConfigError("--input is required")
			}

			level := logging.LevelInfo
			if verbose {
				level = logging.LevelDebug
			}
			logging.Init(level, os.Stderr)

			ix, err := screenidx.New(
				screenidx.WithConfig(cfg),
				screenidx.WithReporter(reporter.NewTerminalReporter()),
			)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var runErr error
			if follow {
				runErr = runFollow(ctx, ix, cfg, inputDir)
			} else {
				_, runErr = ix.IndexDirectory(ctx, inputDir)
			}

			// Finalize even on cancellation so the last batch survives.
			if err := ix.Finalize(); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input", "i", "", "Directory containing segment files")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "./output", "Output directory")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	cmd.Flags().Float64Var(&fps, "fps", config.DefaultExtractionFPS, "Keyframe extraction rate")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Watch the input directory for new segments")
	cmd.Flags().BoolVar(&noEncrypt, "no-encrypt", false, "Write plaintext columnar files")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	return cmd
}

// runFollow processes segments as the watcher hands them over.
func runFollow(ctx context.Context, ix *screenidx.Indexer, cfg *config.Config, inputDir string) error {
	w := watch.New(inputDir, cfg.VideoExtensions, nil)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for path := range w.Segments() {
		if _, err := ix.Index(ctx, []string{path}); err != nil {
			return err
		}
	}
	return <-done
}

func queryCommand() *cobra.Command {
	var (
		outputDir     string
		kind          string
		eventType     string
		target        string
		frameID       string
		text          string
		language      string
		minConfidence float32
		noEncrypt     bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query persisted frames, OCR results, or events",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []screenidx.Option{
				screenidx.WithOutputDir(outputDir),
			}
			if noEncrypt {
				opts = append(opts, screenidx.WithEncryptionDisabled())
			}
			ix, err := screenidx.New(opts...)
			if err != nil {
				return err
			}

			q := store.Query{
				EventType:    eventType,
				Target:       target,
				FrameID:      frameID,
				TextContains: text,
				Language:     language,
			}
			if cmd.Flags().Changed("min-confidence") {
				q.MinConfidence = &minConfidence
			}

			r := ix.Reader()
			switch strings.ToLower(kind) {
			case "events":
				events, err := r.QueryEvents(q)
				if err != nil {
					return err
				}
				for _, ev := range events {
					fmt.Printf("%s\t%s\t%s\t%.2f\t%q -> %q\n",
						ev.Timestamp.Format("15:04:05.000"), ev.Type, ev.Target, ev.Confidence, ev.ValueFrom, ev.ValueTo)
				}
				fmt.Fprintf(os.Stderr, "%d events\n", len(events))
			case "ocr":
				rows, err := r.QueryOCR(q)
				if err != nil {
					return err
				}
				for _, row := range rows {
					fmt.Printf("%s\t(%.0f,%.0f %gx%g)\t%.2f\t%s\n",
						row.FrameID, row.ROI.X, row.ROI.Y, row.ROI.Width, row.ROI.Height, row.Confidence, row.Text)
				}
				fmt.Fprintf(os.Stderr, "%d rows\n", len(rows))
			case "frames":
				rows, err := r.QueryFrames(q)
				if err != nil {
					return err
				}
				for _, row := range rows {
					fmt.Printf("%d\t%s\t%s\t%dx%d\t%s\n",
						row.TsNs, row.SegmentID, row.AppName, row.Width, row.Height, row.Path)
				}
				fmt.Fprintf(os.Stderr, "%d rows\n", len(rows))
			case "stats":
				stats, err := r.EventStatistics()
				if err != nil {
					return err
				}
				fmt.Printf("total: %d, mean confidence: %.2f\n", stats.Total, stats.MeanConfidence)
				for t, n := range stats.ByType {
					fmt.Printf("  %s: %d\n", t, n)
				}
			default:
				return errors.NewConfigError("--kind must be events, ocr, frames, or stats")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "./output", "Output directory to query")
	cmd.Flags().StringVarP(&kind, "kind", "k", "events", "What to query: events, ocr, frames, stats")
	cmd.Flags().StringVar(&eventType, "type", "", "Filter events by type")
	cmd.Flags().StringVar(&target, "target", "", "Filter events by target")
	cmd.Flags().StringVar(&frameID, "frame", "", "Filter by frame id")
	cmd.Flags().StringVar(&text, "text", "", "Substring match on text")
	cmd.Flags().StringVar(&language, "language", "", "Filter OCR rows by language")
	cmd.Flags().Float32Var(&minConfidence, "min-confidence", 0, "Minimum confidence")
	cmd.Flags().BoolVar(&noEncrypt, "no-encrypt", false, "Outputs were written unencrypted")
	return cmd
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, appVersion)
		},
	}
}
