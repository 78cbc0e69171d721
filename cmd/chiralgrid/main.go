package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/h1w0xxx/chiralgrid/internal"
	"github.com/h1w0xxx/chiralgrid/internal/challenge"
	"github.com/h1w0xxx/chiralgrid/internal/chiral"
	"github.com/h1w0xxx/chiralgrid/internal/library"
	pkgconfig "github.com/h1w0xxx/chiralgrid/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func analyze(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("analyze: missing file argument")
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	level := slog.LevelInfo
	if cmd.Bool("trace") {
		level = slog.LevelDebug
	}
	logger := internal.NewLogger(os.Stderr, level)
	analyzer := chiral.NewAnalyzer(chiral.WithTracer(chiral.SlogTracer(logger)))

	enc := json.NewEncoder(os.Stdout)
	records := library.SplitRecords(string(data))
	failed := 0
	for i, rec := range records {
		report, err := challenge.Analyze(ctx, analyzer, rec, int(cmd.Int("workers")))
		if err != nil {
			failed++
			logger.Error("analyze record failed", slog.Int("record", i+1), slog.String("error", err.Error()))
			continue
		}
		if err := enc.Encode(report); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("analyze: %d of %d records failed", failed, len(records))
	}
	return nil
}

func index(_ context.Context, cmd *cli.Command) error {
	sdfPath := cmd.Args().First()
	if sdfPath == "" {
		return errors.New("index: missing SDF argument")
	}
	out := cmd.String("out")
	if out == "" {
		out = library.DefaultIndexPath(sdfPath)
	}

	f, err := os.Open(sdfPath)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	defer f.Close()

	offsets, err := library.BuildIndex(f)
	if err != nil {
		return fmt.Errorf("index %s: %w", sdfPath, err)
	}

	w, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := library.WriteIndex(w, offsets); err != nil {
		w.Close()
		return fmt.Errorf("index: write %s: %w", out, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("index: close %s: %w", out, err)
	}

	slog.Info("index written", slog.String("path", out), slog.Int("records", len(offsets)))
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "chiralgrid",
		Usage:  "Stereocenter puzzles drawn from an SDF library",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("CHIRALGRID_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server",
				Action: serve,
			},
			{
				Name:      "analyze",
				Usage:     "Print a JSON report per record of a MOL or SDF file",
				ArgsUsage: "<file|->",
				Action:    analyze,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Goroutines per molecule",
						Value: 4,
					},
					&cli.BoolFlag{
						Name:  "trace",
						Usage: "Log every stereocenter decision",
					},
				},
			},
			{
				Name:      "index",
				Usage:     "Write the byte-offset index of an SDF file",
				ArgsUsage: "<sdf>",
				Action:    index,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Index path (default: <sdf>.index)",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
