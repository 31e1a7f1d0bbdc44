package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/robometric/robotdiff/internal"
	"github.com/robometric/robotdiff/internal/adapter"
	"github.com/robometric/robotdiff/internal/apperr"
	"github.com/robometric/robotdiff/internal/compare"
	"github.com/robometric/robotdiff/internal/diff"
	"github.com/robometric/robotdiff/internal/mcpserver"
	"github.com/robometric/robotdiff/internal/render"
	"github.com/robometric/robotdiff/internal/watch"
	pkgconfig "github.com/robometric/robotdiff/pkg/config"
)

// compareFlags are shared by the compare and watch commands.
var compareFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output format: status, git, or json",
		Value:   "status",
	},
	&cli.FloatFlag{
		Name:  "linear-tol",
		Usage: "Numeric tolerance for lengths, masses, and inertia",
		Value: 1e-6,
	},
	&cli.FloatFlag{
		Name:  "angular-tol",
		Usage: "Angular tolerance in radians for orientations",
		Value: 1e-6,
	},
	&cli.BoolFlag{
		Name:  "relative",
		Usage: "Interpret the linear tolerance relatively instead of absolutely",
	},
	&cli.BoolFlag{
		Name:  "include-visual",
		Usage: "Also compare visual geometry",
	},
	&cli.StringSliceFlag{
		Name:  "fields",
		Usage: "Restrict comparison to field categories (kinematics, inertial, collision, visual)",
	},
	&cli.StringSliceFlag{
		Name:  "exclude",
		Usage: "Drop field categories from the comparison",
	},
	&cli.StringFlag{
		Name:  "format-a",
		Usage: "Format override for the first model (urdf, sdf, mjcf, usd)",
	},
	&cli.StringFlag{
		Name:  "format-b",
		Usage: "Format override for the second model",
	},
	&cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	},
}

func compareOptions(cmd *cli.Command) (compare.Options, error) {
	opts := compare.DefaultOptions()
	opts.Diff.ToleranceLinear = cmd.Float("linear-tol")
	opts.Diff.ToleranceAngular = cmd.Float("angular-tol")
	opts.Diff.Relative = cmd.Bool("relative")
	opts.Diff.IncludeVisual = cmd.Bool("include-visual")

	for _, f := range cmd.StringSlice("fields") {
		cat, err := diff.ParseCategory(f)
		if err != nil {
			return opts, err
		}
		opts.Diff.Fields = append(opts.Diff.Fields, cat)
	}
	if excluded := cmd.StringSlice("exclude"); len(excluded) > 0 {
		drop := make(map[diff.Category]bool, len(excluded))
		for _, f := range excluded {
			cat, err := diff.ParseCategory(f)
			if err != nil {
				return opts, err
			}
			drop[cat] = true
		}
		enabled := opts.Diff.Enabled()
		opts.Diff.Fields = opts.Diff.Fields[:0]
		for _, cat := range diff.Categories() {
			if enabled[cat] && !drop[cat] {
				opts.Diff.Fields = append(opts.Diff.Fields, cat)
			}
		}
		if len(opts.Diff.Fields) == 0 {
			return opts, fmt.Errorf("--exclude removed every field category")
		}
	}
	if f := cmd.String("format-a"); f != "" {
		format, err := adapter.ParseFormat(f)
		if err != nil {
			return opts, err
		}
		opts.FormatA = format
	}
	if f := cmd.String("format-b"); f != "" {
		format, err := adapter.ParseFormat(f)
		if err != nil {
			return opts, err
		}
		opts.FormatB = format
	}
	return opts, nil
}

// runCompare executes a single comparison and prints the report. It
// returns apperr.ErrDiffFound when the models differ, so the caller can
// exit with the documented status code.
func runCompare(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("expected exactly two model files, got %d arguments", cmd.Args().Len())
	}
	opts, err := compareOptions(cmd)
	if err != nil {
		return err
	}
	outFormat, err := render.ParseFormat(cmd.String("output"))
	if err != nil {
		return err
	}

	res, err := compare.Files(ctx, cmd.Args().Get(0), cmd.Args().Get(1), opts)
	if err != nil {
		return err
	}

	out, err := render.Render(res, outFormat, !cmd.Bool("no-color"))
	if err != nil {
		return err
	}
	fmt.Println(out)

	if !res.Report.Equivalent() {
		return apperr.ErrDiffFound
	}
	return nil
}

// runWatch re-runs the comparison whenever either input file changes.
// Unchanged content (same checksums) is skipped.
func runWatch(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("expected exactly two model files, got %d arguments", cmd.Args().Len())
	}
	opts, err := compareOptions(cmd)
	if err != nil {
		return err
	}
	outFormat, err := render.ParseFormat(cmd.String("output"))
	if err != nil {
		return err
	}

	pathA, pathB := cmd.Args().Get(0), cmd.Args().Get(1)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var lastA, lastB string
	recompare := func() {
		res, err := compare.Files(ctx, pathA, pathB, opts)
		if err != nil {
			logger.Error("comparison failed", slog.String("error", err.Error()))
			return
		}
		if res.ChecksumA == lastA && res.ChecksumB == lastB {
			return
		}
		lastA, lastB = res.ChecksumA, res.ChecksumB

		out, err := render.Render(res, outFormat, !cmd.Bool("no-color"))
		if err != nil {
			logger.Error("render failed", slog.String("error", err.Error()))
			return
		}
		fmt.Printf("---  [%s]\n%s\n", time.Now().Format(time.TimeOnly), out)
	}

	recompare()
	return watch.Files(ctx, []string{pathA, pathB}, 0, logger, recompare)
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := pkgconfig.LoadOrDefault(cmd.String("config"), internal.NewDefaultConfig)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	srv, err := mcpserver.New(cmd.String("models"), diff.DefaultOptions())
	if err != nil {
		return err
	}
	return srv.ServeStdio()
}

func main() {
	cmd := &cli.Command{
		Name:      "robotdiff",
		Usage:     "Semantic comparison of robot models across URDF, SDF, MJCF, and USD",
		ArgsUsage: "MODEL_A MODEL_B",
		Action:    runCompare,
		Flags:     compareFlags,
		Commands: []*cli.Command{
			{
				Name:      "watch",
				Usage:     "Re-run the comparison whenever either model file changes",
				ArgsUsage: "MODEL_A MODEL_B",
				Action:    runWatch,
				Flags:     compareFlags,
			},
			{
				Name:   "serve",
				Usage:  "Run the comparison HTTP server",
				Action: runServe,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "config",
						Aliases:     []string{"c"},
						Usage:       "Path to config file",
						DefaultText: "config/config.yaml",
						Value:       "config/config.yaml",
						Sources:     cli.EnvVars("APP_CONFIG_FILE"),
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Run the MCP server on stdio",
				Action: runMCP,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "models",
						Usage:   "Model directory tool paths are resolved against",
						Value:   ".",
						Sources: cli.EnvVars("ROBOTDIFF_MODELS"),
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, apperr.ErrDiffFound) {
			os.Exit(1)
		}
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(2)
	}
}
