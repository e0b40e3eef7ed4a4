package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/OutOfBedlam/sysmetrics/export"
	_ "github.com/OutOfBedlam/sysmetrics/input/system"
	"github.com/OutOfBedlam/sysmetrics/instrument"
	"github.com/OutOfBedlam/sysmetrics/output/ndjson"
	"github.com/OutOfBedlam/sysmetrics/output/otel"
	"github.com/OutOfBedlam/sysmetrics/output/snapshot"
	"github.com/urfave/cli/v3"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const name = "sysmetrics"

func main() {
	if err := newRootCmd(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "config file path (.toml, .yaml or .yml); the built-in default config when omitted",
	}
}

func newRootCmd(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:   name,
		Usage:  "Host system metrics: load average, CPU, memory and disk",
		Writer: w,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "log level: debug, info, warn or error",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			var level slog.Level
			if err := level.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
				return ctx, fmt.Errorf("invalid --log-level: %w", err)
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return ctx, nil
		},
		Commands: []*cli.Command{
			observeCmd(),
			serveCmd(),
			genConfigCmd(),
		},
	}
}

func observeCmd() *cli.Command {
	return &cli.Command{
		Name:  "observe",
		Usage: "Pull every configured metric once and print the result",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   string(snapshot.FormatJSON),
				Usage:   "output format: json, yaml, ndjson or otlp",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := LoadConfig(cmd.String("config"))
			if err != nil {
				return err
			}
			meter := instrument.NewMeter(name)
			if _, err := cfg.NewSampler(meter); err != nil {
				return err
			}
			return observe(ctx, meter, strings.ToLower(cmd.String("format")), cmd.Root().Writer)
		},
	}
}

func observe(ctx context.Context, meter *instrument.Meter, format string, w io.Writer) error {
	switch format {
	case "ndjson":
		return pull(ctx, meter, &ndjson.Output{Writer: w})
	case "otlp":
		return observeOTLP(ctx, meter, w)
	default:
		f, err := snapshot.ParseFormat(format)
		if err != nil {
			return err
		}
		return pull(ctx, meter, snapshot.NewWriter(f, w, meter.Name()))
	}
}

func pull(ctx context.Context, meter *instrument.Meter, out export.Output) error {
	samples, err := meter.Gather(ctx)
	if err != nil {
		slog.Warn("observe", "error", err)
	}
	return out.Export(ctx, samples)
}

// observeOTLP runs one collection through an OpenTelemetry MeterProvider and
// prints the resulting ResourceMetrics.
func observeOTLP(ctx context.Context, meter *instrument.Meter, w io.Writer) error {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(ctx)

	bridge, err := otel.NewBridge(meter, mp.Meter(name))
	if err != nil {
		return err
	}
	defer bridge.Unregister()

	rm := &metricdata.ResourceMetrics{}
	if err := reader.Collect(ctx, rm); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rm)
}

func genConfigCmd() *cli.Command {
	return &cli.Command{
		Name:      "gen-config",
		Usage:     "Write the default config to a file, or to stdout with \"-\"",
		ArgsUsage: "[file|-]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			filename := cmd.Args().First()
			if filename == "" || filename == "-" {
				return genConfig(cmd.Root().Writer)
			}
			fd, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
			if err != nil {
				return fmt.Errorf("error open %s: %w", filename, err)
			}
			defer fd.Close()
			return genConfig(fd)
		},
	}
}
