package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/OutOfBedlam/metric"
	"github.com/OutOfBedlam/sysmetrics/export"
	"github.com/OutOfBedlam/sysmetrics/instrument"
	"github.com/OutOfBedlam/sysmetrics/middleware/httpstat"
	"github.com/OutOfBedlam/sysmetrics/output/ndjson"
	"github.com/OutOfBedlam/sysmetrics/output/prom"
	"github.com/OutOfBedlam/sysmetrics/output/timeseries"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve prometheus metrics and a dashboard over HTTP",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "HTTP listen address, overrides http.listen of the config",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := LoadConfig(cmd.String("config"))
			if err != nil {
				return err
			}
			if listen := cmd.String("listen"); listen != "" {
				cfg.Http.Listen = listen
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

// serve runs until ctx is done.
func serve(ctx context.Context, cfg *Config) error {
	meter := instrument.NewMeter(name)
	if _, err := cfg.NewSampler(meter); err != nil {
		return err
	}

	collector := metric.NewCollector(cfg.CollectorOptions()...)
	if err := collector.AddInput(timeseries.NewInput(meter)); err != nil {
		return fmt.Errorf("error adding dashboard input: %w", err)
	}
	collector.Start()
	defer collector.Stop()

	if cfg.Export.DestUrl != "" {
		exporter := export.NewExporter(meter, cfg.Export.Interval)
		if err := exporter.AddOutput(&ndjson.Output{DestUrl: cfg.Export.DestUrl}, cfg.Export.Includes...); err != nil {
			return err
		}
		exporter.Start()
		defer exporter.Stop()
	}

	if cfg.Http.Listen == "" {
		<-ctx.Done()
		return nil
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(prom.NewCollector(meter, prom.WithNamespace(cfg.Http.Namespace))); err != nil {
		return err
	}

	mux := http.NewServeMux()
	routes := map[string]string{}
	if cfg.Http.MetricsPath != "" {
		mux.Handle(cfg.Http.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		routes[cfg.Http.MetricsPath] = "metrics"
	}
	if cfg.Http.DashboardPath != "" {
		mux.Handle(cfg.Http.DashboardPath, newDashboard(collector, meter))
		routes[cfg.Http.DashboardPath] = "dashboard"
	}

	svr := &http.Server{
		Addr:      cfg.Http.Listen,
		Handler:   httpstat.NewHandler(collector.C, mux, routes),
		ConnState: connState,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server",
			"metrics", cfg.Http.AdvAddr+cfg.Http.MetricsPath,
			"dashboard", cfg.Http.AdvAddr+cfg.Http.DashboardPath)
		if err := svr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("error starting HTTP server: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svr.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("HTTP server closed")
	return nil
}

// newDashboard adds one chart per instrument, plus the HTTP request counters.
func newDashboard(c *metric.Collector, meter *instrument.Meter) *metric.Dashboard {
	dash := metric.NewDashboard(c)
	dash.PageTitle = "sysmetrics"
	dash.SetTheme("light")
	dash.SetPanelHeight(300)
	dash.SetPanelMinWidth(400)
	dash.SetPanelMaxWidth(600)
	for _, d := range meter.Descriptors() {
		title := d.Name
		if d.Description != "" {
			title = d.Description
		}
		dash.AddChart(metric.Chart{
			Title:            title,
			MetricNameFilter: metric.MustCompile([]string{d.Name + ":*"}, ':'),
			Type:             metric.ChartTypeLine,
		})
	}
	dash.AddChart(metric.Chart{
		Title:            "HTTP Requests",
		MetricNameFilter: metric.MustCompile([]string{"http:*_requests"}, ':'),
		Type:             metric.ChartTypeBarStack,
	})
	return dash
}

func connState(conn net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		if c, ok := conn.(*net.TCPConn); ok {
			c.SetLinger(0)
		}
	}
}
