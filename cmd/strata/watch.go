package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dshills/strata/internal/config"
	"github.com/dshills/strata/internal/config/layer"
	"github.com/dshills/strata/internal/config/metrics"
	"github.com/dshills/strata/internal/config/property"
	"github.com/dshills/strata/internal/config/remote"
)

type watchOptions struct {
	natsURL     string
	bucket      string
	kvPrefix    string
	metricsAddr string
	track       []string
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var wopts watchOptions
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print configuration changes until interrupted",
		Long: `Watch the search directories, and optionally a NATS key-value bucket,
and print every change event the root reports. Keys given with --track are
held as live properties and printed whenever their resolved value changes.
With --metrics-addr the change and property counters are served for
Prometheus at /metrics.

Example:
  strata watch --dir ./conf --app app --track db.host --nats-url nats://localhost:4222 --bucket config`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), opts, wopts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&wopts.natsURL, "nats-url", "", "NATS server URL for the remote layer")
	flags.StringVar(&wopts.bucket, "bucket", "strata", "Key-value bucket mirrored into the remote layer")
	flags.StringVar(&wopts.kvPrefix, "kv-prefix", "", "Only mirror bucket keys beneath this prefix")
	flags.StringVar(&wopts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.StringArrayVar(&wopts.track, "track", nil, "Print the resolved value of this key when it changes (repeatable)")
	return cmd
}

func runWatch(ctx context.Context, opts *globalOptions, wopts watchOptions) error {
	root, reg, m, err := openMeteredRoot(opts, wopts.metricsAddr != "")
	if err != nil {
		return err
	}
	defer root.Close()

	printer := &eventPrinter{w: opts.stdout}
	sub := root.AddListener(printer)
	defer sub.Unsubscribe()

	for _, key := range wopts.track {
		stop := printer.track(root.Properties(), key)
		defer stop()
	}

	if m != nil {
		msub := m.Attach(root)
		defer msub.Unsubscribe()

		srv := &http.Server{
			Addr:              wopts.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				opts.logger.Error("metrics server failed", "addr", wopts.metricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if wopts.natsURL != "" {
		kv, closeConn, err := remote.Connect(ctx, wopts.natsURL, wopts.bucket)
		if err != nil {
			return err
		}
		defer closeConn()

		src := remote.NewKVSource(kv, root.Remote(),
			remote.WithPrefix(wopts.kvPrefix),
			remote.WithLogger(opts.logger),
		)
		if err := src.Start(ctx); err != nil {
			return err
		}
		defer src.Stop()
	}

	if err := root.Watch(ctx); err != nil {
		return err
	}
	opts.logger.Info("watching", "dirs", opts.dirs, "layers", root.Names())

	<-ctx.Done()
	return nil
}

// openMeteredRoot opens the root and, when metered is set, a registry whose
// counters observe both its change events and its property reads.
func openMeteredRoot(opts *globalOptions, metered bool) (*layer.Root, *prometheus.Registry, *metrics.Metrics, error) {
	if !metered {
		root, err := opts.openRoot()
		return root, nil, nil, err
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg, "")
	if err != nil {
		return nil, nil, nil, err
	}
	root, err := opts.openRoot(layer.WithObserver(m))
	if err != nil {
		return nil, nil, nil, err
	}
	return root, reg, m, nil
}

// eventPrinter writes one line per change event.
type eventPrinter struct {
	config.NopListener
	mu sync.Mutex
	w  io.Writer
}

func (p *eventPrinter) HandleEvent(ev config.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := time.Now().Format(time.TimeOnly)
	if ev.Kind == config.EventError {
		fmt.Fprintf(p.w, "%s %-7s %s %v\n", ts, ev.Kind, ev.Name, ev.Err)
		return
	}
	fmt.Fprintf(p.w, "%s %-7s %s %s\n", ts, ev.Kind, ev.Name, ev.Keys)
}

// track prints key and its current value, then again on every change.
func (p *eventPrinter) track(f *property.Factory, key string) func() {
	h := property.Get(f, key, "")
	p.printValue(key, h.Get())
	return h.OnChange(func(v string) { p.printValue(key, v) })
}

func (p *eventPrinter) printValue(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %-7s %s = %s\n", time.Now().Format(time.TimeOnly), "value", key, value)
}
