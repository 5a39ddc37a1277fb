package cmd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Swind/go-chronos/core"
	obs "github.com/Swind/go-chronos/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

// maxServeTimers bounds --timers; each demo timer doubles the interval of the
// previous one.
const maxServeTimers = 32

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run demo timers and expose Prometheus metrics",

		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "timers",
				Value: 3,
				Usage: "Number of dispatch timers",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Value: 500 * time.Millisecond,
				Usage: "Interval of the first timer; each next timer doubles it",
			},
			&cli.StringFlag{
				Name:  "addr",
				Value: ":2112",
				Usage: "Listen address of the /metrics endpoint",
			},
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "Stop after this long; 0 runs until interrupted",
			},
		},

		Action: ServeAction,
	}
}

func ServeAction(c *cli.Context) error {
	n := c.Int("timers")
	interval := c.Duration("interval")
	if n <= 0 || n > maxServeTimers {
		return cli.Exit(fmt.Sprintf("--timers must be between 1 and %d", maxServeTimers), 1)
	}
	if interval <= 0 {
		return cli.Exit("--interval must be > 0", 1)
	}
	if interval > time.Duration(math.MaxInt64>>(n-1)) {
		return cli.Exit(fmt.Sprintf("--interval %v doubled %d times overflows", interval, n-1), 1)
	}

	logger := loggerFrom(c)
	reg := prom.NewRegistry()

	exporter, err := obs.NewMetricsExporter("chronos", reg, obs.ExporterOptions{})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	poller, err := obs.NewSnapshotPoller(reg, time.Second)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	timers := core.NewRegistry()
	timers.SetLogger(logger)
	defer timers.CancelAll()

	for i := 0; i < n; i++ {
		cfg := timerConfig(c, fmt.Sprintf("demo-%d", i))
		cfg.Metrics = exporter
		every := interval << i
		t, err := core.NewDispatchTimerWithConfig(every, func(ctx context.Context, t core.Timer, count int64) {
			logger.Debug("fired", core.F("timer", t.Name()), core.F("count", count))
		}, cfg)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
		}
		if err := timers.Register(t); err != nil {
			t.Cancel()
			return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
		}
		t.Start(true)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if d := c.Duration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	poller.AddRegistry("default", timers)
	poller.Start(ctx)
	defer poller.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: c.String("addr"), Handler: mux}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()
	logger.Info("serving metrics", core.F("addr", server.Addr), core.F("timers", n))

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	for _, st := range timers.Stats() {
		fmt.Fprintf(c.App.Writer, "%s invocations=%d overruns=%d\n", st.Name, st.Invocations, st.Overruns)
	}
	return nil
}
