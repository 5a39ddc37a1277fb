package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Swind/go-chronos/core"
	"github.com/urfave/cli/v2"
)

func TickCommand() *cli.Command {
	return &cli.Command{
		Name:  "tick",
		Usage: "Run a fixed-interval timer and report overruns",

		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Value:   time.Second,
				Usage:   "Time between fires",
			},
			&cli.Int64Flag{
				Name:    "count",
				Aliases: []string{"n"},
				Value:   5,
				Usage:   "Stop after this many invocations",
			},
			&cli.DurationFlag{
				Name:  "work",
				Usage: "Simulated callback duration; longer than --interval causes overruns",
			},
			&cli.BoolFlag{
				Name:  "now",
				Value: true,
				Usage: "Fire immediately instead of after one interval",
			},
		},

		Action: TickAction,
	}
}

func TickAction(c *cli.Context) error {
	interval := c.Duration("interval")
	count := c.Int64("count")
	work := c.Duration("work")

	if interval <= 0 {
		return cli.Exit("--interval must be > 0", 1)
	}
	if count <= 0 {
		return cli.Exit("--count must be > 0", 1)
	}

	out := c.App.Writer
	done := make(chan struct{})

	timer, err := core.NewDispatchTimerWithConfig(interval, func(ctx context.Context, t core.Timer, n int64) {
		fmt.Fprintf(out, "tick %d\n", n)
		if work > 0 {
			time.Sleep(work)
		}
		if n+1 >= count {
			t.Pause()
			close(done)
		}
	}, timerConfig(c, "tick"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	defer timer.Cancel()

	if err := timer.Start(c.Bool("now")); err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	select {
	case <-done:
	case <-c.Context.Done():
		timer.Pause()
	}
	waitExecuting(timer)

	st := timer.Stats()
	fmt.Fprintf(out, "invocations=%d overruns=%d\n", st.Invocations, st.Overruns)
	return nil
}

// waitExecuting blocks until the in-flight invocation, if any, has closed its
// session so the reported count is final.
func waitExecuting(t core.Timer) {
	for t.IsExecuting() {
		time.Sleep(time.Millisecond)
	}
}
