package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Swind/go-chronos/core"
	"github.com/urfave/cli/v2"
)

func VariableCommand() *cli.Command {
	return &cli.Command{
		Name:  "variable",
		Usage: "Run a timer whose delay grows after every invocation",

		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "base",
				Value: 100 * time.Millisecond,
				Usage: "Delay before the first fire",
			},
			&cli.DurationFlag{
				Name:  "step",
				Value: 100 * time.Millisecond,
				Usage: "Added to the delay after each invocation",
			},
			&cli.Int64Flag{
				Name:    "count",
				Aliases: []string{"n"},
				Value:   5,
				Usage:   "Stop after this many invocations",
			},
		},

		Action: VariableAction,
	}
}

func VariableAction(c *cli.Context) error {
	base := c.Duration("base")
	step := c.Duration("step")
	count := c.Int64("count")

	if base < 0 || step < 0 {
		return cli.Exit("--base and --step must not be negative", 1)
	}
	if count <= 0 {
		return cli.Exit("--count must be > 0", 1)
	}

	out := c.App.Writer
	done := make(chan struct{})
	started := time.Now()

	timer, err := core.NewVariableTimerWithConfig(
		func(ctx context.Context, t core.Timer, n int64) {
			fmt.Fprintf(out, "run %d at +%s\n", n, time.Since(started).Round(time.Millisecond))
			if n+1 >= count {
				t.Pause()
				close(done)
			}
		},
		func(_ *core.VariableTimer, n int64) time.Duration {
			return base + time.Duration(n)*step
		},
		timerConfig(c, "variable"),
	)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	defer timer.Cancel()

	if err := timer.Start(false); err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	select {
	case <-done:
	case <-c.Context.Done():
		timer.Pause()
	}
	waitExecuting(timer)

	fmt.Fprintf(out, "invocations=%d\n", timer.Count())
	return nil
}
