// Package cmd holds the commands of the chronos CLI.
package cmd

import (
	"io"
	"os"

	"github.com/Swind/go-chronos/core"
	chronoslog "github.com/Swind/go-chronos/observability/zerolog"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

const loggerKey = "logger"

// NewApp builds the chronos CLI.
func NewApp() *cli.App {
	return &cli.App{
		Name:  "chronos",
		Usage: "Run non-overlapping timers and watch their run state",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				EnvVars: []string{"CHRONOS_LOG_LEVEL"},
				Usage:   "trace, debug, info, warn, error or disabled",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			TickCommand(),
			VariableCommand(),
			ServeCommand(),
		},
	}
}

func setupLogger(c *cli.Context) error {
	level, err := chronoslog.ParseLevel(c.String("log-level"))
	if err != nil {
		return cli.Exit("invalid --log-level: "+c.String("log-level"), 2)
	}

	var errWriter io.Writer = c.App.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: errWriter, NoColor: true}).
		Level(level).
		With().Timestamp().Logger()

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[loggerKey] = chronoslog.NewLogger(zl)
	return nil
}

// loggerFrom returns the logger set up by the app, or a no-op logger when
// the command runs outside NewApp.
func loggerFrom(c *cli.Context) core.Logger {
	if c.App != nil {
		if l, ok := c.App.Metadata[loggerKey].(core.Logger); ok {
			return l
		}
	}
	return core.NewNoOpLogger()
}

// timerConfig builds the config shared by every command's timers.
func timerConfig(c *cli.Context, name string) *core.TimerConfig {
	logger := loggerFrom(c)
	cfg := core.DefaultTimerConfig()
	cfg.Name = name
	cfg.Logger = logger
	cfg.PanicHandler = &core.DefaultPanicHandler{Logger: logger}
	return cfg
}
