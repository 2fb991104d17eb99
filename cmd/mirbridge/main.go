package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/mirbridge/internal/config"
	"github.com/danmuck/mirbridge/internal/logging"
	"github.com/danmuck/mirbridge/internal/node"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
)

func main() {
	logging.ConfigureRuntime()

	if err := run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mirbridge: %v\n", err)
		os.Exit(1)
	}
}

// run serves until SIGINT/SIGTERM or ctx ends; a requested shutdown is not an
// error.
func run(ctx context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return newApp(runBridge).Run(ctx, args)
}

func runBridge(ctx context.Context, cfg config.Config) error {
	return node.NewService(cfg, log.Logger).Run(ctx)
}

type flags struct {
	ConfigPath  string
	Host        string
	Port        int
	TFPrefix    string
	MetricsAddr string
	LogLevel    string
	Relay       bool
}

// newApp wires the CLI around run so tests can observe the resolved config.
func newApp(run func(ctx context.Context, cfg config.Config) error) *cli.Command {
	f := &flags{}
	app := &cli.Command{
		Name:      "mirbridge",
		Usage:     "Bridge a MiR robot's rosbridge endpoint onto the local bus",
		UsageText: "mirbridge [global options] [command]",
		Version:   fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to a TOML config file",
				Sources:     cli.EnvVars(config.EnvConfig),
				Destination: &f.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "host",
				Usage:       "rosbridge host on the robot",
				Destination: &f.Host,
			},
			&cli.IntFlag{
				Name:        "port",
				Usage:       "rosbridge port",
				Value:       config.DefaultPort,
				Destination: &f.Port,
			},
			&cli.StringFlag{
				Name:        "tf-prefix",
				Usage:       "namespace applied to frame ids",
				Destination: &f.TFPrefix,
			},
			&cli.StringFlag{
				Name:        "metrics-addr",
				Usage:       "listen address for health and metrics (empty disables)",
				Destination: &f.MetricsAddr,
			},
			&cli.BoolFlag{
				Name:        "relay",
				Usage:       "republish odometry with tf and stamp velocity commands",
				Destination: &f.Relay,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Destination: &f.LogLevel,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() > 0 {
				return fmt.Errorf("unknown command %q. Run 'mirbridge --help' for usage", c.Args().First())
			}
			if c.IsSet("log-level") && !logging.SetLevel(f.LogLevel) {
				return fmt.Errorf("invalid log level %q", f.LogLevel)
			}
			cfg, err := resolveConfig(c, f)
			if err != nil {
				return err
			}
			return run(ctx, cfg)
		},
		Commands: []*cli.Command{newConfigCmd()},
	}
	return app
}

// resolveConfig layers defaults, file, environment and flags, in that order.
func resolveConfig(c *cli.Command, f *flags) (config.Config, error) {
	cfg := config.Default()
	if f.ConfigPath != "" {
		if err := config.LoadFile(f.ConfigPath, &cfg); err != nil {
			return config.Config{}, err
		}
	}
	if err := config.ApplyEnv(&cfg, nil); err != nil {
		return config.Config{}, err
	}
	if c.IsSet("host") {
		cfg.Host = f.Host
	}
	if c.IsSet("port") {
		cfg.Port = f.Port
	}
	if c.IsSet("tf-prefix") {
		cfg.TFPrefix = f.TFPrefix
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = f.MetricsAddr
	}
	if c.IsSet("relay") {
		cfg.Relay = f.Relay
	}
	return cfg, nil
}

func newConfigCmd() *cli.Command {
	var (
		out   string
		force bool
	)
	return &cli.Command{
		Name:  "config",
		Usage: "Config file helpers",
		Commands: []*cli.Command{
			{
				Name:  "template",
				Usage: "Print or write a commented config template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "out",
						Aliases:     []string{"o"},
						Usage:       "write the template to this path instead of stdout",
						Destination: &out,
					},
					&cli.BoolFlag{
						Name:        "force",
						Usage:       "overwrite an existing file",
						Destination: &force,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					if out == "" {
						_, err := fmt.Fprint(c.Root().Writer, config.Template())
						return err
					}
					if err := config.WriteTemplate(out, force); err != nil {
						return err
					}
					log.Info().Str("path", out).Msg("wrote config template")
					return nil
				},
			},
		},
	}
}
