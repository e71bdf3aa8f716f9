package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/vitkovskii/cirjson"
)

// runner carries what the commands share once the config is loaded.
type runner struct {
	cfg     Config
	factory *cirjson.Factory
	log     *logrus.Logger
}

func newApp() *cli.App {
	r := &runner{}
	return &cli.App{
		Name:  "cirjson",
		Usage: "validate, inspect, filter and convert CirJSON documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (yaml, toml or json)",
				EnvVars: []string{"CIRJSON_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "overrides log.level: trace, debug, info, warn or error",
			},
		},
		Before: r.setup,
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "check that files are well-formed CirJSON",
				ArgsUsage: "FILE...",
				Action:    r.validate,
			},
			{
				Name:      "tokens",
				Usage:     "print the token stream, one token per line",
				ArgsUsage: "FILE",
				Action:    r.tokens,
			},
			{
				Name:      "filter",
				Usage:     "print the parts of a document a filter keeps",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pointer", Usage: "JSON Pointer of the value to keep, e.g. /ob/value"},
					&cli.StringSliceFlag{Name: "name", Usage: "keep properties with this name at any depth"},
					&cli.UintSliceFlag{Name: "index", Usage: "keep array elements with this index"},
					&cli.BoolFlag{Name: "path", Usage: "keep the structures leading to the matches"},
					&cli.BoolFlag{Name: "all", Usage: "keep every match, not only the first one"},
				},
				Action: r.filter,
			},
			{
				Name:      "convert",
				Usage:     "convert plain JSON to CirJSON",
				ArgsUsage: "FILE",
				Action:    r.convert,
			},
			{
				Name:      "strip",
				Usage:     "convert CirJSON to plain JSON by dropping identifiers",
				ArgsUsage: "FILE",
				Action:    r.strip,
			},
			{
				Name:      "stats",
				Usage:     "print token counts, depth and sizes",
				ArgsUsage: "FILE...",
				Action:    r.stats,
			},
		},
	}
}

func (r *runner) setup(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}

	logger := logrus.New()
	logger.SetOutput(c.App.ErrWriter)
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return errors.Wrap(err, "log level")
	}
	logger.SetLevel(level)
	formatter, err := cfg.Log.formatter()
	if err != nil {
		return err
	}
	logger.SetFormatter(formatter)
	cirjson.SetLogger(logger)

	factory, err := cfg.Factory()
	if err != nil {
		return err
	}

	r.cfg = cfg
	r.factory = factory
	r.log = logger
	logger.WithFields(logrus.Fields{
		"pool":    cfg.Pool.Strategy,
		"ids":     cfg.IDs,
		"workers": cfg.Workers,
	}).Debug("configuration loaded")
	return nil
}

// openParser opens path and returns a parser that closes it.
func (r *runner) openParser(path string) (cirjson.Parser, *input, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, nil, err
	}
	p, err := r.factory.CreateParserFromReader(in)
	if err != nil {
		in.Close()
		return nil, nil, err
	}
	return p, in, nil
}

func oneArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit(c.Command.Name+": exactly one FILE expected, '-' for stdin", 2)
	}
	return c.Args().First(), nil
}
