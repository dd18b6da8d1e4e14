// Command lfstress hammers the lock-free structures with concurrent
// producers and consumers and verifies that nothing is lost or duplicated.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseArgs(args, stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(stderr, "lfstress: %v\n", err)
		return 2
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "lfstress: %v\n", err)
		return 2
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).Level(level).With().Timestamp().Logger()

	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
		log.Debug().Msgf(format, v...)
	}))
	defer undo()
	if err != nil {
		log.Warn().Err(err).Msg("failed to set GOMAXPROCS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	names := structures
	if cfg.Structure != "all" {
		names = []string{cfg.Structure}
	}
	results := make([]Result, 0, len(names))
	for _, name := range names {
		results = append(results, runStructure(ctx, cfg, name, log))
	}

	rep := newReport(cfg, results)
	if cfg.JSON {
		err = rep.writeJSON(stdout)
	} else {
		err = rep.writeText(stdout)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to write report")
		return 1
	}
	if !rep.OK {
		log.Error().Msg("verification failed")
		return 1
	}
	return 0
}

// parseArgs builds the run configuration: defaults, then the -config file,
// then any flag given explicitly on the command line.
func parseArgs(args []string, stderr io.Writer) (Config, error) {
	fs := flag.NewFlagSet("lfstress", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var flags Config
	configPath := fs.String("config", "", "TOML config file")
	fs.StringVar(&flags.Structure, "structure", "", "structure to stress: all, ring, cell, option, array, pool, list, mpmc, spsc, pubsub")
	fs.IntVar(&flags.Producers, "producers", 0, "producer goroutines")
	fs.IntVar(&flags.Consumers, "consumers", 0, "consumer goroutines (subscribers for pubsub)")
	fs.IntVar(&flags.Items, "items", 0, "distinct items to move through the structure")
	fs.IntVar(&flags.Capacity, "capacity", 0, "structure capacity")
	fs.IntVar(&flags.HopLimit, "hop-limit", 0, "ring hop limit (0 = unbounded)")
	fs.DurationVar(&flags.Duration, "duration", 0, "deadline for the whole run")
	fs.BoolVar(&flags.JSON, "json", false, "print the report as JSON")
	fs.StringVar(&flags.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	var cfg Config
	if *configPath != "" {
		var err error
		if cfg, err = loadConfig(*configPath); err != nil {
			return Config{}, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "structure":
			cfg.Structure = flags.Structure
		case "producers":
			cfg.Producers = flags.Producers
		case "consumers":
			cfg.Consumers = flags.Consumers
		case "items":
			cfg.Items = flags.Items
		case "capacity":
			cfg.Capacity = flags.Capacity
		case "hop-limit":
			cfg.HopLimit = flags.HopLimit
		case "duration":
			cfg.Duration = flags.Duration
		case "json":
			cfg.JSON = flags.JSON
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		}
	})
	cfg.applyDefaults()
	return cfg, cfg.validate()
}
