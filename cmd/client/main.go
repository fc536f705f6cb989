package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"statusd/internal/client"
	"statusd/internal/shared/logger"
	"statusd/internal/shared/types"
)

func main() {
	os.Exit(run(os.Args))
}

func run(argv []string) int {
	name := filepath.Base(argv[0])

	args, err := client.ParseArgs(name, argv[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			client.Usage(os.Stdout, name)
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		client.Usage(os.Stderr, name)
		return 1
	}

	level := "warn"
	if args.Verbose {
		level = "debug"
	}
	if err := logger.Init(types.LogConf{Level: level}); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := client.New(args.Timeout).Send(ctx, args.Hostname, args.Port, args.Message)
	if err != nil {
		logger.Error().Err(err).
			Str("hostname", args.Hostname).
			Int("port", args.Port).
			Msg("Failed to send message")
		return 1
	}

	fmt.Println(uint16(code))
	return 0
}
