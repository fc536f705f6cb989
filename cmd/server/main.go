package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"statusd/internal/app"
	"statusd/internal/shared/config"
	"statusd/internal/shared/logger"
	"statusd/internal/shared/types"
)

const shutdownTimeout = 10 * time.Second

// serverArgs 是解析后的命令行参数，-1 表示未在命令行指定。
type serverArgs struct {
	configPath string
	port       int
	workers    int
	queueSize  int
}

func newFlagSet(name string) (*pflag.FlagSet, *serverArgs) {
	args := &serverArgs{}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	fs.StringVarP(&args.configPath, "config", "c", filepath.Join("configs", "server.ini"), "path to the ini config file (optional)")
	fs.IntVarP(&args.workers, "workers", "w", -1, "number of worker goroutines (overrides config)")
	fs.IntVarP(&args.queueSize, "queue-size", "q", -1, "connection queue capacity, 0 for unbounded (overrides config)")
	return fs, args
}

func usage(w io.Writer, name string) {
	fs, _ := newFlagSet(name)
	fmt.Fprintf(w, "Usage:\n  %s [flags] <port>\n\nFlags:\n", name)
	fs.SetOutput(w)
	fs.PrintDefaults()
}

func parseArgs(name string, argv []string) (*serverArgs, error) {
	fs, args := newFlagSet(name)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	if err := fs.Parse(argv); err != nil {
		return nil, err
	}

	if fs.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one port argument, got %d", fs.NArg())
	}
	port, err := strconv.Atoi(fs.Arg(0))
	if err != nil || port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %q", fs.Arg(0))
	}
	args.port = port
	return args, nil
}

// apply 把命令行参数覆盖到配置上，优先级高于 ini 和环境变量。
func (a *serverArgs) apply(cfg *types.Config) error {
	cfg.ServerConf.Port = a.port
	if a.workers >= 0 {
		cfg.Workers = a.workers
	}
	if a.queueSize >= 0 {
		cfg.QueueSize = a.queueSize
	}
	return cfg.Validate()
}

func main() {
	name := filepath.Base(os.Args[0])

	args, err := parseArgs(name, os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			usage(os.Stdout, name)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		usage(os.Stderr, name)
		os.Exit(1)
	}

	// 1. 加载 .ini 配置
	cfg, err := config.Load(args.configPath)
	if err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", args.configPath, err)
		os.Exit(1)
	}
	if err := args.apply(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(1)
	}

	// 1.1 初始化日志系统
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// 2. 创建并运行服务器
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appServer := app.New(cfg, os.Stdout)
	port, err := appServer.Start(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Server failed to start")
	}
	fmt.Printf("Server listening on port %d...\n", port)

	runErr := appServer.Wait()
	if runErr != nil {
		logger.Error().Err(runErr).Msg("Server component failed")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := appServer.Stop(stopCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown did not complete cleanly")
		runErr = err
	}
	if runErr != nil {
		os.Exit(1)
	}
}
