package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/mailguard/internal/adapters/frontend"
	"github.com/mikey/mailguard/internal/core"
	"github.com/mikey/mailguard/internal/di"
	"go.uber.org/zap"
)

func main() {
	flags, err := di.ParseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(frontend.ExitOK)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(frontend.ExitError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(ctx, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(frontend.ExitError)
	}

	code := frontend.ExitError
	err = container.Invoke(func(
		logger *zap.Logger,
		cli *frontend.CliFrontend,
		classifier core.Classifier,
		cacheRepo core.CacheRepository,
	) error {
		defer logger.Sync()

		sub, err := flags.Submission(os.Stdin)
		if err != nil {
			return err
		}
		code = cli.Run(ctx, sub)

		// Close any resources that need closing
		if closer, ok := classifier.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close classifier", zap.Error(err))
			}
		}
		if stopper, ok := cacheRepo.(interface{ Stop() }); ok {
			stopper.Stop()
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(frontend.ExitError)
	}

	os.Exit(code)
}
