package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mrchypark/vidtube/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (default ~/.config/vidtube/config.toml)")
	apiURL := flag.String("api", "", "API base URL, overrides the config file")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	email := flag.String("email", "", "sign in with this email before running the command")
	password := flag.String("password", "", "password for -email")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: vidtube [flags] [command] [args]\n\n")
		app.Usage(flag.CommandLine.Output())
		fmt.Fprintln(flag.CommandLine.Output(), "\nflags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := app.Run(ctx, app.Options{
		ConfigPath: *configPath,
		APIURL:     *apiURL,
		LogLevel:   *logLevel,
		Email:      *email,
		Password:   *password,
		Args:       flag.Args(),
	})
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrUsage):
		fmt.Fprintf(os.Stderr, "vidtube: %v\n", err)
		return 2
	default:
		fmt.Fprintf(os.Stderr, "vidtube: %v\n", err)
		return 1
	}
}
