package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/doorman-proxy/doorman/pkg/apis/options"
	"github.com/doorman-proxy/doorman/pkg/http"
	"github.com/doorman-proxy/doorman/pkg/logger"
	"github.com/doorman-proxy/doorman/pkg/validation"
)

func main() {
	logger.SetFlags(logger.Lshortfile)
	flagSet := options.NewFlagSet()

	config := flagSet.String("config", "", "path to config file")
	showVersion := flagSet.Bool("version", false, "print version string")

	err := flagSet.Parse(os.Args[1:])
	if err != nil {
		logger.Printf("ERROR: Failed to parse flags: %v", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Printf("doorman %s (built with %s)\n", VERSION, runtime.Version())
		return
	}

	opts := options.NewOptions()
	err = options.Load(*config, flagSet, opts)
	if err != nil {
		logger.Errorf("ERROR: Failed to load config: %v", err)
		os.Exit(1)
	}

	err = validation.Validate(opts)
	if err != nil {
		logger.Printf("%s", err)
		os.Exit(1)
	}

	if err := validation.ConfigureLogger(opts.Logging); err != nil {
		logger.Errorf("ERROR: Failed to configure logging: %v", err)
		os.Exit(1)
	}

	doorman, err := NewDoorman(opts)
	if err != nil {
		logger.Errorf("ERROR: Failed to initialise Doorman: %v", err)
		os.Exit(1)
	}

	server, err := http.NewServer(http.Opts{
		Handler:     doorman,
		BindAddress: opts.Server.HTTPAddress,
	})
	if err != nil {
		logger.Errorf("ERROR: Failed to initialise server: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Printf("doorman %s listening on %s", VERSION, opts.Server.HTTPAddress)
	if err := server.Start(ctx); err != nil {
		logger.Errorf("ERROR: Server failed: %v", err)
		os.Exit(1)
	}
	logger.Print("doorman shut down")
}
