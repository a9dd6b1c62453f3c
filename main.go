// Package main provides the entry point for the OpenVPN Management Inspector.
// The inspector parses captured output of the OpenVPN management interface:
// it classifies real-time notifications, decodes command replies and keeps
// an optional SQLite archive of past captures.
//
// Usage:
//
//	ovpn-mgmt [options]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yllada/ovpn-mgmt/cli"
	"github.com/yllada/ovpn-mgmt/common"
	"github.com/yllada/ovpn-mgmt/config"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

var (
	// General flags
	showVersion = flag.Bool("version", false, "Show version and exit")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	showHelp    = flag.Bool("help", false, "Show help message")
	configPath  = flag.String("config", "", "Path to an alternate config file")

	// Inspection flags
	classifyFile = flag.String("classify", "", "Classify every line of FILE")
	archiveRun   = flag.Bool("archive", false, "Record classified notifications in the archive")
	stateFile    = flag.String("state", "", "Parse a \"state\" reply from FILE")
	statsFile    = flag.String("stats", "", "Parse a \"load-stats\" reply from FILE")
	statusFile   = flag.String("status", "", "Parse a \"status\" dump from FILE")
	trackFile    = flag.String("track", "", "Track connection state through FILE")
	showHistory  = flag.Bool("history", false, "List archived sessions, or show the session given as argument")
)

func main() {
	flag.Parse()

	if *showHelp {
		cli.PrintHelp()
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("%s v%s\n", common.AppName, appVersion)
		if buildTime != "unknown" {
			fmt.Printf("  Build:  %s\n", buildTime)
			fmt.Printf("  Commit: %s\n", commitSHA)
		}
		os.Exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		// Fall back to defaults so a broken config never blocks inspection.
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		cfg = config.DefaultConfig()
	}

	logLevel := cfg.Level()
	if *verbose {
		logLevel = common.LevelDebug
	}
	if err := common.InitLogger(common.LogConfig{
		Level:       logLevel,
		EnableFile:  cfg.LogToFile,
		MaxFileSize: 5 * 1024 * 1024, // 5MB
		MaxBackups:  5,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}
	defer common.CloseLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	if !modeSelected() {
		cli.PrintHelp()
		os.Exit(2)
	}

	if err := runCLI(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			common.LogInfo("Operation cancelled")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		common.CloseLogger()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		return config.LoadFrom(*configPath)
	}
	return config.Load()
}

func modeSelected() bool {
	return *classifyFile != "" || *stateFile != "" || *statsFile != "" ||
		*statusFile != "" || *trackFile != "" || *showHistory
}

// runCLI dispatches the selected inspection mode.
func runCLI(ctx context.Context, cfg *config.Config) error {
	cliApp, err := cli.New(cfg, os.Stdout)
	if err != nil {
		return err
	}

	if *showHistory {
		return cliApp.History(ctx, flag.Arg(0))
	}

	var path string
	switch {
	case *classifyFile != "":
		path = *classifyFile
	case *stateFile != "":
		path = *stateFile
	case *statsFile != "":
		path = *statsFile
	case *statusFile != "":
		path = *statusFile
	case *trackFile != "":
		path = *trackFile
	}

	input, source, err := cli.OpenInput(path)
	if err != nil {
		return err
	}
	defer input.Close()
	common.LogDebug("Reading %s", source)

	switch {
	case *classifyFile != "":
		return cliApp.Classify(ctx, input, source, *archiveRun)
	case *stateFile != "":
		return cliApp.State(input)
	case *statsFile != "":
		return cliApp.Stats(input)
	case *statusFile != "":
		return cliApp.Status(input)
	default:
		return cliApp.Track(input)
	}
}

// setupSignalHandler cancels the context on SIGINT/SIGTERM.
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		common.LogInfo("Received signal %v, shutting down", sig)
		cancel()
	}()
}
