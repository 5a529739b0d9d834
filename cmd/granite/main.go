// Package main implements the granite index server binary. It exposes the
// sparse primary index of a part-based table over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/granitedb/granite/internal/app"
	"github.com/granitedb/granite/internal/config"
	"github.com/granitedb/granite/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		tableName   string
		httpAddr    string
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for the catalog and local parts")
	flag.StringVar(&tableName, "table", "", "Source table whose index is served")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "granite - part index server\n\n")
		fmt.Fprintf(os.Stderr, "Usage: granite [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  granite --data-dir /data/granite --table events\n")
		fmt.Fprintf(os.Stderr, "  granite --config /etc/granite/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  GRANITE_DATA_DIR       Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  GRANITE_TABLE_NAME     Source table whose index is served\n")
		fmt.Fprintf(os.Stderr, "  GRANITE_HTTP_ADDR      HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  GRANITE_STORAGE_TYPE   Storage type (local, s3)\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("granite version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	log := logging.Setup()

	cfg, err := loadConfig(configFile, dataDir, tableName, httpAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create application")
	}

	if err := application.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
}

// loadConfig merges file, environment, and flag configuration, with flags
// taking priority.
func loadConfig(configFile, dataDir, tableName, httpAddr string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if tableName != "" {
		cfg.TableName = tableName
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}

	return cfg, nil
}
