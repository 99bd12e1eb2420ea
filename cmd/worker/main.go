// Package main runs the Salesforce plugin Temporal worker.
package main

import (
	"context"
	"flag"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/nucleus/ucl-salesforce/internal/activities"
	"github.com/nucleus/ucl-salesforce/internal/audit"
	"github.com/nucleus/ucl-salesforce/internal/config"
	"github.com/nucleus/ucl-salesforce/internal/dataset"
	"github.com/nucleus/ucl-salesforce/internal/logging"
	"github.com/nucleus/ucl-salesforce/internal/plugin"
	_ "github.com/nucleus/ucl-salesforce/pkg/connector"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := logging.New("ucl-salesforce-worker", logging.Options{})
		boot.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New("ucl-salesforce-worker", cfg.Logging)
	ctx := logging.WithContext(context.Background(), logger)

	datasets, closeDatasets, err := dataset.Open(ctx, cfg.Dataset)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Dataset.Backend).Msg("open dataset backend")
	}
	defer closeDatasets()

	sink, closeAudit, err := audit.Open(ctx, cfg.Audit.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open audit sink")
	}
	defer closeAudit()

	logger.Info().
		Str("address", cfg.Temporal.Host).
		Str("namespace", cfg.Temporal.Namespace).
		Str("queue", cfg.Temporal.TaskQueue).
		Msg("starting worker")

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		logger.Error().Err(err).Msg("create temporal client")
		os.Exit(1)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	acts := activities.NewActivities(datasets,
		plugin.WithLogger(logger),
		plugin.WithConnection(cfg.Salesforce.Apply),
		plugin.WithAudit(sink),
	)
	w.RegisterActivity(acts.SoqlQuery)
	w.RegisterActivity(acts.SObjectUpsert)
	w.RegisterActivity(acts.RunPlugin)

	logger.Info().Strs("activities", []string{"SoqlQuery", "SObjectUpsert", "RunPlugin"}).Msg("registered activities")

	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error().Err(err).Msg("worker failed")
		os.Exit(1)
	}
}
