package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"lemonstand/internal/catalog"
	"lemonstand/internal/config"
	"lemonstand/internal/storefront"
	"lemonstand/pkg/kit"
)

const (
	service       = "storefront"
	sweepInterval = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := kit.NewLogger(service, cfg.Logger.Level)
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	fetcher := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Ingredient,
		catalog.WithTimeout(cfg.Catalog.Timeout),
		catalog.WithRegistry(reg),
	)

	store := storefront.NewStore()
	metrics := storefront.NewMetrics(reg)

	s := &storefront.Server{
		Store:       store,
		Tokens:      storefront.NewTokenMaker(cfg.Session.Secret),
		Catalog:     fetcher,
		Log:         log,
		Metrics:     metrics,
		TTL:         cfg.Session.TTL,
		LoadTimeout: cfg.Catalog.Timeout,
	}

	h := storefront.NewHandler(s, &catalog.Server{Catalog: fetcher, Log: log}, storefront.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsToken:   cfg.Metrics.Token,
		RateLimit:      cfg.Limit.Requests,
		RateWindow:     cfg.Limit.Window,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go storefront.RunSweeper(ctx, store, cfg.Session.TTL, sweepInterval, metrics, log)

	if err := kit.RunHTTPServer(ctx, cfg.Server.Address(), h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
