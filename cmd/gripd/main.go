package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/kabirarshafidz/galactic-grip/internal/api"
	"github.com/kabirarshafidz/galactic-grip/internal/auth"
	"github.com/kabirarshafidz/galactic-grip/internal/catalog"
	"github.com/kabirarshafidz/galactic-grip/internal/engine"
	"github.com/kabirarshafidz/galactic-grip/internal/metrics"
	"github.com/kabirarshafidz/galactic-grip/internal/scenario"
	"github.com/kabirarshafidz/galactic-grip/internal/sim"
	"github.com/kabirarshafidz/galactic-grip/internal/stream"
	"github.com/kabirarshafidz/galactic-grip/internal/timeline"
)

func main() {
	levelStr := os.Getenv("GRIP_LOG_LEVEL")
	level, knownLevel := parseLogLevel(levelStr)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	if !knownLevel {
		logger.Warn("unrecognized GRIP_LOG_LEVEL value, using info", "value", levelStr)
	}

	addr := os.Getenv("GRIP_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	scn, err := loadScenario(logger)
	if err != nil {
		logger.Error("invalid scenario", "error", err)
		os.Exit(1)
	}

	catalogCfg := loadCatalogConfig(logger, scn)
	store := catalog.NewStore()
	catCache, err := catalog.NewCache(catalogCfg.CacheDir)
	if err != nil {
		logger.Warn("catalog cache unavailable", "dir", catalogCfg.CacheDir, "error", err)
		catCache = nil
	}

	ds := resolveCatalog(context.Background(), logger, catalogCfg, catCache, scn)
	store.Set(ds)
	metrics.SetCatalogSatellites(len(ds.Satellites))
	logger.Info("catalog loaded",
		"source", ds.Source,
		"satellites", len(ds.Satellites),
		"fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
	)

	eng := engine.New(logger, engine.Config{
		GroundRadiusKm:          scn.Simulation.GroundRadiusKm,
		InCoverageFromIntervals: scn.Simulation.InCoverageFromIntervals,
	})

	registry := sim.NewRegistry()
	if err := registry.Seed(scn.Beacons); err != nil {
		logger.Error("invalid beacon set in scenario", "error", err)
		os.Exit(1)
	}
	metrics.SetActiveBeacons(registry.Len())

	clock := sim.NewClock(scn.Simulation.Rate)
	runner := sim.NewRunner(logger, eng, store, registry, clock, sim.RunnerConfig{
		TickInterval: scn.Simulation.TickInterval,
	})

	tl := timeline.NewCache(logger, timeline.Config{
		StepSeconds: scn.Timeline.StepSeconds,
		Workers:     scn.Timeline.Workers,
	}, eng, store, registry)

	streamCfg := loadStreamConfig(logger, scn)
	streamHandler := stream.NewHandler(runner, store, streamCfg, logger)

	refresh := catalogRefresher(logger, catalogCfg, catCache, scn)

	srv := api.NewServer(addr, api.Deps{
		Logger:         logger,
		Auth:           authCfg,
		Store:          store,
		Registry:       registry,
		Runner:         runner,
		Engine:         eng,
		Timeline:       tl,
		Stream:         streamHandler,
		RefreshCatalog: refresh,
	})

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Warm the timeline before serving so seek previews answer immediately,
	// then keep it fresh in the background.
	tl.Refresh(ctx)
	go tl.Start(ctx)

	if scn.Simulation.Autostart {
		runner.Resume()
	}
	go runner.Start(ctx)

	// Background goroutine to keep the catalog gauges current.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age := store.AgeSeconds(); age >= 0 {
					metrics.SetCatalogAge(age)
				}
				metrics.SetCatalogSatellites(store.Count())
			case <-ctx.Done():
				return
			}
		}
	}()

	if catalogCfg.RefreshInterval > 0 {
		go func() {
			ticker := time.NewTicker(catalogCfg.RefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					store.Lock()
					ds, err := refresh(ctx)
					if err != nil {
						store.Unlock()
						logger.Warn("periodic catalog refresh failed", "error", err)
						continue
					}
					store.Set(ds)
					store.Unlock()
					metrics.SetCatalogSatellites(len(ds.Satellites))
					logger.Info("catalog refreshed",
						"source", ds.Source,
						"satellites", len(ds.Satellites),
					)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"auth_enabled", authCfg.Enabled,
			"autostart", scn.Simulation.Autostart,
			"rate", scn.Simulation.Rate,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// parseLogLevel maps GRIP_LOG_LEVEL onto a slog level. The second return
// is false for values that had to be replaced with the default.
func parseLogLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, true
	case "debug":
		return slog.LevelDebug, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("GRIP_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("GRIP_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("GRIP_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("GRIP_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

// loadScenario picks the run definition: the file named by
// GRIP_SCENARIO_FILE, or the compiled-in default.
func loadScenario(logger *slog.Logger) (*scenario.Scenario, error) {
	path := os.Getenv("GRIP_SCENARIO_FILE")
	if path == "" {
		logger.Info("using built-in scenario")
		return scenario.Default()
	}
	logger.Info("loading scenario", "path", path)
	return scenario.Load(path)
}

type catalogConfig struct {
	Source          string
	File            string
	URL             string
	CacheDir        string
	RefreshInterval time.Duration
}

func loadCatalogConfig(logger *slog.Logger, scn *scenario.Scenario) catalogConfig {
	cfg := catalogConfig{
		Source:   scn.Catalog.Source,
		File:     scn.Catalog.File,
		CacheDir: "/tmp/grip/catalog",
	}

	if v := os.Getenv("GRIP_CATALOG_SOURCE"); v != "" {
		switch v {
		case "walker", "fetch", "cache", "file":
			cfg.Source = v
		default:
			logger.Warn("invalid GRIP_CATALOG_SOURCE value, using scenario source", "value", v)
		}
	}
	if v := os.Getenv("GRIP_CATALOG_FILE"); v != "" {
		cfg.File = v
	}
	if v := os.Getenv("GRIP_CATALOG_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("GRIP_CATALOG_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("GRIP_CATALOG_REFRESH_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid GRIP_CATALOG_REFRESH_INTERVAL value, refresh disabled", "value", v)
		} else {
			cfg.RefreshInterval = time.Duration(n) * time.Second
		}
	}

	if cfg.Source == "file" && cfg.File == "" {
		logger.Warn("file catalog source without a file, falling back to walker")
		cfg.Source = "walker"
	}

	logger.Info("catalog config",
		"source", cfg.Source,
		"file", cfg.File,
		"cache_dir", cfg.CacheDir,
		"refresh_interval_seconds", cfg.RefreshInterval.Seconds(),
	)

	return cfg
}

// catalogRefresher builds the re-resolution used by the refresh endpoint
// and the periodic refresher. Unlike startup resolution it does not fall
// across sources: a failed refresh keeps the current catalog.
func catalogRefresher(logger *slog.Logger, cfg catalogConfig, cache *catalog.Cache, scn *scenario.Scenario) func(context.Context) (*catalog.Dataset, error) {
	return func(ctx context.Context) (*catalog.Dataset, error) {
		switch cfg.Source {
		case "file":
			if ds := loadCatalogFile(logger, cfg.File); ds != nil {
				return ds, nil
			}
			return nil, fmt.Errorf("reloading catalog file %s failed", cfg.File)
		case "fetch":
			if ds := fetchCatalog(ctx, logger, cfg.URL, cache); ds != nil {
				return ds, nil
			}
			return nil, errors.New("catalog fetch failed")
		case "cache":
			if ds := loadCatalogCache(logger, cache); ds != nil {
				return ds, nil
			}
			return nil, errors.New("no cached catalog available")
		default:
			return synthesizeCatalog(logger, scn), nil
		}
	}
}

// resolveCatalog produces the startup dataset for the configured source.
// Every failure falls through to the next option; the synthesized Walker
// shell at the end cannot fail, so the server always comes up with a
// catalog.
func resolveCatalog(ctx context.Context, logger *slog.Logger, cfg catalogConfig, cache *catalog.Cache, scn *scenario.Scenario) *catalog.Dataset {
	switch cfg.Source {
	case "file":
		if ds := loadCatalogFile(logger, cfg.File); ds != nil {
			return ds
		}
	case "fetch":
		if ds := fetchCatalog(ctx, logger, cfg.URL, cache); ds != nil {
			return ds
		}
		if ds := loadCatalogCache(logger, cache); ds != nil {
			return ds
		}
	case "cache":
		if ds := loadCatalogCache(logger, cache); ds != nil {
			return ds
		}
	}
	return synthesizeCatalog(logger, scn)
}

func loadCatalogFile(logger *slog.Logger, path string) *catalog.Dataset {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("could not read catalog file", "path", path, "error", err)
		return nil
	}
	sats, err := catalog.ParseTLE(bytes.NewReader(data), logger)
	if err != nil || len(sats) == 0 {
		logger.Warn("catalog file yielded no usable satellites", "path", path, "error", err)
		return nil
	}
	return catalog.NewDataset("file", time.Now().UTC(), sats)
}

func fetchCatalog(ctx context.Context, logger *slog.Logger, url string, cache *catalog.Cache) *catalog.Dataset {
	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	fetcher := catalog.NewFetcher(url)
	data, err := fetcher.Fetch(fetchCtx)
	if err != nil {
		logger.Warn("catalog fetch failed", "url", fetcher.SourceURL(), "error", err)
		return nil
	}
	sats, err := catalog.ParseTLE(bytes.NewReader(data), logger)
	if err != nil || len(sats) == 0 {
		logger.Warn("fetched catalog yielded no usable satellites", "error", err)
		return nil
	}

	fetchedAt := time.Now().UTC()
	if cache != nil {
		if err := cache.Write(data, fetchedAt); err != nil {
			logger.Warn("could not cache fetched catalog", "error", err)
		}
	}
	logger.Info("catalog fetched", "url", fetcher.SourceURL(), "satellites", len(sats))
	return catalog.NewDataset("fetch", fetchedAt, sats)
}

func loadCatalogCache(logger *slog.Logger, cache *catalog.Cache) *catalog.Dataset {
	if cache == nil {
		return nil
	}
	data, ts, err := cache.LoadLatest()
	if err != nil {
		logger.Info("no cached catalog found", "error", err)
		return nil
	}
	sats, err := catalog.ParseTLE(bytes.NewReader(data), logger)
	if err != nil || len(sats) == 0 {
		logger.Warn("cached catalog yielded no usable satellites", "error", err)
		return nil
	}
	logger.Info("catalog loaded from cache", "satellites", len(sats), "cached_at", ts.Format(time.RFC3339))
	return catalog.NewDataset("cache", ts, sats)
}

func synthesizeCatalog(logger *slog.Logger, scn *scenario.Scenario) *catalog.Dataset {
	cfg := catalog.WalkerConfig{
		Planes:         scn.Walker.Planes,
		PerPlane:       scn.Walker.PerPlane,
		Phasing:        scn.Walker.Phasing,
		AltitudeKm:     scn.Walker.AltitudeKm,
		InclinationDeg: scn.Walker.InclinationDeg,
		Epoch:          time.Now().UTC(),
	}
	ds, err := catalog.Synthesize(cfg)
	if err != nil {
		logger.Warn("scenario walker shape invalid, using default shell", "error", err)
		ds, err = catalog.Synthesize(catalog.DefaultWalker(cfg.Epoch))
		if err != nil {
			// The default shape is a constant; this cannot happen.
			logger.Error("default walker synthesis failed", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("catalog synthesized",
		"planes", cfg.Planes,
		"per_plane", cfg.PerPlane,
		"satellites", len(ds.Satellites),
	)
	return ds
}

func loadStreamConfig(logger *slog.Logger, scn *scenario.Scenario) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		MaxConcurrentTotal: 1000,
		KeepaliveInterval:  30 * time.Second,
		PollInterval:       scn.Simulation.TickInterval,
	}

	if v := os.Getenv("GRIP_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid GRIP_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("GRIP_STREAM_MAX_TOTAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid GRIP_STREAM_MAX_TOTAL value, using default", "value", v, "default", 1000)
		} else {
			cfg.MaxConcurrentTotal = n
		}
	}

	if v := os.Getenv("GRIP_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid GRIP_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("GRIP_STREAM_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid GRIP_STREAM_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_concurrent_total", cfg.MaxConcurrentTotal,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}
