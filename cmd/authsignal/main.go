package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"authsignal/config"
	"authsignal/internal/enrich"
	inputredis "authsignal/internal/input/redis"
	"authsignal/internal/logger"
	"authsignal/internal/metrics"
	"authsignal/internal/notify"
	"authsignal/internal/output/signaljson"
	"authsignal/internal/overrides"
	"authsignal/internal/pipeline"
	"authsignal/internal/query"
	"authsignal/internal/rules"
	"authsignal/internal/store"
	"authsignal/internal/summary"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("authsignal.yml"); err == nil {
		return "authsignal.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "authsignal.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "authsignal.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.AuthSignal.TenantID == "" {
		cfg.AuthSignal.TenantID = "default"
	}

	if cfg.AuthSignal.Input.Redis.Addr == "" {
		cfg.AuthSignal.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.AuthSignal.Input.Redis.Key == "" {
		cfg.AuthSignal.Input.Redis.Key = "authsignal:lines"
	}
	if cfg.AuthSignal.Input.Redis.BlockTimeout == 0 {
		cfg.AuthSignal.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if cfg.AuthSignal.Pipeline.Workers <= 0 {
		cfg.AuthSignal.Pipeline.Workers = 4
	}
	if cfg.AuthSignal.Pipeline.BatchSize <= 0 {
		cfg.AuthSignal.Pipeline.BatchSize = 100
	}
	if cfg.AuthSignal.Pipeline.FlushInterval <= 0 {
		cfg.AuthSignal.Pipeline.FlushInterval = 2 * time.Second
	}

	if cfg.AuthSignal.Output.Mode == "" {
		cfg.AuthSignal.Output.Mode = "stdout"
	}
	if cfg.AuthSignal.Output.File.Path == "" {
		cfg.AuthSignal.Output.File.Path = "output/signals.jsonl"
	}

	if cfg.AuthSignal.Stores.ClickHouse.Database == "" {
		cfg.AuthSignal.Stores.ClickHouse.Database = "authsignal"
	}
	if cfg.AuthSignal.Stores.ClickHouse.Table == "" {
		cfg.AuthSignal.Stores.ClickHouse.Table = "auth_signals"
	}

	if cfg.AuthSignal.Metrics.Addr == "" {
		cfg.AuthSignal.Metrics.Addr = "127.0.0.1:9310"
	}

	if cfg.AuthSignal.Logging.Level == "" {
		cfg.AuthSignal.Logging.Level = "info"
	}
}

func loadConfig(configArg string) *config.Config {
	configPath := findConfigFile(configArg)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("Failed to load config: %v", err)
		}
		// No config file is fine: defaults cover local batch runs.
		cfg = &config.Config{}
	}
	applyDefaults(cfg)

	if err := logger.Init(cfg.AuthSignal.Logging.Enabled, cfg.AuthSignal.Logging.Level, cfg.AuthSignal.Logging.File, cfg.AuthSignal.Logging.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return cfg
}

func buildEngine(cfg *config.Config) rules.Engine {
	if !cfg.AuthSignal.Rules.Enabled {
		return &rules.NoopEngine{}
	}
	if strings.TrimSpace(cfg.AuthSignal.Rules.Path) == "" {
		logger.Warnf("Rules enabled but rules.path is empty; detection tagging disabled")
		return &rules.NoopEngine{}
	}
	engine, stats, err := rules.NewSigmaEngine(cfg.AuthSignal.Rules.Path)
	if err != nil {
		logger.Errorf("Failed to load Sigma rules from %s: %v", cfg.AuthSignal.Rules.Path, err)
		log.Fatalf("Failed to load Sigma rules: %v", err)
	}
	logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_datasource=%d skipped_invalid=%d files=%d",
		stats.Loaded,
		stats.SkippedComplex,
		stats.SkippedDatasource,
		stats.SkippedInvalid,
		stats.TotalFiles,
	)
	if stats.Loaded == 0 {
		logger.Warnf("No compatible Sigma rules loaded; detection tagging is effectively disabled")
	}
	return engine
}

// buildStores instantiates every enabled persistence collaborator. A
// store that fails to connect is skipped with a warning: persistence is
// best-effort and must not block signal emission.
func buildStores(cfg *config.Config) []store.Store {
	var out []store.Store

	if cfg.AuthSignal.Stores.ClickHouse.Enabled {
		ch, err := store.NewClickHouseStore(store.ClickHouseConfig{
			URL:      cfg.AuthSignal.Stores.ClickHouse.URL,
			Database: cfg.AuthSignal.Stores.ClickHouse.Database,
			Table:    cfg.AuthSignal.Stores.ClickHouse.Table,
			Username: cfg.AuthSignal.Stores.ClickHouse.Username,
			Password: cfg.AuthSignal.Stores.ClickHouse.Password,
			Timeout:  cfg.AuthSignal.Stores.ClickHouse.Timeout,
			Headers:  cfg.AuthSignal.Stores.ClickHouse.Headers,
		})
		if err != nil {
			logger.Warnf("ClickHouse store unavailable: %v", err)
		} else {
			out = append(out, ch)
			logger.Infof("ClickHouse store: %s/%s.%s", cfg.AuthSignal.Stores.ClickHouse.URL, cfg.AuthSignal.Stores.ClickHouse.Database, cfg.AuthSignal.Stores.ClickHouse.Table)
		}
	}

	if cfg.AuthSignal.Stores.Forensic.Enabled {
		fs, err := store.NewForensicStore(store.ForensicConfig{
			URL:     cfg.AuthSignal.Stores.Forensic.URL,
			Timeout: cfg.AuthSignal.Stores.Forensic.Timeout,
			Headers: cfg.AuthSignal.Stores.Forensic.Headers,
		})
		if err != nil {
			logger.Warnf("Forensic store unavailable: %v", err)
		} else {
			out = append(out, fs)
			logger.Infof("Forensic store: %s", cfg.AuthSignal.Stores.Forensic.URL)
		}
	}

	if cfg.AuthSignal.Stores.RedisIndex.Enabled {
		ri, err := store.NewRedisIndex(store.RedisConfig{
			Addr:      cfg.AuthSignal.Stores.RedisIndex.Addr,
			Password:  cfg.AuthSignal.Stores.RedisIndex.Password,
			DB:        cfg.AuthSignal.Stores.RedisIndex.DB,
			KeyPrefix: cfg.AuthSignal.Stores.RedisIndex.KeyPrefix,
			TTL:       cfg.AuthSignal.Stores.RedisIndex.TTL,
		})
		if err != nil {
			logger.Warnf("Redis index unavailable: %v", err)
		} else {
			out = append(out, ri)
			logger.Infof("Redis index: %s", cfg.AuthSignal.Stores.RedisIndex.Addr)
		}
	}

	return out
}

func buildCollaborators(cfg *config.Config) pipeline.Collaborators {
	collab := pipeline.Collaborators{
		TenantID: cfg.AuthSignal.TenantID,
		Enricher: enrich.Noop{},
		Stores:   buildStores(cfg),
		Notifier: notify.New(notify.Config{
			WebhookURL: cfg.AuthSignal.Notify.WebhookURL,
			Timeout:    cfg.AuthSignal.Notify.Timeout,
		}),
	}
	if cfg.AuthSignal.Enrichment.Enabled {
		e, err := enrich.NewHTTPEnricher(enrich.Config{
			URL:     cfg.AuthSignal.Enrichment.URL,
			Timeout: cfg.AuthSignal.Enrichment.Timeout,
			Headers: cfg.AuthSignal.Enrichment.Headers,
		})
		if err != nil {
			logger.Warnf("Enrichment unavailable: %v", err)
		} else {
			collab.Enricher = e
			logger.Infof("Enrichment endpoint: %s", cfg.AuthSignal.Enrichment.URL)
		}
	}
	return collab
}

func buildWriter(cfg *config.Config) (*signaljson.Writer, error) {
	switch cfg.AuthSignal.Output.Mode {
	case "stdout":
		return signaljson.NewStreamWriter(os.Stdout), nil
	case "file":
		return signaljson.NewWriter(cfg.AuthSignal.Output.File.Path)
	}
	return nil, fmt.Errorf("unknown output mode: %s", cfg.AuthSignal.Output.Mode)
}

func runBatch(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := loadConfig(*configArg)
	sources := fs.Args()
	if len(sources) == 0 {
		sources = cfg.AuthSignal.Input.Files
	}
	if len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "usage: authsignal run [-config path] <auth.log> [...]")
		return 2
	}

	if cfg.AuthSignal.Metrics.Enabled {
		metrics.Serve(cfg.AuthSignal.Metrics.Addr)
	}

	writer, err := buildWriter(cfg)
	if err != nil {
		logger.Errorf("%v", err)
		return 1
	}
	defer writer.Close()

	collab := buildCollaborators(cfg)
	batch := pipeline.NewBatch(buildEngine(cfg), writer, collab, cfg.AuthSignal.Pipeline.Workers)
	summaries, signals, runErr := batch.RunFiles(context.Background(), sources)
	if runErr != nil {
		logger.Errorf("Batch run finished with errors: %v", runErr)
	}

	// A multi-source run gets the fleet rollup appended, so a single
	// invocation over a directory of logs yields the full weekly report.
	if len(summaries) > 1 {
		ov := overrides.Load(cfg.AuthSignal.Overrides.Path)
		fleet := summary.Aggregate(summaries, signals, ov, time.Now())
		if err := writer.WriteFleetSummary(fleet); err != nil {
			logger.Errorf("Failed to write fleet summary: %v", err)
			return 1
		}
		if collab.Notifier != nil && notify.ShouldNotifyFleet(fleet) {
			if err := collab.Notifier.NotifyFleet(context.Background(), fleet); err != nil {
				logger.Warnf("Fleet notification failed: %v", err)
			}
		}
	}

	if runErr != nil {
		return 1
	}
	return 0
}

func runStream(args []string) int {
	fs := flag.NewFlagSet("stream", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := loadConfig(*configArg)
	logger.Infof("authsignal stream starting")

	if cfg.AuthSignal.Metrics.Enabled {
		metrics.Serve(cfg.AuthSignal.Metrics.Addr)
	}

	consumer, err := inputredis.NewConsumer(inputredis.Config{
		Addr:         cfg.AuthSignal.Input.Redis.Addr,
		Password:     cfg.AuthSignal.Input.Redis.Password,
		DB:           cfg.AuthSignal.Input.Redis.DB,
		Key:          cfg.AuthSignal.Input.Redis.Key,
		BlockTimeout: cfg.AuthSignal.Input.Redis.BlockTimeout,
	})
	if err != nil {
		logger.Errorf("Failed to create Redis consumer: %v", err)
		return 1
	}

	writer, err := buildWriter(cfg)
	if err != nil {
		logger.Errorf("%v", err)
		return 1
	}

	stream := pipeline.NewStream(
		consumer,
		buildEngine(cfg),
		writer,
		buildCollaborators(cfg),
		cfg.AuthSignal.Pipeline.Workers,
		cfg.AuthSignal.Pipeline.BatchSize,
		cfg.AuthSignal.Pipeline.FlushInterval,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := stream.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Pipeline error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()
	time.Sleep(1 * time.Second)

	if err := stream.Close(); err != nil {
		logger.Errorf("Error closing pipeline: %v", err)
	}

	logger.Infof("authsignal stream stopped")
	return 0
}

func runFleet(args []string) int {
	fs := flag.NewFlagSet("fleet", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	overridesArg := fs.String("overrides", "", "Override file path (takes precedence over config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := loadConfig(*configArg)
	reports := fs.Args()
	if len(reports) == 0 {
		fmt.Fprintln(os.Stderr, "usage: authsignal fleet [-config path] [-overrides path] <report.jsonl> [...]")
		return 2
	}

	summaries, signals := pipeline.LoadReports(reports)
	if len(summaries) == 0 {
		fmt.Fprintln(os.Stderr, "no valid weekly summary inputs found")
		return 1
	}

	overridePath := *overridesArg
	if overridePath == "" {
		overridePath = cfg.AuthSignal.Overrides.Path
	}
	ov := overrides.Load(overridePath)

	fleet := summary.Aggregate(summaries, signals, ov, time.Now())

	writer, err := buildWriter(cfg)
	if err != nil {
		logger.Errorf("%v", err)
		return 1
	}
	defer writer.Close()
	if err := writer.WriteFleetSummary(fleet); err != nil {
		logger.Errorf("Failed to write fleet summary: %v", err)
		return 1
	}

	if notify.ShouldNotifyFleet(fleet) {
		notifier := notify.New(notify.Config{
			WebhookURL: cfg.AuthSignal.Notify.WebhookURL,
			Timeout:    cfg.AuthSignal.Notify.Timeout,
		})
		if err := notifier.NotifyFleet(context.Background(), fleet); err != nil {
			logger.Warnf("Fleet notification failed: %v", err)
		}
	}

	logger.Infof("fleet summary: %d servers, tier %s", fleet.ServerCount, fleet.OverallRisk)
	return 0
}

func runQuery(args []string) int {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	configArg := fs.String("config", "", "Config file path")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := loadConfig(*configArg)
	if len(fs.Args()) == 0 {
		fmt.Fprintln(os.Stderr, "usage: authsignal query [-config path] <free-text query>")
		return 2
	}
	text := strings.Join(fs.Args(), " ")

	var analytical, similarity, exact store.Store
	for _, st := range buildStores(cfg) {
		switch st.Name() {
		case "clickhouse":
			analytical = st
		case "redis-index":
			similarity = st
		case "forensic":
			exact = st
		}
	}

	router := query.NewRouter(analytical, similarity, exact)
	decisions := router.Route(context.Background(), cfg.AuthSignal.TenantID, text)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(decisions); err != nil {
		logger.Errorf("Failed to encode decisions: %v", err)
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: authsignal <run|stream|fleet|query> [flags] [args]")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "run":
		os.Exit(runBatch(os.Args[2:]))
	case "stream":
		os.Exit(runStream(os.Args[2:]))
	case "fleet":
		os.Exit(runFleet(os.Args[2:]))
	case "query":
		os.Exit(runQuery(os.Args[2:]))
	default:
		usage()
		os.Exit(2)
	}
}
