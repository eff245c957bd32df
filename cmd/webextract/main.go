// Package main is the entry point for the webextract CLI: it runs the
// orchestrator once against a single URL and prints the webhook result
// payload as JSON to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/Zemacs/openpaper/internal/config"
	"github.com/Zemacs/openpaper/internal/llmoracle"
	"github.com/Zemacs/openpaper/internal/logging"
	"github.com/Zemacs/openpaper/internal/version"
	"github.com/Zemacs/openpaper/internal/webextract/adapters"
	"github.com/Zemacs/openpaper/internal/webextract/adaptive"
	"github.com/Zemacs/openpaper/internal/webextract/fetch"
	"github.com/Zemacs/openpaper/internal/webextract/orchestrator"
	"github.com/Zemacs/openpaper/internal/webextract/rulestore"
	"github.com/Zemacs/openpaper/internal/webextract/safety"
	"github.com/Zemacs/openpaper/internal/webextract/strategies"
	"github.com/Zemacs/openpaper/internal/webextract/webhook"
)

func main() {
	showVersion := flag.Bool("version", false, "print version information and exit")
	taskID := flag.String("task-id", "", "task id to attach to the extraction trace")
	projectID := flag.String("project-id", "", "project id to attach to the webhook result")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get().String())
		return
	}

	logger := logging.New()
	v := version.Get()
	logger.Info().
		Str("version", v.Version).
		Str("commit", v.Commit).
		Str("built", v.Date).
		Str("go_version", v.GoVersion).
		Msg("starting webextract")

	if flag.NArg() != 1 {
		logger.Error().Msg("usage: webextract [flags] <url>")
		os.Exit(2)
	}
	targetURL := flag.Arg(0)

	if *taskID == "" {
		*taskID = uuid.New().String()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}

	o := buildOrchestrator(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := o.Run(ctx, targetURL, orchestrator.RunOptions{
		TaskID:    *taskID,
		ProjectID: *projectID,
		StatusCallback: func(msg string) {
			logger.Info().Str("task_id", *taskID).Msg(msg)
		},
	})
	if err != nil {
		logger.Error().Err(err).Str("url", targetURL).Msg("extraction failed")
		payload := webhook.Failed(*taskID, err.Error())
		_ = json.NewEncoder(os.Stdout).Encode(payload)
		os.Exit(1)
	}

	payload := webhook.Completed(*taskID, *result)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		logger.Error().Err(err).Msg("failed to encode result")
		os.Exit(1)
	}
}

// buildOrchestrator wires the safety guard, fetcher, rule store, domain
// adapter registry, LLM oracle, and the six Extraction Strategies in the
// declared order: X-status, Domain Adapter, ArXiv HTML, JSON-LD, HTTP
// Readability, LLM Adaptive.
func buildOrchestrator(cfg *config.Config) *orchestrator.Orchestrator {
	guard := safety.NewGuard(cfg.SafetyAllowedPrivateCIDRs)
	fetcher := fetch.NewCollyFetcher()
	store := rulestore.New(cfg.RuleStorePath)
	registry := adapters.NewRegistry(store)

	oracleCfg := llmoracle.DefaultConfig()
	oracleCfg.Provider = cfg.AdaptiveProvider
	oracleCfg.Model = cfg.AdaptiveModel
	oracleCfg.APIKey = cfg.AdaptiveAPIKey
	oracleCfg.BaseURL = cfg.AdaptiveBaseURL
	oracleCfg.Timeout = cfg.AdaptiveTimeout
	oracleCfg.MinConfidence = cfg.AdaptiveMinConfidence
	oracle := llmoracle.New(oracleCfg)

	adaptiveCfg := adaptive.Config{
		Enabled:             cfg.AdaptiveEnabled,
		MaxHTMLChars:        cfg.AdaptiveMaxHTMLChars,
		CacheSize:           cfg.AdaptiveCacheSize,
		CacheTTL:            cfg.AdaptiveCacheTTL,
		PromotionEnabled:    cfg.PromotionEnabled,
		PromotionMinSamples: cfg.PromotionMinSamples,
		PromotionMaxSamples: cfg.PromotionMaxSamples,
		MinSuccessRate:      cfg.PromotionMinSuccessRate,
		MinAvgScore:         cfg.PromotionMinAvgScore,
		MinSampleScore:      cfg.PromotionMinSampleScore,
	}
	adaptiveStrategy := adaptive.New(adaptiveCfg, store, oracle)

	strategyList := []strategies.Strategy{
		&strategies.XStatusApiStrategy{},
		&strategies.DomainAdapterStrategy{Registry: registry},
		&strategies.ArxivHtmlStrategy{},
		&strategies.JsonLdStrategy{},
		&strategies.HttpReadabilityStrategy{},
		adaptiveStrategy,
	}

	orchCfg := orchestrator.Config{
		AcceptanceThreshold:    cfg.AcceptanceThreshold,
		MinimumAcceptableScore: cfg.MinimumAcceptableScore,
		Timeout:                cfg.OrchestratorTimeout,
		MaxChars:               cfg.MaxChars,
	}

	return orchestrator.New(guard, fetcher, strategyList, orchCfg)
}
