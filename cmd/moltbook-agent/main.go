package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vishalmysore/moltbookcore/internal/analyzer"
	"github.com/vishalmysore/moltbookcore/internal/approval"
	"github.com/vishalmysore/moltbookcore/internal/brain"
	"github.com/vishalmysore/moltbookcore/internal/challenge"
	"github.com/vishalmysore/moltbookcore/internal/config"
	"github.com/vishalmysore/moltbookcore/internal/core/ports"
	"github.com/vishalmysore/moltbookcore/internal/heartbeat"
	"github.com/vishalmysore/moltbookcore/internal/logging"
	"github.com/vishalmysore/moltbookcore/internal/sites/moltbook"
	"github.com/vishalmysore/moltbookcore/internal/storage"
)

func main() {
	godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)
	log.Info("moltbook agent starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ledger ports.Ledger
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresLedger(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn("postgres ledger unavailable, falling back to file", "error", err)
		} else {
			ledger = pg
			log.Info("activity ledger: postgres")
		}
	}
	if ledger == nil {
		fl, err := storage.NewJSONLedger(cfg.LedgerPath)
		if err != nil {
			log.Error("failed to open activity ledger", "error", err)
			os.Exit(1)
		}
		ledger = fl
		log.Info("activity ledger: json file", "path", cfg.LedgerPath)
	}

	agentBrain, err := brain.NewGeminiBrain(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Error("failed to initialize brain", "error", err)
		os.Exit(1)
	}

	var gate ports.Approval
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		tg, err := approval.NewTelegramGate(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn("telegram gate unavailable, auto-approving with logs", "error", err)
		} else {
			gate = tg
			log.Info("approval gate: telegram")
		}
	}
	if gate == nil {
		gate = approval.NewLoggingGate(log.With("component", "approval"))
		log.Info("approval gate: logging auto-approve")
	}

	platform := moltbook.NewClient(cfg.MoltbookBaseURL, cfg.MoltbookAPIKey)
	feedAnalyzer := analyzer.New(ctx, agentBrain, cfg.SkillsString(), log.With("component", "analyzer"))
	solver := challenge.NewSolver(agentBrain, log.With("component", "challenge"))

	hb := heartbeat.New(heartbeat.Deps{
		Platform: platform,
		Brain:    agentBrain,
		Analyzer: feedAnalyzer,
		Solver:   solver,
		Approval: gate,
		Ledger:   ledger,
		Log:      log.With("component", "heartbeat"),
	}, heartbeat.Config{
		Interval:      cfg.HeartbeatInterval,
		FeedBatchSize: cfg.FeedBatchSize,
		ItemDelay:     cfg.ItemDelay,
	})

	// Pressing enter triggers a cycle immediately, bypassing the
	// interval guard once.
	trigger := make(chan struct{}, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		for {
			if _, err := reader.ReadString('\n'); err != nil {
				return
			}
			select {
			case trigger <- struct{}{}:
			default:
			}
		}
	}()

	log.Info("heartbeat loop running", "interval", cfg.HeartbeatInterval.String())
	hb.Run(ctx, trigger)
	log.Info("moltbook agent stopped")
}
