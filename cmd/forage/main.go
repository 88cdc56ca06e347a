package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/P-Jhao/agentForage-backend-sub001/internal/agents"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/background"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/cancel"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/config"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/execution"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/feedback"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/httpapi"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/modelgw"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/observability"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/push"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/ratelimit"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/taskruntime"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()

	var taskStore tasks.Store = tasks.NewMemoryStore()
	var feedbackStore feedback.Store = feedback.NewMemoryStore()
	var agentStore agents.Store = agents.NewMemoryStore()
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pgTasks, err := tasks.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("task store init failed: %v", err)
		}
		pgFeedback, err := feedback.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("feedback store init failed: %v", err)
		}
		pgAgents, err := agents.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("agent store init failed: %v", err)
		}
		taskStore = pgTasks
		feedbackStore = pgFeedback
		agentStore = pgAgents
		log.Printf("store mode: postgres")
	} else {
		log.Printf("store mode: in-memory")
	}
	defer taskStore.Close()
	defer feedbackStore.Close()
	defer agentStore.Close()

	var client execution.StreamClient
	if strings.TrimSpace(cfg.ModelGatewayURL) != "" {
		client = modelgw.NewHTTPClient(cfg.ModelGatewayURL)
		log.Printf("model client: http gateway at %s", cfg.ModelGatewayURL)
	} else {
		client = modelgw.NewMockClient()
		log.Printf("model client: mock (APP_MODEL_GATEWAY_URL not set)")
	}

	registry := push.NewRegistry()
	registry.SetPruneHook(func(userID string, _ int) {
		metrics.PrunedConnections.Inc()
		log.Printf("pruned dead push connection for user %s", userID)
	})

	cancels := cancel.NewRegistry()

	manager := tasks.NewManager(registry)
	manager.SetStore(taskStore)

	runner := execution.NewRunner(client, cancels)
	taskService := taskruntime.New(manager, runner, cancels, metrics, cfg.TaskTimeout)

	limiter := ratelimit.NewLimiter()
	limiter.StartSweeper()
	defer limiter.StopSweeper()

	feedbackService := feedback.NewService(limiter, feedbackStore, metrics)

	scheduler := background.NewScheduler()
	scheduler.SetDoneHook(func(name string, err error) {
		metrics.ObserveBackgroundJob(name, err)
	})
	agentService := agents.NewService(agentStore, scheduler)

	api := httpapi.New(cfg, registry, taskService, feedbackService, agentService, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	scheduler.Wait()
	log.Printf("shutdown complete")
}
