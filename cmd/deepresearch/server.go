package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/deepresearch/agents"
	"github.com/BaSui01/deepresearch/api/handlers"
	"github.com/BaSui01/deepresearch/config"
	"github.com/BaSui01/deepresearch/internal/jobs"
	"github.com/BaSui01/deepresearch/internal/metrics"
	"github.com/BaSui01/deepresearch/internal/ratelimit"
	"github.com/BaSui01/deepresearch/internal/server"
	"github.com/BaSui01/deepresearch/internal/task"
	"github.com/BaSui01/deepresearch/internal/telemetry"
	"github.com/BaSui01/deepresearch/internal/urlguard"
	"github.com/BaSui01/deepresearch/llm"
	"github.com/BaSui01/deepresearch/llm/openai"
	"github.com/BaSui01/deepresearch/workflow"
)

// Server assembles the research service: registry, pipeline, background
// runner, HTTP ingress and the metrics endpoint.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	otelProviders *telemetry.Providers

	httpManager    *server.Manager
	metricsManager *server.Manager

	registry      task.Registry
	redisRegistry *task.RedisRegistry
	runner        *jobs.Runner
	orchestrator  *workflow.Orchestrator
	limiter       *ratelimit.Limiter

	collector *metrics.Collector

	researchHandler *handlers.ResearchHandler
	healthHandler   *handlers.HealthHandler
}

// NewServer creates a server instance from the loaded configuration.
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		otelProviders: otelProviders,
	}
}

// Start brings up every component and begins serving. It does not block.
func (s *Server) Start() error {
	if s.cfg.Metrics.Enabled {
		s.collector = metrics.NewCollector(s.cfg.Metrics.Namespace, s.logger)
	}

	if err := s.initRegistry(); err != nil {
		return fmt.Errorf("failed to init task registry: %w", err)
	}

	if err := s.initPipeline(); err != nil {
		return fmt.Errorf("failed to init pipeline: %w", err)
	}

	s.runner = jobs.NewRunner(s.cfg.Jobs, s.logger)
	s.limiter = ratelimit.New(s.cfg.RateLimit, s.logger)

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if s.cfg.Metrics.Enabled {
		if err := s.startMetricsServer(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	s.logger.Info("all servers started",
		zap.String("addr", s.cfg.Server.Addr),
		zap.String("registry_backend", s.cfg.Registry.Backend),
		zap.Bool("metrics_enabled", s.cfg.Metrics.Enabled),
	)

	return nil
}

func (s *Server) initRegistry() error {
	switch s.cfg.Registry.Backend {
	case "redis":
		registry, err := task.NewRedisRegistry(s.cfg.Registry.Redis, s.logger)
		if err != nil {
			return err
		}
		s.redisRegistry = registry
		s.registry = registry
	default:
		s.registry = task.NewMemoryRegistry(s.logger)
	}
	return nil
}

func (s *Server) initPipeline() error {
	var provider llm.Provider = openai.New(s.cfg.LLM, s.logger)
	if s.collector != nil {
		provider = &instrumentedProvider{next: provider, collector: s.collector}
	}
	guard := urlguard.NewValidator(s.cfg.URLGuard, s.logger)

	pipelineAgents := workflow.Agents{
		QueryRefiner:    agents.NewQueryRefinementAgent(s.cfg.Refine, provider, s.logger),
		Researcher:      agents.NewResearchAgent(s.cfg.Research, guard, s.logger),
		Synthesizer:     agents.NewSynthesisAgent(s.cfg.Synthesis, provider, s.logger),
		FactChecker:     agents.NewFactCheckAgent(s.cfg.FactCheck, provider, s.logger),
		DataAnalyzer:    agents.NewDataAnalysisAgent(s.cfg.DataAnalysis, provider, s.logger),
		CodeAnalyzer:    agents.NewCodeAnalysisAgent(s.cfg.CodeAnalysis, provider, s.logger),
		CitationBuilder: agents.NewCitationAgent(s.logger),
	}

	graph, err := workflow.NewPipeline(pipelineAgents, s.cfg.Pipeline, s.logger)
	if err != nil {
		return err
	}
	if s.collector != nil {
		graph.SetObserver(s.collector.RecordStepExecution)
	}

	s.orchestrator = workflow.NewOrchestrator(graph, s.logger)

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewProviderHealthCheck(provider))
	if s.redisRegistry != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("redis_registry", s.redisRegistry.Ping))
	}

	s.researchHandler = handlers.NewResearchHandler(s.registry, s.scheduler(), s.collector, s.logger)

	return nil
}

// instrumentedProvider wraps a model provider and records call latencies and
// token usage on the metrics collector.
type instrumentedProvider struct {
	next      llm.Provider
	collector *metrics.Collector
}

func (p *instrumentedProvider) Name() string { return p.next.Name() }

func (p *instrumentedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	start := time.Now()
	resp, err := p.next.Completion(ctx, req)

	status := "ok"
	if err != nil {
		status = "error"
	}
	p.collector.RecordUpstreamRequest("llm", status, time.Since(start))

	if resp != nil && resp.Usage != nil {
		p.collector.RecordLLMTokens(p.next.Name(), resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	return resp, err
}

func (p *instrumentedProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return p.next.HealthCheck(ctx)
}

// scheduler hands accepted tasks to the background runner. The runner never
// queues past its bounds, so a saturated service rejects at submission time.
func (s *Server) scheduler() handlers.Scheduler {
	return handlers.SchedulerFunc(func(taskID, query string) error {
		return s.runner.Submit(func(ctx context.Context) {
			start := time.Now()
			s.orchestrator.ExecuteTask(ctx, s.registry, taskID, query)

			if s.collector != nil {
				status := task.StatusFailed
				if rec, err := s.registry.Get(ctx, taskID); err == nil {
					status = rec.Status
				}
				s.collector.RecordTaskFinished(status, time.Since(start))
			}
		})
	})
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /research", s.researchHandler.HandleCreate)
	mux.HandleFunc("GET /status/{task_id}", s.researchHandler.HandleStatus)
	mux.HandleFunc("GET /results/{task_id}", s.researchHandler.HandleResults)

	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
	}
	if s.collector != nil {
		middlewares = append(middlewares, MetricsMiddleware(s.collector))
	}
	if s.cfg.Telemetry.Enabled {
		middlewares = append(middlewares, OTelTracing())
	}
	middlewares = append(middlewares, ClientRateLimit(s.limiter, s.collector, s.logger))

	handler := Chain(mux, middlewares...)

	s.httpManager = server.NewManager(handler, s.cfg.Server, s.logger)

	if s.cfg.Server.TLSCertFile != "" && s.cfg.Server.TLSKeyFile != "" {
		if err := s.httpManager.StartTLS(s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile); err != nil {
			return err
		}
	} else {
		if err := s.httpManager.Start(); err != nil {
			return err
		}
	}

	s.logger.Info("HTTP server started", zap.String("addr", s.cfg.Server.Addr))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	metricsConfig := server.Config{
		Addr:            s.cfg.Metrics.Addr,
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, metricsConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("metrics server started", zap.String("addr", s.cfg.Metrics.Addr))
	return nil
}

// WaitForShutdown blocks until a termination signal arrives, then shuts
// everything down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	s.Shutdown()
}

// Shutdown stops accepting work, drains running pipelines and closes every
// component in dependency order.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// Runner after ingress: no new jobs can arrive, running ones drain.
	if s.runner != nil {
		s.runner.Close()
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	if s.redisRegistry != nil {
		if err := s.redisRegistry.Close(); err != nil {
			s.logger.Error("redis registry close error", zap.Error(err))
		}
	}

	if err := s.otelProviders.Shutdown(ctx); err != nil {
		s.logger.Error("telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("graceful shutdown completed")
}
