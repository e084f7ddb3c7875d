// Package bootstrap wires configuration, storage, domain services and the
// HTTP transport into a running server, and owns graceful shutdown.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"storyteller-server-go/internal/domain/article"
	domainauth "storyteller-server-go/internal/domain/auth"
	authstore "storyteller-server-go/internal/domain/auth/store"
	"storyteller-server-go/internal/domain/eventbus"
	"storyteller-server-go/internal/domain/library"
	"storyteller-server-go/internal/domain/llm"
	"storyteller-server-go/internal/domain/tts"
	platformconfig "storyteller-server-go/internal/platform/config"
	platformerrors "storyteller-server-go/internal/platform/errors"
	platformlogging "storyteller-server-go/internal/platform/logging"
	platformstorage "storyteller-server-go/internal/platform/storage"
	httptransport "storyteller-server-go/internal/transport/http"
	httpwebapi "storyteller-server-go/internal/transport/http/webapi"
)

const (
	shutdownGrace   = 15 * time.Second
	busWorkerCount  = 4
	serverStopGrace = 5 * time.Second
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	configPath string

	config      *platformconfig.Config
	logger      *platformlogging.Logger
	db          *gorm.DB
	audioDir    string
	sessions    authstore.Store
	authManager *domainauth.Manager
	extractor   *article.Extractor
	synthesizer tts.Provider
	llmClient   *llm.Client
	bus         *eventbus.AsyncEventBus
	resolver    *library.Resolver
}

// Run starts the whole service lifecycle: initialisation, serving and
// graceful shutdown. configPath may be empty, in which case CONFIG_PATH and
// the default location are consulted.
func Run(ctx context.Context, configPath string) error {
	state := &appState{configPath: configPath}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	config := state.config
	logger := state.logger
	if config == nil || logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}

	logBootstrapGraph(steps, logger)

	defer func() {
		if state.authManager != nil {
			if closeErr := state.authManager.Close(); closeErr != nil {
				logger.ErrorTag("auth", "auth manager did not close cleanly: %v", closeErr)
			}
		}
		if state.bus != nil {
			state.bus.Stop()
		}
	}()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	if err := waitForShutdown(signalCtx, cancel, logger, group); err != nil {
		return err
	}

	logger.InfoTag("bootstrap", "server stopped")
	logger.Close()
	return nil
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	for _, step := range steps {
		logger.InfoTag("bootstrap", "%s", step.Title)
	}
	logger.InfoTag("bootstrap", "starting services")
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise database",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initStorageStep,
		},
		{
			ID:        "auth:init-manager",
			Title:     "Initialise auth manager",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindAuth,
			Execute:   initAuthStep,
		},
		{
			ID:        "providers:init",
			Title:     "Initialise article, speech and language providers",
			DependsOn: []string{"config:load", "storage:init-database"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initProvidersStep,
		},
		{
			ID:        "library:init-resolver",
			Title:     "Initialise audio library resolver",
			DependsOn: []string{"storage:init-database", "providers:init"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initResolverStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader(state.configPath).WithDotEnv(true).Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load configuration", err)
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap, "logging:init-provider", "config not loaded")
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialise logging", err)
	}

	state.logger = logger
	platformlogging.DefaultLogger = logger

	source := state.configPath
	if source == "" {
		source = "defaults"
	}
	logger.InfoTag("bootstrap", "logging ready [%s] %s", state.config.Log.Level, source)
	return nil
}

func initStorageStep(_ context.Context, state *appState) error {
	// Open migrates the schema itself.
	db, err := platformstorage.Open(state.config.Storage)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to open database", err)
	}

	audioDir, err := platformstorage.EnsureAudioDir(state.config.Storage)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to prepare audio directory", err)
	}

	state.db = db
	state.audioDir = audioDir
	return nil
}

func initAuthStep(_ context.Context, state *appState) error {
	cfg := state.config.Auth

	storeCfg := authstore.Config{
		Driver: cfg.Store.Type,
		TTL:    cfg.SessionTTL,
	}
	switch cfg.Store.Type {
	case authstore.DriverRedis:
		storeCfg.Redis = &authstore.RedisConfig{
			Addr:     cfg.Store.Redis.Addr,
			Username: cfg.Store.Redis.Username,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   cfg.Store.Redis.Prefix,
		}
	case authstore.DriverSQLite:
		storeCfg.SQLite = &authstore.SQLiteConfig{DSN: cfg.Store.SQLite.DSN}
	case authstore.DriverMemory, "":
		storeCfg.Memory = &authstore.MemoryConfig{GCInterval: cfg.Store.Memory.Cleanup}
	}

	sessions, err := authstore.New(storeCfg, authstore.Dependencies{SQLiteDB: state.db})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindAuth, "auth:init-manager", "failed to create session store", err)
	}
	state.sessions = sessions

	manager, err := domainauth.NewManager(domainauth.Options{
		DB:              state.db,
		Sessions:        sessions,
		Token:           domainauth.NewAuthToken(cfg.Secret),
		Logger:          state.logger,
		SessionTTL:      cfg.SessionTTL,
		CleanupInterval: cfg.Cleanup,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindAuth, "auth:init-manager", "failed to create auth manager", err)
	}

	state.authManager = manager
	return nil
}

func initProvidersStep(_ context.Context, state *appState) error {
	state.extractor = article.NewExtractor(state.config.Article, state.logger)

	synthesizer, err := tts.New(state.config.TTS, state.audioDir, state.logger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindSynthesis, "providers:init", "failed to create speech provider", err)
	}
	state.synthesizer = synthesizer

	client, err := llm.NewClient(state.config.LLM, state.logger)
	if err != nil {
		return err
	}
	state.llmClient = client
	return nil
}

func initResolverStep(_ context.Context, state *appState) error {
	bus := eventbus.NewAsyncEventBus(busWorkerCount)
	bus.Start()
	state.bus = bus

	resolver, err := library.NewResolver(library.Options{
		Store:          library.NewStore(state.db),
		Extractor:      state.extractor,
		Synthesizer:    state.synthesizer,
		Embedder:       state.llmClient,
		Bus:            bus,
		SynthesisLimit: state.config.Article.SynthesisLimit,
		Logger:         state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "library:init-resolver", "failed to create resolver", err)
	}

	state.resolver = resolver
	return nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config:     config,
		Logger:     logger,
		StaticRoot: state.audioDir,
	})
	if err != nil {
		return nil, err
	}
	router := httpRouter.Engine

	router.NoRoute(func(c *gin.Context) {
		httptransport.RespondError(c, http.StatusNotFound, "not found")
	})

	webapiService := httpwebapi.NewService(config, state.resolver, state.llmClient, state.authManager, logger)
	webapiService.Register(httpRouter.Root)

	httpServer := &http.Server{
		Addr:    config.Server.IP + ":" + strconv.Itoa(config.Server.Port),
		Handler: router,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return platformerrors.Wrap(platformerrors.KindTransport, "http:serve", "http server failed", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverStopGrace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WarnTag("HTTP", "shutdown: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("bootstrap", "received signal %v, cleaning up", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("bootstrap", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("bootstrap", "all services stopped")
	case <-time.After(shutdownGrace):
		timeoutErr := errors.New("shutdown timed out")
		logger.ErrorTag("bootstrap", "shutdown timed out, forcing exit")
		return timeoutErr
	}
	return nil
}
