package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"interview-service/internal/config"
	"interview-service/internal/gemini"
	"interview-service/internal/handler"
	"interview-service/internal/llm"
	"interview-service/internal/media"
	"interview-service/internal/repository"
	"interview-service/internal/scratch"
	"interview-service/internal/service"
	"interview-service/internal/speech"
	"interview-service/internal/transcribe"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yml"
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// Initialize logger
	logger, err := newLogger(cfg.Log.Production)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting Interview Service...", zap.String("config", configPath))

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	provider := newCompletionProvider(cfg, logger)
	defer provider.Close()

	completer := llm.NewCompleter(provider, cfg.Evaluation.CallTimeout, logger)

	recognizer, closeRecognizer := newRecognizer(cfg, logger)
	defer closeRecognizer()

	scratchDir, err := scratch.NewDir(scratch.Config{
		Dir:             cfg.Scratch.Dir,
		ReleaseAttempts: cfg.Scratch.ReleaseAttempts,
		ReleaseDelay:    cfg.Scratch.ReleaseDelay,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to prepare scratch dir", zap.Error(err))
	}

	sweeper, err := scratch.NewSweeper(scratchDir, cfg.Scratch.SweepCron, cfg.Scratch.MaxAge, logger)
	if err != nil {
		logger.Fatal("Invalid scratch sweep schedule", zap.Error(err))
	}
	sweeper.Start()
	defer sweeper.Stop()

	transcriberCfg := transcribe.Config{SilenceThreshold: cfg.Media.SilenceThreshold}
	if cfg.Speech.DetectLanguage {
		transcriberCfg.Detector = speech.NewLanguageDetector()
	}
	transcriber := transcribe.NewAdapter(
		media.NewToolkit(media.Config{
			FFmpegPath:  cfg.Media.FFmpegPath,
			FFprobePath: cfg.Media.FFprobePath,
			SampleRate:  cfg.Media.SampleRate,
		}, logger),
		recognizer,
		scratchDir,
		transcriberCfg,
		logger,
	)

	// Initialize repository
	if cfg.Database.Type == repository.DialectSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			logger.Fatal("Failed to create data dir", zap.Error(err))
		}
	}
	repo, err := repository.Open(repository.Config{
		Type: cfg.Database.Type,
		DSN:  cfg.Database.Path,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	// Initialize services
	evaluator := service.NewEvaluator(completer, logger)

	apiHandler := handler.NewHandler(handler.Deps{
		Questions:      service.NewQuestionService(completer, repo, logger),
		Submissions:    service.NewSubmission(repo, scratchDir, transcriber, evaluator, logger),
		Reports:        service.NewReportService(repo, logger),
		Auth:           service.NewAuthService(repo, logger),
		DB:             repo,
		ModelInfo:      completer.ModelInfo,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
	}, logger)

	// Setup Gin router
	if cfg.Log.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(apiHandler, logger)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	// Graceful shutdown
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	modelName := "unknown"
	if m, ok := completer.ModelInfo()["model"].(string); ok {
		modelName = m
	}

	logger.Info("Interview Service is running",
		zap.String("address", serverAddr),
		zap.String("model", modelName),
		zap.String("speech", recognizer.Name()),
		zap.String("database", cfg.Database.Type))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// in-flight evaluations may take a while
	grace := 30 * time.Second
	if cfg.Evaluation.CallTimeout > 0 {
		grace = cfg.Evaluation.CallTimeout + 5*time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// newCompletionProvider prefers the configured provider chain and falls back
// to the single gemini section.
func newCompletionProvider(cfg *config.Config, logger *zap.Logger) llm.Provider {
	if len(cfg.Providers) > 0 {
		multiClient, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
			Providers:   cfg.Providers,
			MaxFailures: cfg.MaxFailuresBeforeSwitch,
		}, logger)
		if err == nil {
			logger.Info("Multi-provider client initialized",
				zap.Int("provider_count", len(cfg.Providers)))
			return multiClient
		}
		logger.Warn("Failed to initialize multi-provider client, falling back to single provider",
			zap.Error(err))
	}

	geminiClient, err := gemini.NewClient(gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		ModelName:  cfg.Gemini.ModelName,
		MaxRetries: cfg.Gemini.MaxRetries,
		RetryDelay: 2 * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Gemini client", zap.Error(err))
	}

	return llm.NewRateLimitedProvider(geminiClient, cfg.Gemini.RequestsPerMinute, logger)
}

func newRecognizer(cfg *config.Config, logger *zap.Logger) (speech.Recognizer, func()) {
	switch cfg.Speech.Provider {
	case "whisper":
		r, err := speech.NewWhisperRecognizer(speech.WhisperConfig{
			APIKey:    cfg.Speech.APIKey,
			ModelName: cfg.Speech.ModelName,
			BaseURL:   cfg.Speech.BaseURL,
			Language:  cfg.Speech.Language,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Whisper recognizer", zap.Error(err))
		}
		return r, func() {}
	default:
		client, err := gemini.NewClient(gemini.Config{
			APIKey:    cfg.Speech.APIKey,
			ModelName: cfg.Speech.ModelName,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini speech client", zap.Error(err))
		}
		return speech.NewGeminiRecognizer(client, cfg.Speech.Language, logger), func() { client.Close() }
	}
}
