package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"go.uber.org/zap"

	"github.com/troikatech/voice-agent/internal/api/handlers"
	"github.com/troikatech/voice-agent/internal/store"
	"github.com/troikatech/voice-agent/internal/tenant"
	"github.com/troikatech/voice-agent/pkg/ai"
	"github.com/troikatech/voice-agent/pkg/calendar"
	"github.com/troikatech/voice-agent/pkg/carrier"
	"github.com/troikatech/voice-agent/pkg/crm"
	"github.com/troikatech/voice-agent/pkg/env"
	"github.com/troikatech/voice-agent/pkg/logger"
	"github.com/troikatech/voice-agent/pkg/middleware"
	"github.com/troikatech/voice-agent/pkg/mongo"
	"github.com/troikatech/voice-agent/pkg/otel"
	"github.com/troikatech/voice-agent/pkg/stt"
	"github.com/troikatech/voice-agent/pkg/tts"
)

// Server wires the call pipeline behind the HTTP surface.
type Server struct {
	cfg         *env.Config
	mongoClient *mongo.Client
	redisClient *redis.Client
	handler     *handlers.Handler
}

func main() {
	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.AppEnv); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize OpenTelemetry if enabled
	if cfg.OTELEnabled {
		shutdown, err := otel.InitTracing("voice-agent", "1.0.0", cfg.OTELEndpoint)
		if err != nil {
			logger.Log.Warn("Failed to initialize OpenTelemetry", zap.Error(err))
		} else {
			defer shutdown()
			logger.Log.Info("OpenTelemetry tracing enabled", zap.String("endpoint", cfg.OTELEndpoint))
		}
	}

	logger.Log.Info("Starting voice agent server",
		zap.String("env", cfg.AppEnv),
		zap.String("port", cfg.AppPort),
	)

	// Initialize Redis
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Log.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	redisClient := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Initialize MongoDB
	mongoClient, err := mongo.NewClient(cfg.MongoURI, cfg.DBName)
	if err != nil {
		logger.Log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Log.Warn("Failed to disconnect MongoDB", zap.Error(err))
		}
	}()

	callStore := store.NewMongoStore(mongoClient, logger.Log)
	tenants := tenant.NewCachedLoader(
		tenant.NewMongoLoader(mongoClient),
		redisClient,
		5*time.Minute,
		logger.Log,
	)

	aiTimeout := time.Duration(cfg.AITimeoutMs) * time.Millisecond

	responder := ai.NewOpenAIClient(cfg.OpenAIApiKey, cfg.OpenAIModel, cfg.OpenAIMaxTokens, aiTimeout, logger.Log)
	if responder.IsAvailable() {
		logger.Log.Info("OpenAI responder initialized", zap.String("model", cfg.OpenAIModel))
	} else {
		logger.Log.Warn("OpenAI responder not configured - calls cannot run turns")
	}

	transcriber := stt.NewDeepgramClient(cfg.DeepgramApiKey, aiTimeout, logger.Log)
	if transcriber.IsAvailable() {
		logger.Log.Info("Deepgram transcriber initialized", zap.String("model", cfg.DeepgramModel))
	}

	synthesizer := tts.NewElevenLabsClient(
		cfg.ElevenLabsApiKey,
		cfg.ElevenLabsVoiceID,
		cfg.ElevenLabsModel,
		cfg.ElevenLabsOutputFormat,
		logger.Log,
	)
	if synthesizer.IsAvailable() {
		logger.Log.Info("ElevenLabs synthesizer initialized", zap.String("voice_id", cfg.ElevenLabsVoiceID))
	}

	telephony := carrier.NewExotelClient(
		cfg.ExotelSubdomain,
		cfg.ExotelAccountSID,
		cfg.ExotelAPIKey,
		cfg.ExotelAPIToken,
		logger.Log,
	)

	scheduler := calendar.NewClient(cfg.CalendarAPIBaseURL, "", logger.Log)
	contacts := crm.NewClient(cfg.CRMAPIBaseURL, "", logger.Log)

	handler := handlers.NewHandler(
		cfg,
		redisClient,
		mongoClient,
		callStore,
		tenants,
		transcriber,
		responder,
		synthesizer,
		telephony,
		scheduler,
		contacts,
	)

	server := &Server{
		cfg:         cfg,
		mongoClient: mongoClient,
		redisClient: redisClient,
		handler:     handler,
	}

	router := server.setupRouter()

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Log.Info("Voice agent server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}

func (s *Server) setupRouter() *gin.Engine {
	if s.cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceMiddleware())

	// Add OpenTelemetry middleware if enabled
	if s.cfg.OTELEnabled {
		router.Use(otel.GinMiddleware())
	}

	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] %s %s %d %s\n",
			param.TimeStamp.Format(time.RFC3339),
			param.Method,
			param.Path,
			param.StatusCode,
			param.Latency,
		)
	}))

	// CORS
	corsConfig := cors.DefaultConfig()
	if s.cfg.CORSAllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{s.cfg.CORSAllowedOrigins}
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", s.handler.HealthCheck)
	router.GET("/metrics", s.handler.GetMetrics)

	// Telephony callbacks and the media session
	router.POST("/webhooks/telephony", s.handler.TelephonyWebhook)
	router.GET("/voice/ws", s.handler.VoiceWebSocket)

	// Read-only dashboard API
	api := router.Group("/api")
	{
		calls := api.Group("/calls")
		{
			calls.GET("", s.handler.ListCalls)
			calls.GET("/:id", s.handler.GetCall)
		}
	}

	return router
}
