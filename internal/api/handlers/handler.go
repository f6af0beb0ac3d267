package handlers

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/troikatech/voice-agent/internal/orchestrator"
	"github.com/troikatech/voice-agent/internal/store"
	"github.com/troikatech/voice-agent/internal/tenant"
	"github.com/troikatech/voice-agent/pkg/ai"
	"github.com/troikatech/voice-agent/pkg/calendar"
	"github.com/troikatech/voice-agent/pkg/carrier"
	"github.com/troikatech/voice-agent/pkg/crm"
	"github.com/troikatech/voice-agent/pkg/env"
	"github.com/troikatech/voice-agent/pkg/logger"
	"github.com/troikatech/voice-agent/pkg/mongo"
	"github.com/troikatech/voice-agent/pkg/stt"
	"github.com/troikatech/voice-agent/pkg/tts"
)

type Handler struct {
	cfg         *env.Config
	redisClient *redis.Client
	mongoClient *mongo.Client
	logger      *zap.Logger

	store       store.CallStore
	tenants     tenant.Loader
	transcriber stt.Transcriber
	responder   ai.Responder
	synthesizer tts.Synthesizer
	carrier     carrier.Telephony
	calendar    calendar.Scheduler
	crm         crm.Contacts
	rates       orchestrator.Rates
}

func NewHandler(
	cfg *env.Config,
	redisClient *redis.Client,
	mongoClient *mongo.Client,
	callStore store.CallStore,
	tenants tenant.Loader,
	transcriber stt.Transcriber,
	responder ai.Responder,
	synthesizer tts.Synthesizer,
	telephony carrier.Telephony,
	scheduler calendar.Scheduler,
	contacts crm.Contacts,
) *Handler {
	return &Handler{
		cfg:         cfg,
		redisClient: redisClient,
		mongoClient: mongoClient,
		logger:      logger.Log,
		store:       callStore,
		tenants:     tenants,
		transcriber: transcriber,
		responder:   responder,
		synthesizer: synthesizer,
		carrier:     telephony,
		calendar:    scheduler,
		crm:         contacts,
		rates: orchestrator.Rates{
			STTPerMinute:       cfg.STTRatePerMinute,
			LLMPer1KPrompt:     cfg.LLMRatePer1KPrompt,
			LLMPer1KCompletion: cfg.LLMRatePer1KCompletion,
			TTSPer1KChars:      cfg.TTSRatePer1KChars,
			TelephonyPerMinute: cfg.TelephonyRatePerMinute,
		},
	}
}
