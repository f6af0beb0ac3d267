package orchestrator

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/troikatech/voice-agent/internal/store"
)

// Rates is the per-provider price table in USD.
type Rates struct {
	STTPerMinute       float64
	LLMPer1KPrompt     float64
	LLMPer1KCompletion float64
	TTSPer1KChars      float64
	TelephonyPerMinute float64
}

// Accountant accumulates usage for one call and derives costs. Updates
// arrive from streaming callbacks on several goroutines; totals only
// grow.
type Accountant struct {
	mu     sync.Mutex
	callID primitive.ObjectID
	store  store.CallStore
	rates  Rates
	logger *zap.Logger

	sttSeconds       float64
	promptTokens     int
	completionTokens int
	ttsChars         int
	telephonySeconds float64
}

func NewAccountant(callID primitive.ObjectID, s store.CallStore, rates Rates, logger *zap.Logger) *Accountant {
	return &Accountant{
		callID: callID,
		store:  s,
		rates:  rates,
		logger: logger,
	}
}

// AddSTTSeconds records transcribed audio duration.
func (a *Accountant) AddSTTSeconds(seconds float64) {
	if seconds <= 0 {
		return
	}
	a.mu.Lock()
	a.sttSeconds += seconds
	a.mu.Unlock()
}

// AddLLMUsage records token consumption for one completion.
func (a *Accountant) AddLLMUsage(promptTokens, completionTokens int) {
	a.mu.Lock()
	if promptTokens > 0 {
		a.promptTokens += promptTokens
	}
	if completionTokens > 0 {
		a.completionTokens += completionTokens
	}
	a.mu.Unlock()
}

// AddTTSChars records synthesized characters.
func (a *Accountant) AddTTSChars(chars int) {
	if chars <= 0 {
		return
	}
	a.mu.Lock()
	a.ttsChars += chars
	a.mu.Unlock()
}

// SetTelephonySeconds records total call duration. It never shrinks.
func (a *Accountant) SetTelephonySeconds(seconds float64) {
	a.mu.Lock()
	if seconds > a.telephonySeconds {
		a.telephonySeconds = seconds
	}
	a.mu.Unlock()
}

// Costs derives the current cost snapshot.
func (a *Accountant) Costs() store.Costs {
	a.mu.Lock()
	defer a.mu.Unlock()

	costs := store.Costs{
		STT:       a.sttSeconds / 60 * a.rates.STTPerMinute,
		LLM:       float64(a.promptTokens)/1000*a.rates.LLMPer1KPrompt + float64(a.completionTokens)/1000*a.rates.LLMPer1KCompletion,
		TTS:       float64(a.ttsChars) / 1000 * a.rates.TTSPer1KChars,
		Telephony: a.telephonySeconds / 60 * a.rates.TelephonyPerMinute,
	}
	costs.Total = costs.STT + costs.LLM + costs.TTS + costs.Telephony
	return costs
}

// Flush persists the accumulated costs onto the call row.
func (a *Accountant) Flush(ctx context.Context) error {
	costs := a.Costs()
	err := a.store.UpdateCall(ctx, a.callID, &store.CallUpdate{Costs: &costs})
	if err != nil {
		a.logger.Warn("Failed to flush call costs",
			zap.String("call_id", a.callID.Hex()),
			zap.Error(err))
		return err
	}
	return nil
}
