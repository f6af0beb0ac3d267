package orchestrator

import (
	"context"
	"math"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/troikatech/voice-agent/internal/store"
)

func testRates() Rates {
	return Rates{
		STTPerMinute:       0.0059,
		LLMPer1KPrompt:     0.00015,
		LLMPer1KCompletion: 0.0006,
		TTSPer1KChars:      0.18,
		TelephonyPerMinute: 0.014,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAccountantCostMath(t *testing.T) {
	mem := store.NewMemoryStore()
	call := &store.Call{TenantID: "t-1", SessionID: "s"}
	if err := mem.CreateCall(context.Background(), call); err != nil {
		t.Fatal(err)
	}

	a := NewAccountant(call.ID, mem, testRates(), zap.NewNop())
	a.AddSTTSeconds(120)      // 2 minutes
	a.AddLLMUsage(2000, 1000) // 2k prompt, 1k completion
	a.AddTTSChars(500)        // half a thousand chars
	a.SetTelephonySeconds(60) // 1 minute

	costs := a.Costs()
	if !almostEqual(costs.STT, 2*0.0059) {
		t.Errorf("STT = %v", costs.STT)
	}
	if !almostEqual(costs.LLM, 2*0.00015+1*0.0006) {
		t.Errorf("LLM = %v", costs.LLM)
	}
	if !almostEqual(costs.TTS, 0.5*0.18) {
		t.Errorf("TTS = %v", costs.TTS)
	}
	if !almostEqual(costs.Telephony, 0.014) {
		t.Errorf("Telephony = %v", costs.Telephony)
	}
	if !almostEqual(costs.Total, costs.STT+costs.LLM+costs.TTS+costs.Telephony) {
		t.Errorf("Total = %v", costs.Total)
	}
}

func TestAccountantMonotonic(t *testing.T) {
	mem := store.NewMemoryStore()
	call := &store.Call{TenantID: "t-1", SessionID: "s"}
	if err := mem.CreateCall(context.Background(), call); err != nil {
		t.Fatal(err)
	}

	a := NewAccountant(call.ID, mem, testRates(), zap.NewNop())
	a.AddSTTSeconds(-10)
	a.AddLLMUsage(-5, -5)
	a.AddTTSChars(-1)
	a.SetTelephonySeconds(90)
	a.SetTelephonySeconds(30) // must not shrink

	costs := a.Costs()
	if costs.STT != 0 || costs.LLM != 0 || costs.TTS != 0 {
		t.Errorf("negative usage must be ignored: %+v", costs)
	}
	if !almostEqual(costs.Telephony, 90.0/60*0.014) {
		t.Errorf("Telephony = %v, want the larger duration kept", costs.Telephony)
	}
}

func TestAccountantConcurrentUpdates(t *testing.T) {
	mem := store.NewMemoryStore()
	call := &store.Call{TenantID: "t-1", SessionID: "s"}
	if err := mem.CreateCall(context.Background(), call); err != nil {
		t.Fatal(err)
	}

	a := NewAccountant(call.ID, mem, testRates(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.AddSTTSeconds(1)
			a.AddLLMUsage(10, 10)
			a.AddTTSChars(10)
		}()
	}
	wg.Wait()

	costs := a.Costs()
	if !almostEqual(costs.STT, 50.0/60*0.0059) {
		t.Errorf("STT = %v after concurrent updates", costs.STT)
	}
	if !almostEqual(costs.TTS, 500.0/1000*0.18) {
		t.Errorf("TTS = %v after concurrent updates", costs.TTS)
	}
}

func TestAccountantFlush(t *testing.T) {
	mem := store.NewMemoryStore()
	call := &store.Call{TenantID: "t-1", SessionID: "s"}
	if err := mem.CreateCall(context.Background(), call); err != nil {
		t.Fatal(err)
	}

	a := NewAccountant(call.ID, mem, testRates(), zap.NewNop())
	a.AddSTTSeconds(60)
	if err := a.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	got, _ := mem.GetCall(context.Background(), call.ID)
	if !almostEqual(got.Costs.STT, 0.0059) {
		t.Errorf("persisted STT = %v", got.Costs.STT)
	}
	if !almostEqual(got.Costs.Total, got.Costs.STT) {
		t.Errorf("persisted Total = %v", got.Costs.Total)
	}
}
