package metrics

import (
	"sync"
	"time"
)

// Metrics holds in-process counters for the voice pipeline
type Metrics struct {
	mu sync.RWMutex

	// Request metrics (HTTP surface)
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	EndpointRequests   map[string]int64
	EndpointErrors     map[string]int64

	// Turn-loop stage metrics (stt, responder, tts, persist)
	StageCalls   map[string]int64
	StageErrors  map[string]int64
	StageLatency map[string][]time.Duration

	// Tool execution metrics
	ToolCalls  map[string]int64
	ToolErrors map[string]int64

	// Call lifecycle
	CallsStarted   int64
	CallsFinalized int64

	StartTime time.Time
}

var globalMetrics = &Metrics{
	EndpointRequests: make(map[string]int64),
	EndpointErrors:   make(map[string]int64),
	StageCalls:       make(map[string]int64),
	StageErrors:      make(map[string]int64),
	StageLatency:     make(map[string][]time.Duration),
	ToolCalls:        make(map[string]int64),
	ToolErrors:       make(map[string]int64),
	StartTime:        time.Now(),
}

// RecordRequest records an HTTP request
func RecordRequest(endpoint string, success bool) {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()

	globalMetrics.TotalRequests++
	if success {
		globalMetrics.SuccessfulRequests++
	} else {
		globalMetrics.FailedRequests++
		globalMetrics.EndpointErrors[endpoint]++
	}
	globalMetrics.EndpointRequests[endpoint]++
}

// RecordStage records one turn-loop stage execution
func RecordStage(stage string, success bool, latency time.Duration) {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()

	globalMetrics.StageCalls[stage]++
	if !success {
		globalMetrics.StageErrors[stage]++
	}

	// Keep only last 100 latency measurements per stage
	if len(globalMetrics.StageLatency[stage]) >= 100 {
		globalMetrics.StageLatency[stage] = globalMetrics.StageLatency[stage][1:]
	}
	globalMetrics.StageLatency[stage] = append(globalMetrics.StageLatency[stage], latency)
}

// RecordTool records one tool execution
func RecordTool(tool string, success bool) {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()

	globalMetrics.ToolCalls[tool]++
	if !success {
		globalMetrics.ToolErrors[tool]++
	}
}

// RecordCallStarted increments the started-call counter
func RecordCallStarted() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.CallsStarted++
}

// RecordCallFinalized increments the finalized-call counter
func RecordCallFinalized() {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.CallsFinalized++
}

// GetMetrics returns a snapshot of current metrics
func GetMetrics() map[string]interface{} {
	globalMetrics.mu.RLock()
	defer globalMetrics.mu.RUnlock()

	stageAvgLatency := make(map[string]float64)
	for stage, latencies := range globalMetrics.StageLatency {
		if len(latencies) > 0 {
			var sum time.Duration
			for _, l := range latencies {
				sum += l
			}
			stageAvgLatency[stage] = sum.Seconds() / float64(len(latencies))
		}
	}

	stageCalls := make(map[string]int64, len(globalMetrics.StageCalls))
	for k, v := range globalMetrics.StageCalls {
		stageCalls[k] = v
	}
	stageErrors := make(map[string]int64, len(globalMetrics.StageErrors))
	for k, v := range globalMetrics.StageErrors {
		stageErrors[k] = v
	}
	toolCalls := make(map[string]int64, len(globalMetrics.ToolCalls))
	for k, v := range globalMetrics.ToolCalls {
		toolCalls[k] = v
	}
	toolErrors := make(map[string]int64, len(globalMetrics.ToolErrors))
	for k, v := range globalMetrics.ToolErrors {
		toolErrors[k] = v
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(globalMetrics.StartTime).Seconds(),
		"requests": map[string]interface{}{
			"total":      globalMetrics.TotalRequests,
			"successful": globalMetrics.SuccessfulRequests,
			"failed":     globalMetrics.FailedRequests,
		},
		"stages": map[string]interface{}{
			"calls":               stageCalls,
			"errors":              stageErrors,
			"latency_avg_seconds": stageAvgLatency,
		},
		"tools": map[string]interface{}{
			"calls":  toolCalls,
			"errors": toolErrors,
		},
		"calls": map[string]interface{}{
			"started":   globalMetrics.CallsStarted,
			"finalized": globalMetrics.CallsFinalized,
		},
	}
}
