package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/voice-agent/pkg/circuitbreaker"
	apperrors "github.com/troikatech/voice-agent/pkg/errors"
)

// Telephony is the narrow carrier surface the call pipeline needs:
// redirecting a live call leg to another number and reading call state.
type Telephony interface {
	Redirect(ctx context.Context, callSID, toNumber string) error
	GetCallStatus(ctx context.Context, callSID string) (*CallStatus, error)
}

// CallStatus is the carrier's view of a call.
type CallStatus struct {
	SID       string
	Status    string
	Direction string
	Duration  int
}

// ExotelClient talks to the Exotel REST API. All outbound requests run
// behind a circuit breaker so a misbehaving carrier cannot stall every
// active call.
type ExotelClient struct {
	subdomain  string
	accountSID string
	apiKey     string
	apiToken   string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

var _ Telephony = (*ExotelClient)(nil)

// normalizeSubdomain removes .exotel.com if already present in subdomain
func normalizeSubdomain(subdomain string) string {
	if strings.Contains(subdomain, ".exotel.com") {
		return strings.ReplaceAll(subdomain, ".exotel.com", "")
	}
	return subdomain
}

func NewExotelClient(subdomain, accountSID, apiKey, apiToken string, logger *zap.Logger) *ExotelClient {
	return &ExotelClient{
		subdomain:  normalizeSubdomain(subdomain),
		accountSID: accountSID,
		apiKey:     apiKey,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    circuitbreaker.New(circuitbreaker.DefaultConfig()),
		logger:     logger,
	}
}

// IsAvailable returns true if the client is configured with credentials.
func (c *ExotelClient) IsAvailable() bool {
	return c.accountSID != "" && c.apiKey != "" && c.apiToken != ""
}

// Redirect moves a live call leg to the given number. The caller hears
// ringing while the carrier dials the new destination.
func (c *ExotelClient) Redirect(ctx context.Context, callSID, toNumber string) error {
	if !c.IsAvailable() {
		return fmt.Errorf("carrier not available. Set EXOTEL credentials")
	}

	endpoint := fmt.Sprintf("https://%s.exotel.com/v1/Accounts/%s/Calls/%s.json",
		c.subdomain, c.accountSID, callSID)

	data := url.Values{}
	data.Set("Legs[0][To]", toNumber)
	data.Set("Legs[0][OnLegFullAction]", "continue")

	return c.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBufferString(data.Encode()))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.SetBasicAuth(c.apiKey, c.apiToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return apperrors.NewIntegration("exotel", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return apperrors.NewIntegration("exotel",
				fmt.Errorf("redirect failed: %s (status %d)", string(body), resp.StatusCode))
		}

		c.logger.Info("Call leg redirected",
			zap.String("call_sid", callSID))
		return nil
	})
}

// GetCallStatus fetches the carrier's current state for a call.
func (c *ExotelClient) GetCallStatus(ctx context.Context, callSID string) (*CallStatus, error) {
	if !c.IsAvailable() {
		return nil, fmt.Errorf("carrier not available. Set EXOTEL credentials")
	}

	endpoint := fmt.Sprintf("https://%s.exotel.com/v1/Accounts/%s/Calls/%s.json",
		c.subdomain, c.accountSID, callSID)

	var status *CallStatus
	err := c.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.SetBasicAuth(c.apiKey, c.apiToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return apperrors.NewIntegration("exotel", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return apperrors.NewIntegration("exotel",
				fmt.Errorf("status lookup failed: %s (status %d)", string(body), resp.StatusCode))
		}

		var parsed struct {
			Call struct {
				Sid       string `json:"Sid"`
				Status    string `json:"Status"`
				Direction string `json:"Direction"`
				Duration  int    `json:"Duration,string"`
			} `json:"Call"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}

		status = &CallStatus{
			SID:       parsed.Call.Sid,
			Status:    parsed.Call.Status,
			Direction: parsed.Call.Direction,
			Duration:  parsed.Call.Duration,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}
