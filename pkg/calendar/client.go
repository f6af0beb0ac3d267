package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/troikatech/voice-agent/pkg/errors"
)

// Scheduler creates calendar events on behalf of a tenant.
type Scheduler interface {
	CreateEvent(ctx context.Context, req *EventRequest) (*Event, error)
}

// EventRequest describes the event to create.
type EventRequest struct {
	CalendarID    string    `json:"calendar_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	AttendeePhone string    `json:"attendee_phone,omitempty"`
	AttendeeName  string    `json:"attendee_name,omitempty"`
	Conferencing  bool      `json:"conferencing"`
}

// Event is the created calendar entry.
type Event struct {
	ID         string    `json:"id"`
	MeetingURL string    `json:"meeting_url,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

// Client is a thin HTTP client for the scheduling service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Scheduler = (*Client)(nil)

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// IsAvailable returns true if the client is configured.
func (c *Client) IsAvailable() bool {
	return c.baseURL != ""
}

// CreateEvent books the event and returns it with any conferencing link
// the service attached.
func (c *Client) CreateEvent(ctx context.Context, req *EventRequest) (*Event, error) {
	if !c.IsAvailable() {
		return nil, fmt.Errorf("calendar service not available. Set CALENDAR_API_BASE_URL")
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return nil, apperrors.NewValidation("event requires start and end times")
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/events", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewIntegration("calendar", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.NewIntegration("calendar",
			fmt.Errorf("event creation failed: %s (status %d)", string(body), resp.StatusCode))
	}

	var event Event
	if err := json.NewDecoder(resp.Body).Decode(&event); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Info("Calendar event created",
		zap.String("event_id", event.ID),
		zap.Time("start_time", event.StartTime))

	return &event, nil
}
