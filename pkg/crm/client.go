package crm

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

// Contacts pushes captured leads into the tenant's CRM.
type Contacts interface {
	CreateContact(ctx context.Context, req *ContactRequest) (*Contact, error)
}

// ContactRequest describes the contact to create.
type ContactRequest struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
	Source   string `json:"source"`
	Notes    string `json:"notes,omitempty"`
}

// Contact is the created CRM record.
type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Client is a thin HTTP client for the CRM service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Contacts = (*Client)(nil)

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

// CreateContact pushes a contact into the CRM.
func (c *Client) CreateContact(ctx context.Context, req *ContactRequest) (*Contact, error) {
	if !c.IsAvailable() {
		return nil, fmt.Errorf("CRM service not available. Set CRM_API_BASE_URL")
	}
	if req.Phone == "" && req.Email == "" {
		return nil, apperrors.NewValidation("contact requires a phone number or email")
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/contacts", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewIntegration("crm", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.NewIntegration("crm",
			fmt.Errorf("contact creation failed: %s (status %d)", string(body), resp.StatusCode))
	}

	var contact Contact
	if err := json.NewDecoder(resp.Body).Decode(&contact); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Info("CRM contact created",
		zap.String("contact_id", contact.ID))

	return &contact, nil
}
