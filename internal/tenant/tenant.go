package tenant

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DayHours is an open/close window in HH:MM 24h local time. A nil
// entry in the weekly map means closed that day.
type DayHours struct {
	Open  string `bson:"open" json:"open"`
	Close string `bson:"close" json:"close"`
}

// CalendarConnection points at the tenant's external scheduling
// service.
type CalendarConnection struct {
	CalendarID string `bson:"calendar_id" json:"calendar_id"`
	APIKey     string `bson:"api_key" json:"api_key"`
}

// CRMConnection points at the tenant's CRM.
type CRMConnection struct {
	APIKey string `bson:"api_key" json:"api_key"`
}

// Config is the per-tenant agent configuration. Read-only to the call
// pipeline.
type Config struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	TenantID         string               `bson:"tenant_id" json:"tenant_id"`
	Name             string               `bson:"name" json:"name"`
	PersonaPrompt    string               `bson:"persona_prompt" json:"persona_prompt"`
	VoiceID          string               `bson:"voice_id,omitempty" json:"voice_id,omitempty"`
	Timezone         string               `bson:"timezone" json:"timezone"`
	WeeklyHours      map[string]*DayHours `bson:"weekly_hours,omitempty" json:"weekly_hours,omitempty"`
	Calendar         *CalendarConnection  `bson:"calendar,omitempty" json:"calendar,omitempty"`
	CRM              *CRMConnection       `bson:"crm,omitempty" json:"crm,omitempty"`
	ForwardingNumber string               `bson:"forwarding_number,omitempty" json:"forwarding_number,omitempty"`
}

// HasCalendar reports whether an external calendar is connected.
func (c *Config) HasCalendar() bool {
	return c.Calendar != nil && c.Calendar.CalendarID != ""
}

// HasCRM reports whether CRM sync is configured.
func (c *Config) HasCRM() bool {
	return c.CRM != nil
}

// Loader resolves tenant configuration by tenant id.
type Loader interface {
	Load(ctx context.Context, tenantID string) (*Config, error)
}
