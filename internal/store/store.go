// Package store defines the persistence layer for conversations, insights and
// the CRM entity graph, with Postgres and SQLite backends.
package store

import (
	"context"
	"time"

	"github.com/salesvox/conversa/internal/model"
)

// ReconciliationLog records one reconciliation attempt and its outcome, used
// for monitoring and auditing.
type ReconciliationLog struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	ConversationID string    `json:"conversation_id"`
	Outcome        string    `json:"outcome"`
	Detail         string    `json:"detail,omitempty"`
	CompanyID      *string   `json:"company_id,omitempty"`
	ContactID      *string   `json:"contact_id,omitempty"`
	DealID         *string   `json:"deal_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// EntityCounts is a point-in-time tally of CRM rows.
type EntityCounts struct {
	Companies int `json:"companies"`
	Contacts  int `json:"contacts"`
	Deals     int `json:"deals"`
	Insights  int `json:"insights"`
}

// Store defines the persistence interface for the callback pipeline.
// Lookup methods return (nil, nil) when no row matches.
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, c *model.Conversation) error
	GetConversation(ctx context.Context, tenantID, id string) (*model.Conversation, error)
	UpdateConversationStatus(ctx context.Context, tenantID, id string, status model.ProcessingStatus, errorReason *string) error
	// SetConversationDeal links a deal to a conversation only when no deal is
	// linked yet; it reports whether the link was written.
	SetConversationDeal(ctx context.Context, tenantID, id, dealID string) (bool, error)

	// Insights
	UpsertInsight(ctx context.Context, in *model.Insight) error
	GetInsight(ctx context.Context, conversationID string) (*model.Insight, error)

	// Companies
	CreateCompany(ctx context.Context, c *model.Company) error
	UpdateCompany(ctx context.Context, c *model.Company) error
	GetCompanyByCNPJ(ctx context.Context, tenantID, cnpj string) (*model.Company, error)
	GetCompanyByName(ctx context.Context, tenantID, name string) (*model.Company, error)

	// Contacts
	CreateContact(ctx context.Context, c *model.Contact) error
	UpdateContact(ctx context.Context, c *model.Contact) error
	GetContactByEmail(ctx context.Context, tenantID, email string) (*model.Contact, error)
	GetContactByNameAndCompany(ctx context.Context, tenantID, firstName, lastName, companyID string) (*model.Contact, error)
	GetContactByName(ctx context.Context, tenantID, firstName, lastName string) (*model.Contact, error)

	// Deals
	CreateDeal(ctx context.Context, d *model.Deal) error
	UpdateDeal(ctx context.Context, d *model.Deal) error
	GetDeal(ctx context.Context, tenantID, id string) (*model.Deal, error)

	// Pipeline stages
	CreatePipelineStage(ctx context.Context, s *model.PipelineStage) error
	// DefaultPipelineStage returns the tenant's active stage with the lowest
	// order, or (nil, nil) when the tenant has none.
	DefaultPipelineStage(ctx context.Context, tenantID string) (*model.PipelineStage, error)

	// Tenancy provisioning (idempotent getOrCreate, used by seeding)
	EnsureTenant(ctx context.Context, t *model.Tenant) error
	EnsureUser(ctx context.Context, u *model.User) error

	// Reconciliation audit log
	LogReconciliation(ctx context.Context, entry *ReconciliationLog) error

	// Monitoring
	ConversationStatusCounts(ctx context.Context) (map[model.ProcessingStatus]int, error)
	CountEntities(ctx context.Context) (*EntityCounts, error)
	ReconciliationOutcomeCounts(ctx context.Context, since time.Time) (map[string]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
