package model

import "time"

// EntityStatus is the lifecycle status shared by companies and contacts.
type EntityStatus string

const (
	StatusLead     EntityStatus = "LEAD"
	StatusActive   EntityStatus = "ACTIVE"
	StatusInactive EntityStatus = "INACTIVE"
)

// ContactSource records how a contact entered the CRM.
type ContactSource string

const (
	SourceConversation ContactSource = "CONVERSATION"
	SourceManual       ContactSource = "MANUAL"
	SourceImport       ContactSource = "IMPORT"
)

// Company is a tenant-scoped business entity. Identity within a tenant is the
// CNPJ when present, otherwise an exact name match ignoring case and accents.
type Company struct {
	ID            string       `json:"id"`
	TenantID      string       `json:"tenant_id"`
	Name          string       `json:"name"`
	CNPJ          *string      `json:"cnpj,omitempty"`
	LegalName     string       `json:"legal_name,omitempty"`
	Website       string       `json:"website,omitempty"`
	Segment       string       `json:"segment,omitempty"`
	BusinessType  string       `json:"business_type,omitempty"`
	CompanySize   string       `json:"company_size,omitempty"`
	EmployeeCount *int         `json:"employee_count,omitempty"`
	AnnualRevenue *float64     `json:"annual_revenue,omitempty"`
	Country       string       `json:"country,omitempty"`
	State         string       `json:"state,omitempty"`
	City          string       `json:"city,omitempty"`
	Potential     string       `json:"potential,omitempty"`
	LeadSource    string       `json:"lead_source,omitempty"`
	Status        EntityStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Contact is a tenant-scoped person, optionally linked to a company.
type Contact struct {
	ID            string        `json:"id"`
	TenantID      string        `json:"tenant_id"`
	FirstName     string        `json:"first_name"`
	LastName      string        `json:"last_name,omitempty"`
	Email         string        `json:"email,omitempty"`
	Phone         string        `json:"phone,omitempty"`
	MobilePhone   string        `json:"mobile_phone,omitempty"`
	Whatsapp      string        `json:"whatsapp,omitempty"`
	Position      string        `json:"position,omitempty"`
	Department    string        `json:"department,omitempty"`
	LinkedinURL   string        `json:"linkedin_url,omitempty"`
	CompanyID     *string       `json:"company_id,omitempty"`
	CompanyName   string        `json:"company_name,omitempty"`
	Source        ContactSource `json:"source"`
	Status        EntityStatus  `json:"status"`
	LastContactAt *time.Time    `json:"last_contact_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// DealStatus is the open/closed state of an opportunity.
type DealStatus string

const (
	DealStatusOpen DealStatus = "OPEN"
	DealStatusWon  DealStatus = "WON"
	DealStatusLost DealStatus = "LOST"
)

// Deal is a tenant-scoped opportunity owned by a user, linked to a contact
// and optionally a company, sitting in exactly one pipeline stage.
type Deal struct {
	ID                string     `json:"id"`
	TenantID          string     `json:"tenant_id"`
	UserID            string     `json:"user_id"`
	Title             string     `json:"title"`
	Value             *float64   `json:"value,omitempty"`
	Currency          string     `json:"currency,omitempty"`
	ExpectedCloseDate *time.Time `json:"expected_close_date,omitempty"`
	Probability       float64    `json:"probability"`
	StageID           string     `json:"stage_id"`
	ContactID         string     `json:"contact_id"`
	CompanyID         *string    `json:"company_id,omitempty"`
	ClientProblem     string     `json:"client_problem,omitempty"`
	OpportunityReason string     `json:"opportunity_reason,omitempty"`
	SourceChannel     string     `json:"source_channel,omitempty"`
	MarketSegment     string     `json:"market_segment,omitempty"`
	ProductSolution   string     `json:"product_solution,omitempty"`
	Quantity          *int       `json:"quantity,omitempty"`
	Status            DealStatus `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// PipelineStage is a tenant-defined ordered phase of the sales process.
type PipelineStage struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	StageOrder  int       `json:"stage_order"`
	Probability float64   `json:"probability"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Tenant is an isolated customer organization.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a CRM user within a tenant.
type User struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
