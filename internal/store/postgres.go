package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/salesvox/conversa/internal/db"
	"github.com/salesvox/conversa/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot callback path.
var preparedStatements = map[string]string{
	"get_conversation":    `SELECT id, tenant_id, user_id, deal_id, contact_id, processing_status, error_reason, transcription, created_at, updated_at FROM conversations WHERE id = $1 AND tenant_id = $2`,
	"update_conversation": `UPDATE conversations SET processing_status = $1, error_reason = $2, updated_at = $3 WHERE id = $4 AND tenant_id = $5`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tenants (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL REFERENCES tenants(id),
	name       TEXT NOT NULL,
	email      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversations (
	id                TEXT PRIMARY KEY,
	tenant_id         TEXT NOT NULL,
	user_id           TEXT NOT NULL,
	deal_id           TEXT,
	contact_id        TEXT,
	processing_status TEXT NOT NULL DEFAULT 'PENDING',
	error_reason      TEXT,
	transcription     TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversations_tenant ON conversations(tenant_id);
CREATE INDEX IF NOT EXISTS idx_conversations_status ON conversations(processing_status);

CREATE TABLE IF NOT EXISTS insights (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL UNIQUE REFERENCES conversations(id),
	interests        JSONB NOT NULL DEFAULT '[]',
	objections       JSONB NOT NULL DEFAULT '[]',
	commitments      JSONB NOT NULL DEFAULT '[]',
	progress_signals JSONB NOT NULL DEFAULT '[]',
	risk_signals     JSONB NOT NULL DEFAULT '[]',
	next_actions     JSONB NOT NULL DEFAULT '[]',
	summary          TEXT NOT NULL DEFAULT '',
	extracted_data   JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS companies (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	name            TEXT NOT NULL,
	name_normalized TEXT NOT NULL,
	cnpj            TEXT,
	legal_name      TEXT NOT NULL DEFAULT '',
	website         TEXT NOT NULL DEFAULT '',
	segment         TEXT NOT NULL DEFAULT '',
	business_type   TEXT NOT NULL DEFAULT '',
	company_size    TEXT NOT NULL DEFAULT '',
	employee_count  INTEGER,
	annual_revenue  DOUBLE PRECISION,
	country         TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	city            TEXT NOT NULL DEFAULT '',
	potential       TEXT NOT NULL DEFAULT '',
	lead_source     TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'LEAD',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_companies_tenant_cnpj ON companies(tenant_id, cnpj) WHERE cnpj IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_companies_tenant_name ON companies(tenant_id, name_normalized);

CREATE TABLE IF NOT EXISTS contacts (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	first_name      TEXT NOT NULL,
	last_name       TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	mobile_phone    TEXT NOT NULL DEFAULT '',
	whatsapp        TEXT NOT NULL DEFAULT '',
	position        TEXT NOT NULL DEFAULT '',
	department      TEXT NOT NULL DEFAULT '',
	linkedin_url    TEXT NOT NULL DEFAULT '',
	company_id      TEXT,
	company_name    TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL DEFAULT 'MANUAL',
	status          TEXT NOT NULL DEFAULT 'LEAD',
	last_contact_at TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_contacts_tenant_email ON contacts(tenant_id, lower(email));
CREATE INDEX IF NOT EXISTS idx_contacts_tenant_name ON contacts(tenant_id, lower(first_name), lower(last_name));

CREATE TABLE IF NOT EXISTS pipeline_stages (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	name        TEXT NOT NULL,
	stage_order INTEGER NOT NULL,
	probability DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_active   BOOLEAN NOT NULL DEFAULT true,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, name)
);

CREATE INDEX IF NOT EXISTS idx_stages_tenant_order ON pipeline_stages(tenant_id, stage_order);

CREATE TABLE IF NOT EXISTS deals (
	id                  TEXT PRIMARY KEY,
	tenant_id           TEXT NOT NULL,
	user_id             TEXT NOT NULL,
	title               TEXT NOT NULL,
	value               DOUBLE PRECISION,
	currency            TEXT NOT NULL DEFAULT '',
	expected_close_date TIMESTAMPTZ,
	probability         DOUBLE PRECISION NOT NULL DEFAULT 0,
	stage_id            TEXT NOT NULL REFERENCES pipeline_stages(id),
	contact_id          TEXT NOT NULL REFERENCES contacts(id),
	company_id          TEXT REFERENCES companies(id),
	client_problem      TEXT NOT NULL DEFAULT '',
	opportunity_reason  TEXT NOT NULL DEFAULT '',
	source_channel      TEXT NOT NULL DEFAULT '',
	market_segment      TEXT NOT NULL DEFAULT '',
	product_solution    TEXT NOT NULL DEFAULT '',
	quantity            INTEGER,
	status              TEXT NOT NULL DEFAULT 'OPEN',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_deals_tenant ON deals(tenant_id);
CREATE INDEX IF NOT EXISTS idx_deals_contact ON deals(contact_id);

CREATE TABLE IF NOT EXISTS reconciliation_log (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	outcome         TEXT NOT NULL,
	detail          TEXT NOT NULL DEFAULT '',
	company_id      TEXT,
	contact_id      TEXT,
	deal_id         TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_recon_log_outcome ON reconciliation_log(outcome);
CREATE INDEX IF NOT EXISTS idx_recon_log_created ON reconciliation_log(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Conversations

func (s *PostgresStore) CreateConversation(ctx context.Context, c *model.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ProcessingStatus == "" {
		c.ProcessingStatus = model.ProcessingStatusPending
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, tenant_id, user_id, deal_id, contact_id, processing_status, error_reason, transcription, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.TenantID, c.UserID, c.DealID, c.ContactID,
		string(c.ProcessingStatus), c.ErrorReason, c.Transcription, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert conversation")
}

func (s *PostgresStore) GetConversation(ctx context.Context, tenantID, id string) (*model.Conversation, error) {
	var c model.Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, user_id, deal_id, contact_id, processing_status, error_reason, transcription, created_at, updated_at
		 FROM conversations WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&c.ID, &c.TenantID, &c.UserID, &c.DealID, &c.ContactID,
		&c.ProcessingStatus, &c.ErrorReason, &c.Transcription, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get conversation %s", id)
	}
	return &c, nil
}

func (s *PostgresStore) UpdateConversationStatus(ctx context.Context, tenantID, id string, status model.ProcessingStatus, errorReason *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET processing_status = $1, error_reason = $2, updated_at = $3 WHERE id = $4 AND tenant_id = $5`,
		string(status), errorReason, time.Now().UTC(), id, tenantID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update conversation status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("conversation not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) SetConversationDeal(ctx context.Context, tenantID, id, dealID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET deal_id = $1, updated_at = $2 WHERE id = $3 AND tenant_id = $4 AND deal_id IS NULL`,
		dealID, time.Now().UTC(), id, tenantID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: set conversation deal %s", id)
	}
	return tag.RowsAffected() > 0, nil
}

// Insights

func (s *PostgresStore) UpsertInsight(ctx context.Context, in *model.Insight) error {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	lists, err := insightLists(in)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO insights (id, conversation_id, interests, objections, commitments, progress_signals, risk_signals, next_actions, summary, extracted_data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (conversation_id) DO UPDATE SET
		   interests = $3, objections = $4, commitments = $5, progress_signals = $6,
		   risk_signals = $7, next_actions = $8, summary = $9, extracted_data = $10, updated_at = $12`,
		in.ID, in.ConversationID,
		lists[0], lists[1], lists[2], lists[3], lists[4], lists[5],
		in.Summary, nilIfEmptyJSON(in.ExtractedData), now, now,
	)
	return eris.Wrap(err, "postgres: upsert insight")
}

func (s *PostgresStore) GetInsight(ctx context.Context, conversationID string) (*model.Insight, error) {
	var in model.Insight
	var lists [6][]byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, conversation_id, interests, objections, commitments, progress_signals, risk_signals, next_actions, summary, extracted_data, created_at, updated_at
		 FROM insights WHERE conversation_id = $1`,
		conversationID,
	).Scan(&in.ID, &in.ConversationID,
		&lists[0], &lists[1], &lists[2], &lists[3], &lists[4], &lists[5],
		&in.Summary, &in.ExtractedData, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get insight")
	}

	for i, dst := range []*[]string{&in.Interests, &in.Objections, &in.Commitments, &in.ProgressSignals, &in.RiskSignals, &in.NextActions} {
		if err := json.Unmarshal(lists[i], dst); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal insight list")
		}
	}
	return &in, nil
}

// Companies

func (s *PostgresStore) CreateCompany(ctx context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = model.StatusLead
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO companies (id, tenant_id, name, name_normalized, cnpj, legal_name, website, segment, business_type, company_size,
		   employee_count, annual_revenue, country, state, city, potential, lead_source, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		c.ID, c.TenantID, c.Name, model.NormalizeName(c.Name), normalizedCNPJ(c.CNPJ),
		c.LegalName, c.Website, c.Segment, c.BusinessType, c.CompanySize,
		c.EmployeeCount, c.AnnualRevenue, c.Country, c.State, c.City,
		c.Potential, c.LeadSource, string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert company")
}

func (s *PostgresStore) UpdateCompany(ctx context.Context, c *model.Company) error {
	c.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE companies SET
		   name = $3, name_normalized = $4, cnpj = $5, legal_name = $6, website = $7, segment = $8,
		   business_type = $9, company_size = $10, employee_count = $11, annual_revenue = $12,
		   country = $13, state = $14, city = $15, potential = $16, lead_source = $17, status = $18, updated_at = $19
		 WHERE id = $1 AND tenant_id = $2`,
		c.ID, c.TenantID, c.Name, model.NormalizeName(c.Name), normalizedCNPJ(c.CNPJ),
		c.LegalName, c.Website, c.Segment, c.BusinessType, c.CompanySize,
		c.EmployeeCount, c.AnnualRevenue, c.Country, c.State, c.City,
		c.Potential, c.LeadSource, string(c.Status), c.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update company %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("company not found: %s", c.ID)
	}
	return nil
}

func (s *PostgresStore) GetCompanyByCNPJ(ctx context.Context, tenantID, cnpj string) (*model.Company, error) {
	return s.getCompany(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE tenant_id = $1 AND cnpj = $2`,
		tenantID, model.NormalizeCNPJ(cnpj))
}

func (s *PostgresStore) GetCompanyByName(ctx context.Context, tenantID, name string) (*model.Company, error) {
	return s.getCompany(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE tenant_id = $1 AND name_normalized = $2`,
		tenantID, model.NormalizeName(name))
}

func (s *PostgresStore) getCompany(ctx context.Context, query string, args ...any) (*model.Company, error) {
	c := &model.Company{}
	err := s.pool.QueryRow(ctx, query, args...).Scan(companyDests(c)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get company")
	}
	return c, nil
}

// Contacts

func (s *PostgresStore) CreateContact(ctx context.Context, c *model.Contact) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = model.StatusLead
	}
	if c.Source == "" {
		c.Source = model.SourceManual
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO contacts (id, tenant_id, first_name, last_name, email, phone, mobile_phone, whatsapp, position, department,
		   linkedin_url, company_id, company_name, source, status, last_contact_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		c.ID, c.TenantID, c.FirstName, c.LastName, c.Email, c.Phone, c.MobilePhone, c.Whatsapp,
		c.Position, c.Department, c.LinkedinURL, c.CompanyID, c.CompanyName,
		string(c.Source), string(c.Status), c.LastContactAt, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert contact")
}

func (s *PostgresStore) UpdateContact(ctx context.Context, c *model.Contact) error {
	c.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE contacts SET
		   first_name = $3, last_name = $4, email = $5, phone = $6, mobile_phone = $7, whatsapp = $8,
		   position = $9, department = $10, linkedin_url = $11, company_id = $12, company_name = $13,
		   source = $14, status = $15, last_contact_at = $16, updated_at = $17
		 WHERE id = $1 AND tenant_id = $2`,
		c.ID, c.TenantID, c.FirstName, c.LastName, c.Email, c.Phone, c.MobilePhone, c.Whatsapp,
		c.Position, c.Department, c.LinkedinURL, c.CompanyID, c.CompanyName,
		string(c.Source), string(c.Status), c.LastContactAt, c.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update contact %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("contact not found: %s", c.ID)
	}
	return nil
}

func (s *PostgresStore) GetContactByEmail(ctx context.Context, tenantID, email string) (*model.Contact, error) {
	return s.getContact(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE tenant_id = $1 AND lower(email) = lower($2) AND email <> '' LIMIT 1`,
		tenantID, email)
}

func (s *PostgresStore) GetContactByNameAndCompany(ctx context.Context, tenantID, firstName, lastName, companyID string) (*model.Contact, error) {
	return s.getContact(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE tenant_id = $1 AND lower(first_name) = lower($2) AND lower(last_name) = lower($3) AND company_id = $4 LIMIT 1`,
		tenantID, firstName, lastName, companyID)
}

func (s *PostgresStore) GetContactByName(ctx context.Context, tenantID, firstName, lastName string) (*model.Contact, error) {
	return s.getContact(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE tenant_id = $1 AND lower(first_name) = lower($2) AND lower(last_name) = lower($3) LIMIT 1`,
		tenantID, firstName, lastName)
}

func (s *PostgresStore) getContact(ctx context.Context, query string, args ...any) (*model.Contact, error) {
	c := &model.Contact{}
	err := s.pool.QueryRow(ctx, query, args...).Scan(contactDests(c)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get contact")
	}
	return c, nil
}

// Deals

func (s *PostgresStore) CreateDeal(ctx context.Context, d *model.Deal) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = model.DealStatusOpen
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO deals (id, tenant_id, user_id, title, value, currency, expected_close_date, probability, stage_id, contact_id,
		   company_id, client_problem, opportunity_reason, source_channel, market_segment, product_solution, quantity, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		d.ID, d.TenantID, d.UserID, d.Title, d.Value, d.Currency, d.ExpectedCloseDate,
		d.Probability, d.StageID, d.ContactID, d.CompanyID,
		d.ClientProblem, d.OpportunityReason, d.SourceChannel, d.MarketSegment,
		d.ProductSolution, d.Quantity, string(d.Status), d.CreatedAt, d.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert deal")
}

func (s *PostgresStore) UpdateDeal(ctx context.Context, d *model.Deal) error {
	d.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE deals SET
		   title = $3, value = $4, currency = $5, expected_close_date = $6, probability = $7, stage_id = $8,
		   contact_id = $9, company_id = $10, client_problem = $11, opportunity_reason = $12, source_channel = $13,
		   market_segment = $14, product_solution = $15, quantity = $16, status = $17, updated_at = $18
		 WHERE id = $1 AND tenant_id = $2`,
		d.ID, d.TenantID, d.Title, d.Value, d.Currency, d.ExpectedCloseDate, d.Probability,
		d.StageID, d.ContactID, d.CompanyID, d.ClientProblem, d.OpportunityReason,
		d.SourceChannel, d.MarketSegment, d.ProductSolution, d.Quantity, string(d.Status), d.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update deal %s", d.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("deal not found: %s", d.ID)
	}
	return nil
}

func (s *PostgresStore) GetDeal(ctx context.Context, tenantID, id string) (*model.Deal, error) {
	d := &model.Deal{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(dealDests(d)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get deal %s", id)
	}
	return d, nil
}

// Pipeline stages

func (s *PostgresStore) CreatePipelineStage(ctx context.Context, st *model.PipelineStage) error {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	st.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_stages (id, tenant_id, name, stage_order, probability, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (tenant_id, name) DO UPDATE SET
		   stage_order = $4, probability = $5, is_active = $6`,
		st.ID, st.TenantID, st.Name, st.StageOrder, st.Probability, st.IsActive, st.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert pipeline stage")
}

func (s *PostgresStore) DefaultPipelineStage(ctx context.Context, tenantID string) (*model.PipelineStage, error) {
	var st model.PipelineStage
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, stage_order, probability, is_active, created_at
		 FROM pipeline_stages WHERE tenant_id = $1 AND is_active ORDER BY stage_order ASC LIMIT 1`,
		tenantID,
	).Scan(&st.ID, &st.TenantID, &st.Name, &st.StageOrder, &st.Probability, &st.IsActive, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: default pipeline stage")
	}
	return &st, nil
}

// Tenancy

func (s *PostgresStore) EnsureTenant(ctx context.Context, t *model.Tenant) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (id, name, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Name, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: ensure tenant")
}

func (s *PostgresStore) EnsureUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, tenant_id, name, email, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		u.ID, u.TenantID, u.Name, u.Email, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: ensure user")
}

// Reconciliation log

func (s *PostgresStore) LogReconciliation(ctx context.Context, entry *ReconciliationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reconciliation_log (id, tenant_id, conversation_id, outcome, detail, company_id, contact_id, deal_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.TenantID, entry.ConversationID, entry.Outcome, entry.Detail,
		entry.CompanyID, entry.ContactID, entry.DealID, entry.CreatedAt,
	)
	return eris.Wrap(err, "postgres: log reconciliation")
}

// Monitoring

func (s *PostgresStore) ConversationStatusCounts(ctx context.Context) (map[model.ProcessingStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT processing_status, COUNT(*) FROM conversations GROUP BY processing_status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: conversation status counts")
	}
	defer rows.Close()

	counts := map[model.ProcessingStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		counts[model.ProcessingStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: status counts iterate")
}

func (s *PostgresStore) CountEntities(ctx context.Context) (*EntityCounts, error) {
	var ec EntityCounts
	err := s.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM companies),
		   (SELECT COUNT(*) FROM contacts),
		   (SELECT COUNT(*) FROM deals),
		   (SELECT COUNT(*) FROM insights)`,
	).Scan(&ec.Companies, &ec.Contacts, &ec.Deals, &ec.Insights)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count entities")
	}
	return &ec, nil
}

func (s *PostgresStore) ReconciliationOutcomeCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT outcome, COUNT(*) FROM reconciliation_log WHERE created_at >= $1 GROUP BY outcome`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: reconciliation outcome counts")
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outcome count")
		}
		counts[outcome] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: outcome counts iterate")
}

// helpers

const companyColumns = `id, tenant_id, name, cnpj, legal_name, website, segment, business_type, company_size,
	employee_count, annual_revenue, country, state, city, potential, lead_source, status, created_at, updated_at`

func companyDests(c *model.Company) []any {
	return []any{
		&c.ID, &c.TenantID, &c.Name, &c.CNPJ, &c.LegalName, &c.Website, &c.Segment,
		&c.BusinessType, &c.CompanySize, &c.EmployeeCount, &c.AnnualRevenue,
		&c.Country, &c.State, &c.City, &c.Potential, &c.LeadSource, &c.Status,
		&c.CreatedAt, &c.UpdatedAt,
	}
}

const contactColumns = `id, tenant_id, first_name, last_name, email, phone, mobile_phone, whatsapp, position, department,
	linkedin_url, company_id, company_name, source, status, last_contact_at, created_at, updated_at`

func contactDests(c *model.Contact) []any {
	return []any{
		&c.ID, &c.TenantID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.MobilePhone,
		&c.Whatsapp, &c.Position, &c.Department, &c.LinkedinURL, &c.CompanyID, &c.CompanyName,
		&c.Source, &c.Status, &c.LastContactAt, &c.CreatedAt, &c.UpdatedAt,
	}
}

const dealColumns = `id, tenant_id, user_id, title, value, currency, expected_close_date, probability, stage_id, contact_id,
	company_id, client_problem, opportunity_reason, source_channel, market_segment, product_solution, quantity, status, created_at, updated_at`

func dealDests(d *model.Deal) []any {
	return []any{
		&d.ID, &d.TenantID, &d.UserID, &d.Title, &d.Value, &d.Currency, &d.ExpectedCloseDate,
		&d.Probability, &d.StageID, &d.ContactID, &d.CompanyID, &d.ClientProblem,
		&d.OpportunityReason, &d.SourceChannel, &d.MarketSegment, &d.ProductSolution,
		&d.Quantity, &d.Status, &d.CreatedAt, &d.UpdatedAt,
	}
}

// insightLists marshals the six list fields, defaulting nil slices to empty
// JSON arrays so the replace semantics never leave NULLs behind.
func insightLists(in *model.Insight) ([6][]byte, error) {
	var out [6][]byte
	for i, src := range [][]string{in.Interests, in.Objections, in.Commitments, in.ProgressSignals, in.RiskSignals, in.NextActions} {
		if src == nil {
			src = []string{}
		}
		b, err := json.Marshal(src)
		if err != nil {
			return out, eris.Wrap(err, "postgres: marshal insight list")
		}
		out[i] = b
	}
	return out, nil
}

func nilIfEmptyJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func normalizedCNPJ(cnpj *string) *string {
	if cnpj == nil {
		return nil
	}
	n := model.NormalizeCNPJ(*cnpj)
	if n == "" {
		return nil
	}
	return &n
}
