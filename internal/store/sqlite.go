package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/salesvox/conversa/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the
// single-process development backend; production runs Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tenants (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL REFERENCES tenants(id),
	name       TEXT NOT NULL,
	email      TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
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
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_conversations_tenant ON conversations(tenant_id);

CREATE TABLE IF NOT EXISTS insights (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL UNIQUE REFERENCES conversations(id),
	interests        TEXT NOT NULL DEFAULT '[]',
	objections       TEXT NOT NULL DEFAULT '[]',
	commitments      TEXT NOT NULL DEFAULT '[]',
	progress_signals TEXT NOT NULL DEFAULT '[]',
	risk_signals     TEXT NOT NULL DEFAULT '[]',
	next_actions     TEXT NOT NULL DEFAULT '[]',
	summary          TEXT NOT NULL DEFAULT '',
	extracted_data   TEXT,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
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
	annual_revenue  REAL,
	country         TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	city            TEXT NOT NULL DEFAULT '',
	potential       TEXT NOT NULL DEFAULT '',
	lead_source     TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'LEAD',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
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
	last_contact_at DATETIME,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_contacts_tenant_email ON contacts(tenant_id, email);

CREATE TABLE IF NOT EXISTS pipeline_stages (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	name        TEXT NOT NULL,
	stage_order INTEGER NOT NULL,
	probability REAL NOT NULL DEFAULT 0,
	is_active   INTEGER NOT NULL DEFAULT 1,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (tenant_id, name)
);

CREATE TABLE IF NOT EXISTS deals (
	id                  TEXT PRIMARY KEY,
	tenant_id           TEXT NOT NULL,
	user_id             TEXT NOT NULL,
	title               TEXT NOT NULL,
	value               REAL,
	currency            TEXT NOT NULL DEFAULT '',
	expected_close_date DATETIME,
	probability         REAL NOT NULL DEFAULT 0,
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
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reconciliation_log (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	outcome         TEXT NOT NULL,
	detail          TEXT NOT NULL DEFAULT '',
	company_id      TEXT,
	contact_id      TEXT,
	deal_id         TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Conversations

func (s *SQLiteStore) CreateConversation(ctx context.Context, c *model.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ProcessingStatus == "" {
		c.ProcessingStatus = model.ProcessingStatusPending
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, tenant_id, user_id, deal_id, contact_id, processing_status, error_reason, transcription, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.UserID, c.DealID, c.ContactID,
		string(c.ProcessingStatus), c.ErrorReason, c.Transcription, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert conversation")
}

func (s *SQLiteStore) GetConversation(ctx context.Context, tenantID, id string) (*model.Conversation, error) {
	var c model.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, user_id, deal_id, contact_id, processing_status, error_reason, transcription, created_at, updated_at
		 FROM conversations WHERE id = ? AND tenant_id = ?`,
		id, tenantID,
	).Scan(&c.ID, &c.TenantID, &c.UserID, &c.DealID, &c.ContactID,
		&c.ProcessingStatus, &c.ErrorReason, &c.Transcription, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get conversation %s", id)
	}
	return &c, nil
}

func (s *SQLiteStore) UpdateConversationStatus(ctx context.Context, tenantID, id string, status model.ProcessingStatus, errorReason *string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET processing_status = ?, error_reason = ?, updated_at = ? WHERE id = ? AND tenant_id = ?`,
		string(status), errorReason, time.Now().UTC(), id, tenantID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update conversation status %s", id)
	}
	return checkRowsAffected(res, "conversation", id)
}

func (s *SQLiteStore) SetConversationDeal(ctx context.Context, tenantID, id, dealID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET deal_id = ?, updated_at = ? WHERE id = ? AND tenant_id = ? AND deal_id IS NULL`,
		dealID, time.Now().UTC(), id, tenantID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: set conversation deal %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

// Insights

func (s *SQLiteStore) UpsertInsight(ctx context.Context, in *model.Insight) error {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	lists, err := insightLists(in)
	if err != nil {
		return err
	}

	var extracted any
	if len(in.ExtractedData) > 0 {
		extracted = string(in.ExtractedData)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO insights (id, conversation_id, interests, objections, commitments, progress_signals, risk_signals, next_actions, summary, extracted_data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (conversation_id) DO UPDATE SET
		   interests = excluded.interests, objections = excluded.objections,
		   commitments = excluded.commitments, progress_signals = excluded.progress_signals,
		   risk_signals = excluded.risk_signals, next_actions = excluded.next_actions,
		   summary = excluded.summary, extracted_data = excluded.extracted_data,
		   updated_at = excluded.updated_at`,
		in.ID, in.ConversationID,
		string(lists[0]), string(lists[1]), string(lists[2]),
		string(lists[3]), string(lists[4]), string(lists[5]),
		in.Summary, extracted, now, now,
	)
	return eris.Wrap(err, "sqlite: upsert insight")
}

func (s *SQLiteStore) GetInsight(ctx context.Context, conversationID string) (*model.Insight, error) {
	var in model.Insight
	var lists [6]string
	var extracted sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, interests, objections, commitments, progress_signals, risk_signals, next_actions, summary, extracted_data, created_at, updated_at
		 FROM insights WHERE conversation_id = ?`,
		conversationID,
	).Scan(&in.ID, &in.ConversationID,
		&lists[0], &lists[1], &lists[2], &lists[3], &lists[4], &lists[5],
		&in.Summary, &extracted, &in.CreatedAt, &in.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get insight")
	}

	for i, dst := range []*[]string{&in.Interests, &in.Objections, &in.Commitments, &in.ProgressSignals, &in.RiskSignals, &in.NextActions} {
		if err := json.Unmarshal([]byte(lists[i]), dst); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal insight list")
		}
	}
	if extracted.Valid {
		in.ExtractedData = []byte(extracted.String)
	}
	return &in, nil
}

// Companies

func (s *SQLiteStore) CreateCompany(ctx context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = model.StatusLead
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (id, tenant_id, name, name_normalized, cnpj, legal_name, website, segment, business_type, company_size,
		   employee_count, annual_revenue, country, state, city, potential, lead_source, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.Name, model.NormalizeName(c.Name), normalizedCNPJ(c.CNPJ),
		c.LegalName, c.Website, c.Segment, c.BusinessType, c.CompanySize,
		c.EmployeeCount, c.AnnualRevenue, c.Country, c.State, c.City,
		c.Potential, c.LeadSource, string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert company")
}

func (s *SQLiteStore) UpdateCompany(ctx context.Context, c *model.Company) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET
		   name = ?, name_normalized = ?, cnpj = ?, legal_name = ?, website = ?, segment = ?,
		   business_type = ?, company_size = ?, employee_count = ?, annual_revenue = ?,
		   country = ?, state = ?, city = ?, potential = ?, lead_source = ?, status = ?, updated_at = ?
		 WHERE id = ? AND tenant_id = ?`,
		c.Name, model.NormalizeName(c.Name), normalizedCNPJ(c.CNPJ),
		c.LegalName, c.Website, c.Segment, c.BusinessType, c.CompanySize,
		c.EmployeeCount, c.AnnualRevenue, c.Country, c.State, c.City,
		c.Potential, c.LeadSource, string(c.Status), c.UpdatedAt,
		c.ID, c.TenantID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update company %s", c.ID)
	}
	return checkRowsAffected(res, "company", c.ID)
}

func (s *SQLiteStore) GetCompanyByCNPJ(ctx context.Context, tenantID, cnpj string) (*model.Company, error) {
	return s.getCompany(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE tenant_id = ? AND cnpj = ?`,
		tenantID, model.NormalizeCNPJ(cnpj))
}

func (s *SQLiteStore) GetCompanyByName(ctx context.Context, tenantID, name string) (*model.Company, error) {
	return s.getCompany(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE tenant_id = ? AND name_normalized = ?`,
		tenantID, model.NormalizeName(name))
}

func (s *SQLiteStore) getCompany(ctx context.Context, query string, args ...any) (*model.Company, error) {
	c := &model.Company{}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(companyDests(c)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get company")
	}
	return c, nil
}

// Contacts

func (s *SQLiteStore) CreateContact(ctx context.Context, c *model.Contact) error {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, tenant_id, first_name, last_name, email, phone, mobile_phone, whatsapp, position, department,
		   linkedin_url, company_id, company_name, source, status, last_contact_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.FirstName, c.LastName, c.Email, c.Phone, c.MobilePhone, c.Whatsapp,
		c.Position, c.Department, c.LinkedinURL, c.CompanyID, c.CompanyName,
		string(c.Source), string(c.Status), c.LastContactAt, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert contact")
}

func (s *SQLiteStore) UpdateContact(ctx context.Context, c *model.Contact) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET
		   first_name = ?, last_name = ?, email = ?, phone = ?, mobile_phone = ?, whatsapp = ?,
		   position = ?, department = ?, linkedin_url = ?, company_id = ?, company_name = ?,
		   source = ?, status = ?, last_contact_at = ?, updated_at = ?
		 WHERE id = ? AND tenant_id = ?`,
		c.FirstName, c.LastName, c.Email, c.Phone, c.MobilePhone, c.Whatsapp,
		c.Position, c.Department, c.LinkedinURL, c.CompanyID, c.CompanyName,
		string(c.Source), string(c.Status), c.LastContactAt, c.UpdatedAt,
		c.ID, c.TenantID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update contact %s", c.ID)
	}
	return checkRowsAffected(res, "contact", c.ID)
}

func (s *SQLiteStore) GetContactByEmail(ctx context.Context, tenantID, email string) (*model.Contact, error) {
	return s.getContact(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE tenant_id = ? AND lower(email) = lower(?) AND email <> '' LIMIT 1`,
		tenantID, email)
}

func (s *SQLiteStore) GetContactByNameAndCompany(ctx context.Context, tenantID, firstName, lastName, companyID string) (*model.Contact, error) {
	return s.getContact(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE tenant_id = ? AND lower(first_name) = lower(?) AND lower(last_name) = lower(?) AND company_id = ? LIMIT 1`,
		tenantID, firstName, lastName, companyID)
}

func (s *SQLiteStore) GetContactByName(ctx context.Context, tenantID, firstName, lastName string) (*model.Contact, error) {
	return s.getContact(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE tenant_id = ? AND lower(first_name) = lower(?) AND lower(last_name) = lower(?) LIMIT 1`,
		tenantID, firstName, lastName)
}

func (s *SQLiteStore) getContact(ctx context.Context, query string, args ...any) (*model.Contact, error) {
	c := &model.Contact{}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(contactDests(c)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get contact")
	}
	return c, nil
}

// Deals

func (s *SQLiteStore) CreateDeal(ctx context.Context, d *model.Deal) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = model.DealStatusOpen
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deals (id, tenant_id, user_id, title, value, currency, expected_close_date, probability, stage_id, contact_id,
		   company_id, client_problem, opportunity_reason, source_channel, market_segment, product_solution, quantity, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.TenantID, d.UserID, d.Title, d.Value, d.Currency, d.ExpectedCloseDate,
		d.Probability, d.StageID, d.ContactID, d.CompanyID,
		d.ClientProblem, d.OpportunityReason, d.SourceChannel, d.MarketSegment,
		d.ProductSolution, d.Quantity, string(d.Status), d.CreatedAt, d.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert deal")
}

func (s *SQLiteStore) UpdateDeal(ctx context.Context, d *model.Deal) error {
	d.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE deals SET
		   title = ?, value = ?, currency = ?, expected_close_date = ?, probability = ?, stage_id = ?,
		   contact_id = ?, company_id = ?, client_problem = ?, opportunity_reason = ?, source_channel = ?,
		   market_segment = ?, product_solution = ?, quantity = ?, status = ?, updated_at = ?
		 WHERE id = ? AND tenant_id = ?`,
		d.Title, d.Value, d.Currency, d.ExpectedCloseDate, d.Probability, d.StageID,
		d.ContactID, d.CompanyID, d.ClientProblem, d.OpportunityReason, d.SourceChannel,
		d.MarketSegment, d.ProductSolution, d.Quantity, string(d.Status), d.UpdatedAt,
		d.ID, d.TenantID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update deal %s", d.ID)
	}
	return checkRowsAffected(res, "deal", d.ID)
}

func (s *SQLiteStore) GetDeal(ctx context.Context, tenantID, id string) (*model.Deal, error) {
	d := &model.Deal{}
	err := s.db.QueryRowContext(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE id = ? AND tenant_id = ?`,
		id, tenantID,
	).Scan(dealDests(d)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get deal %s", id)
	}
	return d, nil
}

// Pipeline stages

func (s *SQLiteStore) CreatePipelineStage(ctx context.Context, st *model.PipelineStage) error {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	st.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_stages (id, tenant_id, name, stage_order, probability, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, name) DO UPDATE SET
		   stage_order = excluded.stage_order, probability = excluded.probability, is_active = excluded.is_active`,
		st.ID, st.TenantID, st.Name, st.StageOrder, st.Probability, st.IsActive, st.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert pipeline stage")
}

func (s *SQLiteStore) DefaultPipelineStage(ctx context.Context, tenantID string) (*model.PipelineStage, error) {
	var st model.PipelineStage
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, stage_order, probability, is_active, created_at
		 FROM pipeline_stages WHERE tenant_id = ? AND is_active ORDER BY stage_order ASC LIMIT 1`,
		tenantID,
	).Scan(&st.ID, &st.TenantID, &st.Name, &st.StageOrder, &st.Probability, &st.IsActive, &st.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: default pipeline stage")
	}
	return &st, nil
}

// Tenancy

func (s *SQLiteStore) EnsureTenant(ctx context.Context, t *model.Tenant) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Name, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: ensure tenant")
}

func (s *SQLiteStore) EnsureUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, tenant_id, name, email, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		u.ID, u.TenantID, u.Name, u.Email, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: ensure user")
}

// Reconciliation log

func (s *SQLiteStore) LogReconciliation(ctx context.Context, entry *ReconciliationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reconciliation_log (id, tenant_id, conversation_id, outcome, detail, company_id, contact_id, deal_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TenantID, entry.ConversationID, entry.Outcome, entry.Detail,
		entry.CompanyID, entry.ContactID, entry.DealID, entry.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: log reconciliation")
}

// Monitoring

func (s *SQLiteStore) ConversationStatusCounts(ctx context.Context) (map[model.ProcessingStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT processing_status, COUNT(*) FROM conversations GROUP BY processing_status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: conversation status counts")
	}
	defer rows.Close()

	counts := map[model.ProcessingStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		counts[model.ProcessingStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: status counts iterate")
}

func (s *SQLiteStore) CountEntities(ctx context.Context) (*EntityCounts, error) {
	var ec EntityCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM companies),
		   (SELECT COUNT(*) FROM contacts),
		   (SELECT COUNT(*) FROM deals),
		   (SELECT COUNT(*) FROM insights)`,
	).Scan(&ec.Companies, &ec.Contacts, &ec.Deals, &ec.Insights)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count entities")
	}
	return &ec, nil
}

func (s *SQLiteStore) ReconciliationOutcomeCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM reconciliation_log WHERE created_at >= ? GROUP BY outcome`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: reconciliation outcome counts")
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome count")
		}
		counts[outcome] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: outcome counts iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
