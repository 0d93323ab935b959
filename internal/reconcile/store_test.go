package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/salesvox/conversa/internal/model"
	"github.com/salesvox/conversa/internal/store"
)

// memStore is an in-memory Store for engine tests. Lookups follow the same
// identity rules as the SQL backends: CNPJ digits and accent-insensitive
// lowercase names.
type memStore struct {
	conversations map[string]*model.Conversation
	companies     map[string]*model.Company
	contacts      map[string]*model.Contact
	deals         map[string]*model.Deal
	stages        map[string]*model.PipelineStage
	logs          []*store.ReconciliationLog

	updates map[string]int
	nextID  int
	failOn  map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		conversations: map[string]*model.Conversation{},
		companies:     map[string]*model.Company{},
		contacts:      map[string]*model.Contact{},
		deals:         map[string]*model.Deal{},
		stages:        map[string]*model.PipelineStage{},
		updates:       map[string]int{},
		failOn:        map[string]error{},
	}
}

func (m *memStore) fail(method string) error {
	if err := m.failOn[method]; err != nil {
		return eris.Wrap(err, method)
	}
	return nil
}

func (m *memStore) id() string {
	m.nextID++
	return fmt.Sprintf("id-%d", m.nextID)
}

func (m *memStore) CreateConversation(_ context.Context, c *model.Conversation) error {
	if c.ID == "" {
		c.ID = m.id()
	}
	cc := *c
	m.conversations[c.TenantID+"/"+c.ID] = &cc
	return nil
}

func (m *memStore) GetConversation(_ context.Context, tenantID, id string) (*model.Conversation, error) {
	if err := m.fail("GetConversation"); err != nil {
		return nil, err
	}
	c, ok := m.conversations[tenantID+"/"+id]
	if !ok {
		return nil, nil
	}
	cc := *c
	return &cc, nil
}

func (m *memStore) UpdateConversationStatus(_ context.Context, tenantID, id string, status model.ProcessingStatus, errorReason *string) error {
	c, ok := m.conversations[tenantID+"/"+id]
	if !ok {
		return eris.New("conversation not found")
	}
	c.ProcessingStatus = status
	c.ErrorReason = errorReason
	return nil
}

func (m *memStore) SetConversationDeal(_ context.Context, tenantID, id, dealID string) (bool, error) {
	c, ok := m.conversations[tenantID+"/"+id]
	if !ok || c.DealID != nil {
		return false, nil
	}
	c.DealID = &dealID
	return true, nil
}

func (m *memStore) UpsertInsight(context.Context, *model.Insight) error { return nil }

func (m *memStore) GetInsight(context.Context, string) (*model.Insight, error) { return nil, nil }

func (m *memStore) CreateCompany(_ context.Context, c *model.Company) error {
	if err := m.fail("CreateCompany"); err != nil {
		return err
	}
	c.ID = m.id()
	cc := *c
	m.companies[c.ID] = &cc
	return nil
}

func (m *memStore) UpdateCompany(_ context.Context, c *model.Company) error {
	m.updates["company"]++
	cc := *c
	m.companies[c.ID] = &cc
	return nil
}

func (m *memStore) GetCompanyByCNPJ(_ context.Context, tenantID, cnpj string) (*model.Company, error) {
	want := model.NormalizeCNPJ(cnpj)
	for _, c := range m.companies {
		if c.TenantID == tenantID && c.CNPJ != nil && model.NormalizeCNPJ(*c.CNPJ) == want {
			cc := *c
			return &cc, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetCompanyByName(_ context.Context, tenantID, name string) (*model.Company, error) {
	want := model.NormalizeName(name)
	for _, c := range m.companies {
		if c.TenantID == tenantID && model.NormalizeName(c.Name) == want {
			cc := *c
			return &cc, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateContact(_ context.Context, c *model.Contact) error {
	c.ID = m.id()
	cc := *c
	m.contacts[c.ID] = &cc
	return nil
}

func (m *memStore) UpdateContact(_ context.Context, c *model.Contact) error {
	m.updates["contact"]++
	cc := *c
	m.contacts[c.ID] = &cc
	return nil
}

func (m *memStore) GetContactByEmail(_ context.Context, tenantID, email string) (*model.Contact, error) {
	for _, c := range m.contacts {
		if c.TenantID == tenantID && strings.EqualFold(c.Email, email) {
			cc := *c
			return &cc, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetContactByNameAndCompany(_ context.Context, tenantID, firstName, lastName, companyID string) (*model.Contact, error) {
	for _, c := range m.contacts {
		if c.TenantID == tenantID && c.CompanyID != nil && *c.CompanyID == companyID &&
			strings.EqualFold(c.FirstName, firstName) && strings.EqualFold(c.LastName, lastName) {
			cc := *c
			return &cc, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetContactByName(_ context.Context, tenantID, firstName, lastName string) (*model.Contact, error) {
	for _, c := range m.contacts {
		if c.TenantID == tenantID && strings.EqualFold(c.FirstName, firstName) && strings.EqualFold(c.LastName, lastName) {
			cc := *c
			return &cc, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateDeal(_ context.Context, d *model.Deal) error {
	if err := m.fail("CreateDeal"); err != nil {
		return err
	}
	d.ID = m.id()
	dd := *d
	m.deals[d.ID] = &dd
	return nil
}

func (m *memStore) UpdateDeal(_ context.Context, d *model.Deal) error {
	m.updates["deal"]++
	dd := *d
	m.deals[d.ID] = &dd
	return nil
}

func (m *memStore) GetDeal(_ context.Context, tenantID, id string) (*model.Deal, error) {
	d, ok := m.deals[id]
	if !ok || d.TenantID != tenantID {
		return nil, nil
	}
	dd := *d
	return &dd, nil
}

func (m *memStore) CreatePipelineStage(_ context.Context, s *model.PipelineStage) error {
	if s.ID == "" {
		s.ID = m.id()
	}
	ss := *s
	m.stages[s.ID] = &ss
	return nil
}

func (m *memStore) DefaultPipelineStage(_ context.Context, tenantID string) (*model.PipelineStage, error) {
	var all []*model.PipelineStage
	for _, s := range m.stages {
		if s.TenantID == tenantID && s.IsActive {
			all = append(all, s)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StageOrder < all[j].StageOrder })
	ss := *all[0]
	return &ss, nil
}

func (m *memStore) EnsureTenant(context.Context, *model.Tenant) error { return nil }

func (m *memStore) EnsureUser(context.Context, *model.User) error { return nil }

func (m *memStore) LogReconciliation(_ context.Context, entry *store.ReconciliationLog) error {
	m.logs = append(m.logs, entry)
	return nil
}

func (m *memStore) ConversationStatusCounts(context.Context) (map[model.ProcessingStatus]int, error) {
	counts := map[model.ProcessingStatus]int{}
	for _, c := range m.conversations {
		counts[c.ProcessingStatus]++
	}
	return counts, nil
}

func (m *memStore) CountEntities(context.Context) (*store.EntityCounts, error) {
	return &store.EntityCounts{
		Companies: len(m.companies),
		Contacts:  len(m.contacts),
		Deals:     len(m.deals),
	}, nil
}

func (m *memStore) ReconciliationOutcomeCounts(context.Context, time.Time) (map[string]int, error) {
	counts := map[string]int{}
	for _, l := range m.logs {
		counts[l.Outcome]++
	}
	return counts, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }

func (m *memStore) Close() error { return nil }
