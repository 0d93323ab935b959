package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/salesvox/conversa/internal/model"
)

// resolveCompany finds or creates the company anchored by the extracted name.
// Lookup prefers CNPJ, the authoritative identity, then falls back to an
// exact normalized-name match within the tenant. Existing rows get a
// fill-gaps-only merge: a populated field is never overwritten.
func (e *Engine) resolveCompany(ctx context.Context, tenantID string, ec *model.ExtractedCompany) (*model.Company, error) {
	if ec == nil {
		return nil, nil
	}
	name := strOrEmpty(ec.Name)
	if name == "" {
		return nil, nil
	}

	var existing *model.Company
	var err error
	if cnpj := strOrEmpty(ec.CNPJ); cnpj != "" {
		existing, err = e.store.GetCompanyByCNPJ(ctx, tenantID, cnpj)
		if err != nil {
			return nil, eris.Wrap(err, "reconcile: lookup company by cnpj")
		}
	}
	if existing == nil {
		existing, err = e.store.GetCompanyByName(ctx, tenantID, name)
		if err != nil {
			return nil, eris.Wrap(err, "reconcile: lookup company by name")
		}
	}

	if existing != nil {
		if mergeCompany(existing, ec) {
			if err := e.store.UpdateCompany(ctx, existing); err != nil {
				return nil, eris.Wrap(err, "reconcile: update company")
			}
			zap.L().Debug("reconcile: filled company gaps",
				zap.String("company_id", existing.ID),
				zap.String("name", existing.Name),
			)
		}
		return existing, nil
	}

	company := &model.Company{
		TenantID:      tenantID,
		Name:          name,
		CNPJ:          ec.CNPJ,
		LegalName:     strOrEmpty(ec.LegalName),
		Website:       strOrEmpty(ec.Website),
		Segment:       strOrEmpty(ec.Segment),
		BusinessType:  strOrEmpty(ec.BusinessType),
		CompanySize:   strOrEmpty(ec.CompanySize),
		EmployeeCount: ec.EmployeeCount,
		AnnualRevenue: ec.AnnualRevenue,
		Country:       strOrEmpty(ec.Country),
		State:         strOrEmpty(ec.State),
		City:          strOrEmpty(ec.City),
		Potential:     strOrEmpty(ec.Potential),
		LeadSource:    strOrEmpty(ec.LeadSource),
		Status:        model.StatusLead,
	}
	if company.Country == "" {
		company.Country = e.cfg.DefaultCountry
	}

	if err := e.store.CreateCompany(ctx, company); err != nil {
		return nil, eris.Wrap(err, "reconcile: create company")
	}
	zap.L().Info("reconcile: created company",
		zap.String("company_id", company.ID),
		zap.String("name", company.Name),
	)
	return company, nil
}

// mergeCompany applies the fill-gaps-only policy and reports whether any
// field changed.
func mergeCompany(c *model.Company, ec *model.ExtractedCompany) bool {
	changed := false
	if fillOptString(&c.CNPJ, ec.CNPJ) {
		changed = true
	}
	if fillString(&c.LegalName, ec.LegalName) {
		changed = true
	}
	if fillString(&c.Website, ec.Website) {
		changed = true
	}
	if fillString(&c.Segment, ec.Segment) {
		changed = true
	}
	if fillString(&c.BusinessType, ec.BusinessType) {
		changed = true
	}
	if fillString(&c.CompanySize, ec.CompanySize) {
		changed = true
	}
	if fillInt(&c.EmployeeCount, ec.EmployeeCount) {
		changed = true
	}
	if fillFloat(&c.AnnualRevenue, ec.AnnualRevenue) {
		changed = true
	}
	if fillString(&c.Country, ec.Country) {
		changed = true
	}
	if fillString(&c.State, ec.State) {
		changed = true
	}
	if fillString(&c.City, ec.City) {
		changed = true
	}
	if fillString(&c.Potential, ec.Potential) {
		changed = true
	}
	if fillString(&c.LeadSource, ec.LeadSource) {
		changed = true
	}
	return changed
}
