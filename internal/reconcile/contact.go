package reconcile

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/salesvox/conversa/internal/model"
)

// resolveContact finds or creates the contact anchored by the extracted first
// name. Lookup cascade: exact email within the tenant, then name within the
// resolved company, then name alone. Existing rows get a fill-gaps-only
// merge, and lastContactAt is refreshed whenever anything changed.
func (e *Engine) resolveContact(ctx context.Context, tenantID string, ec *model.ExtractedContact, company *model.Company) (*model.Contact, error) {
	if ec == nil {
		return nil, nil
	}
	firstName := strOrEmpty(ec.FirstName)
	if firstName == "" {
		return nil, nil
	}
	lastName := strOrEmpty(ec.LastName)

	existing, err := e.lookupContact(ctx, tenantID, ec, firstName, lastName, company)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		changed := mergeContact(existing, ec)
		if company != nil {
			if existing.CompanyID == nil {
				existing.CompanyID = &company.ID
				changed = true
			}
			if existing.CompanyName == "" {
				existing.CompanyName = company.Name
				changed = true
			}
		}
		if changed {
			now := e.now()
			existing.LastContactAt = &now
			if err := e.store.UpdateContact(ctx, existing); err != nil {
				return nil, eris.Wrap(err, "reconcile: update contact")
			}
			zap.L().Debug("reconcile: filled contact gaps",
				zap.String("contact_id", existing.ID),
				zap.String("first_name", existing.FirstName),
			)
		}
		return existing, nil
	}

	now := e.now()
	contact := &model.Contact{
		TenantID:      tenantID,
		FirstName:     firstName,
		LastName:      lastName,
		Email:         strOrEmpty(ec.Email),
		Phone:         strOrEmpty(ec.Phone),
		MobilePhone:   strOrEmpty(ec.MobilePhone),
		Whatsapp:      strOrEmpty(ec.Whatsapp),
		Position:      strOrEmpty(ec.Position),
		Department:    strOrEmpty(ec.Department),
		LinkedinURL:   strOrEmpty(ec.LinkedinURL),
		Source:        model.SourceConversation,
		Status:        model.StatusLead,
		LastContactAt: &now,
	}
	if company != nil {
		contact.CompanyID = &company.ID
		contact.CompanyName = company.Name
	}

	if err := e.store.CreateContact(ctx, contact); err != nil {
		return nil, eris.Wrap(err, "reconcile: create contact")
	}
	zap.L().Info("reconcile: created contact",
		zap.String("contact_id", contact.ID),
		zap.String("first_name", contact.FirstName),
	)
	return contact, nil
}

func (e *Engine) lookupContact(ctx context.Context, tenantID string, ec *model.ExtractedContact, firstName, lastName string, company *model.Company) (*model.Contact, error) {
	if email := strOrEmpty(ec.Email); email != "" {
		c, err := e.store.GetContactByEmail(ctx, tenantID, email)
		if err != nil {
			return nil, eris.Wrap(err, "reconcile: lookup contact by email")
		}
		if c != nil {
			return c, nil
		}
	}
	if company != nil {
		c, err := e.store.GetContactByNameAndCompany(ctx, tenantID, firstName, lastName, company.ID)
		if err != nil {
			return nil, eris.Wrap(err, "reconcile: lookup contact by name and company")
		}
		if c != nil {
			return c, nil
		}
	}
	c, err := e.store.GetContactByName(ctx, tenantID, firstName, lastName)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: lookup contact by name")
	}
	return c, nil
}

// mergeContact applies the fill-gaps-only policy across contact fields and
// reports whether any field changed. Company linkage is handled by the caller.
func mergeContact(c *model.Contact, ec *model.ExtractedContact) bool {
	changed := false
	if fillString(&c.Email, ec.Email) {
		changed = true
	}
	if fillString(&c.Phone, ec.Phone) {
		changed = true
	}
	if fillString(&c.MobilePhone, ec.MobilePhone) {
		changed = true
	}
	if fillString(&c.Whatsapp, ec.Whatsapp) {
		changed = true
	}
	if fillString(&c.Position, ec.Position) {
		changed = true
	}
	if fillString(&c.Department, ec.Department) {
		changed = true
	}
	if fillString(&c.LinkedinURL, ec.LinkedinURL) {
		changed = true
	}
	return changed
}
