package model

// CallbackPayload is the JSON body the workflow engine posts back after
// analyzing a conversation. Field names follow the engine's wire contract.
type CallbackPayload struct {
	ConversationID string            `json:"conversation_id" validate:"required"`
	TenantID       string            `json:"tenant_id" validate:"required"`
	Status         ProcessingStatus  `json:"status" validate:"required,oneof=PROCESSING COMPLETED FAILED"`
	Insights       *CallbackInsights `json:"insights,omitempty" validate:"omitempty"`
	ErrorReason    string            `json:"error_reason,omitempty"`
	Timestamp      int64             `json:"timestamp,omitempty"`
}

// CallbackInsights carries the analysis lists plus the loosely structured
// extraction evidence.
type CallbackInsights struct {
	Interests       []string       `json:"interests,omitempty"`
	Objections      []string       `json:"objections,omitempty"`
	Commitments     []string       `json:"commitments,omitempty"`
	ProgressSignals []string       `json:"progressSignals,omitempty"`
	RiskSignals     []string       `json:"riskSignals,omitempty"`
	NextActions     []string       `json:"nextActions,omitempty"`
	Summary         string         `json:"summary,omitempty"`
	ExtractedData   *ExtractedData `json:"extractedData,omitempty" validate:"omitempty"`
}

// ExtractedData is the engine's evidence about CRM entities mentioned in the
// conversation. Every leaf is optional; the reconciliation engine degrades to
// a skip when required anchors are missing.
type ExtractedData struct {
	Company       *ExtractedCompany `json:"company,omitempty"`
	Contact       *ExtractedContact `json:"contact,omitempty"`
	Deal          *ExtractedDeal    `json:"deal,omitempty"`
	Participants  []string          `json:"participants,omitempty"`
	Confidence    float64           `json:"confidence" validate:"gte=0,lte=1"`
	MissingFields []string          `json:"missingFields,omitempty"`
}

// ExtractedCompany is a partial company record extracted from a conversation.
type ExtractedCompany struct {
	Name          *string  `json:"name,omitempty"`
	CNPJ          *string  `json:"cnpj,omitempty"`
	LegalName     *string  `json:"legalName,omitempty"`
	Website       *string  `json:"website,omitempty"`
	Segment       *string  `json:"segment,omitempty"`
	BusinessType  *string  `json:"businessType,omitempty"`
	CompanySize   *string  `json:"companySize,omitempty"`
	EmployeeCount *int     `json:"employeeCount,omitempty"`
	AnnualRevenue *float64 `json:"annualRevenue,omitempty"`
	Country       *string  `json:"country,omitempty"`
	State         *string  `json:"state,omitempty"`
	City          *string  `json:"city,omitempty"`
	Potential     *string  `json:"potential,omitempty"`
	LeadSource    *string  `json:"leadSource,omitempty"`
}

// ExtractedContact is a partial contact record extracted from a conversation.
type ExtractedContact struct {
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `json:"phone,omitempty"`
	MobilePhone *string `json:"mobilePhone,omitempty"`
	Whatsapp    *string `json:"whatsapp,omitempty"`
	Position    *string `json:"position,omitempty"`
	Department  *string `json:"department,omitempty"`
	LinkedinURL *string `json:"linkedinUrl,omitempty"`
}

// ExtractedDeal is a partial deal record extracted from a conversation.
type ExtractedDeal struct {
	Title             *string  `json:"title,omitempty"`
	Value             *float64 `json:"value,omitempty"`
	Currency          *string  `json:"currency,omitempty"`
	ExpectedCloseDate *string  `json:"expectedCloseDate,omitempty"`
	ClientProblem     *string  `json:"clientProblem,omitempty"`
	OpportunityReason *string  `json:"opportunityReason,omitempty"`
	SourceChannel     *string  `json:"sourceChannel,omitempty"`
	MarketSegment     *string  `json:"marketSegment,omitempty"`
	ProductSolution   *string  `json:"productSolution,omitempty"`
	Quantity          *int     `json:"quantity,omitempty"`
}
