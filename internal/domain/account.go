package domain

// Account is the organization-membership record a payment plan hangs off.
type Account struct {
	ID             string
	UserID         string
	OrganizationID string
	DisplayName    string
	Email          string
	PaymentPlanID  string
}

// NeedsLink reports whether the account does not yet point at planID.
func (a *Account) NeedsLink(planID string) bool {
	return a.PaymentPlanID == "" || a.PaymentPlanID != planID
}
