package domain

// Principal is one monitored account, team, or channel: the unit of
// enumeration and fetch. Principals are produced fresh by each run's
// enumeration and never mutated by the sync pipeline.
type Principal struct {
	ID           string
	PrimaryEmail string // empty for channel-only principals
	DisplayName  string
	Enabled      bool
}

// ResolvedIdentity is the output of an identity lookup. An empty
// EmployeeID is a valid terminal outcome, not an error: the message is
// still persisted, just without an internal identity link.
type ResolvedIdentity struct {
	EmployeeID string
}

// Resolved reports whether the lookup found an internal employee.
func (r ResolvedIdentity) Resolved() bool { return r.EmployeeID != "" }

// Employee is an internal identity record maintained by the identity
// reconciliation phase and read by the resolver.
type Employee struct {
	ID          string
	Email       string
	DisplayName string
	Active      bool
}
