package rbac

// Role names known to the system. Stored on users and carried in access
// tokens, so renaming one is a data migration.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleClerk      = "clerk"
	RoleAccountant = "accountant"
	RoleAuditor    = "auditor"
)

// DefaultRoles returns the built-in role table.
//
//   - admin: every capability, including operational surfaces.
//   - manager: full control of the shop floor plus analytics, no
//     operational surfaces.
//   - clerk: day-to-day sales work: look up stock, manage customers,
//     write invoices.
//   - accountant: the ledger plus the read side of everything it is
//     derived from.
//   - auditor: read-only access across the business domain.
func DefaultRoles() []Role {
	return []Role{
		NewRole(RoleAdmin, AllCapabilities()...),
		NewRole(RoleManager,
			CapabilityInventoryRead,
			CapabilityInventoryWrite,
			CapabilityCustomersRead,
			CapabilityCustomersWrite,
			CapabilityInvoicesRead,
			CapabilityInvoicesWrite,
			CapabilityLedgerRead,
			CapabilityAnalyticsRead,
		),
		NewRole(RoleClerk,
			CapabilityInventoryRead,
			CapabilityCustomersRead,
			CapabilityCustomersWrite,
			CapabilityInvoicesRead,
			CapabilityInvoicesWrite,
		),
		NewRole(RoleAccountant,
			CapabilityLedgerRead,
			CapabilityLedgerWrite,
			CapabilityInvoicesRead,
			CapabilityCustomersRead,
			CapabilityAnalyticsRead,
		),
		NewRole(RoleAuditor,
			CapabilityInventoryRead,
			CapabilityCustomersRead,
			CapabilityInvoicesRead,
			CapabilityLedgerRead,
			CapabilityAnalyticsRead,
		),
	}
}
