package rbac

import "sort"

// Capability names a single permitted action family. Capabilities are
// hierarchical in name only ("inventory.read"); authorization is exact
// set membership, no wildcard expansion.
type Capability string

// All capabilities the API surface checks against.
const (
	CapabilityInventoryRead  Capability = "inventory.read"
	CapabilityInventoryWrite Capability = "inventory.write"
	CapabilityCustomersRead  Capability = "customers.read"
	CapabilityCustomersWrite Capability = "customers.write"
	CapabilityInvoicesRead   Capability = "invoices.read"
	CapabilityInvoicesWrite  Capability = "invoices.write"
	CapabilityLedgerRead     Capability = "ledger.read"
	CapabilityLedgerWrite    Capability = "ledger.write"
	CapabilityAnalyticsRead  Capability = "analytics.read"
	CapabilityAdminBackups   Capability = "admin.backups"
	CapabilityAdminTasks     Capability = "admin.tasks"
)

// AllCapabilities returns every defined capability. The admin role is built
// from this list so new capabilities are never silently withheld from it.
func AllCapabilities() []Capability {
	return []Capability{
		CapabilityInventoryRead,
		CapabilityInventoryWrite,
		CapabilityCustomersRead,
		CapabilityCustomersWrite,
		CapabilityInvoicesRead,
		CapabilityInvoicesWrite,
		CapabilityLedgerRead,
		CapabilityLedgerWrite,
		CapabilityAnalyticsRead,
		CapabilityAdminBackups,
		CapabilityAdminTasks,
	}
}

// Role is a named, immutable set of capabilities.
type Role struct {
	name         string
	capabilities map[Capability]struct{}
}

// NewRole creates a Role granting exactly the given capabilities.
func NewRole(name string, capabilities ...Capability) Role {
	set := make(map[Capability]struct{}, len(capabilities))
	for _, c := range capabilities {
		set[c] = struct{}{}
	}
	return Role{name: name, capabilities: set}
}

// Name returns the role's name.
func (r Role) Name() string {
	return r.name
}

// Can reports whether the role grants the capability.
func (r Role) Can(c Capability) bool {
	_, ok := r.capabilities[c]
	return ok
}

// Capabilities returns the role's capabilities sorted by name, for
// introspection and tests.
func (r Role) Capabilities() []Capability {
	out := make([]Capability, 0, len(r.capabilities))
	for c := range r.capabilities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
