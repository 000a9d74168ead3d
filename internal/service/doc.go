// Package service contains the application-specific use cases and business
// logic. It orchestrates interactions between domain objects and repositories
// (defined in internal/store) to fulfill application features.
//
// Each service covers one area of the shop: inventory, customers, invoicing,
// accounting, analytics and KPIs, backups, and authentication. Services
// receive their dependencies through constructor injection, apply
// transactional boundaries when an operation spans multiple repositories
// (invoice completion touches invoices, products, and the ledger in one
// transaction), and emit data-change events after a successful write so that
// cache invalidation can react without the service knowing about it.
//
// Error handling: expected conditions surface as sentinel errors that callers
// check with errors.Is, and the API layer maps them to HTTP status codes.
// Unexpected failures are wrapped with operation context.
//
// The service layer depends on domain entities and repository interfaces,
// never on specific infrastructure implementations.
package service
