// Package domain defines the business entities of the shop: products,
// customers, invoices and their line items, ledger entries, users, and
// backup records. Entities validate themselves and enforce their own status
// transitions; nothing here touches storage or transport.
package domain
