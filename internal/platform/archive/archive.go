// Package archive writes backup archives to the local filesystem. An archive
// is a gzip-compressed JSON-lines file: one envelope per row, tagged with the
// table it came from, so a restore tool can replay rows without guessing at
// the layout.
//
// The package only reads through the store interfaces and never opens its own
// database connection; the backup service decides when an archive is due and
// records the outcome.
package archive

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/store"
)

const (
	// archiveSuffix marks files this package owns; PruneFiles never touches
	// anything else in the backup directory.
	archiveSuffix = ".jsonl.gz"

	// archiveStampLayout names files by UTC creation time.
	archiveStampLayout = "20060102T150405Z"

	// exportBatchSize bounds how many rows a single store call pulls in.
	exportBatchSize = 500
)

// Table names used in archive envelopes. They match the migration schema so
// a restore can address tables directly.
const (
	tableProducts      = "products"
	tableCustomers     = "customers"
	tableInvoices      = "invoices"
	tableLedgerEntries = "ledger_entries"
)

// ProductSource is the slice of the product store the archiver reads.
type ProductSource interface {
	List(ctx context.Context, filter store.ProductFilter) ([]*domain.Product, error)
}

// CustomerSource is the slice of the customer store the archiver reads.
type CustomerSource interface {
	List(ctx context.Context, limit, offset int) ([]*domain.Customer, error)
}

// InvoiceSource is the slice of the invoice store the archiver reads.
// Invoices are exported with their line items embedded, so invoice_items
// does not appear as a separate table in the archive.
type InvoiceSource interface {
	List(ctx context.Context, filter store.InvoiceFilter) ([]*domain.Invoice, error)
}

// LedgerSource is the slice of the ledger store the archiver reads.
type LedgerSource interface {
	List(ctx context.Context, filter store.LedgerFilter) ([]*domain.LedgerEntry, error)
}

// envelope is one line of an archive file.
type envelope struct {
	Table string `json:"table"`
	Row   any    `json:"row"`
}

// FileArchiver exports scope-selected tables into timestamped archive files
// under a single backup directory.
type FileArchiver struct {
	dir       string
	products  ProductSource
	customers CustomerSource
	invoices  InvoiceSource
	ledger    LedgerSource
	logger    *slog.Logger
	timeFunc  func() time.Time
}

// NewFileArchiver creates a FileArchiver rooted at dir. The directory is
// created on first use. If log is nil, the process default logger is used.
func NewFileArchiver(
	dir string,
	products ProductSource,
	customers CustomerSource,
	invoices InvoiceSource,
	ledger LedgerSource,
	log *slog.Logger,
) *FileArchiver {
	if dir == "" {
		panic("backup directory cannot be empty")
	}
	if products == nil {
		panic("product source cannot be nil")
	}
	if customers == nil {
		panic("customer source cannot be nil")
	}
	if invoices == nil {
		panic("invoice source cannot be nil")
	}
	if ledger == nil {
		panic("ledger source cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &FileArchiver{
		dir:       dir,
		products:  products,
		customers: customers,
		invoices:  invoices,
		ledger:    ledger,
		logger:    log.With("component", "file_archiver"),
		timeFunc:  time.Now,
	}
}

// Archive exports every table the scope covers into a new archive file and
// returns its path, size in bytes, and the hex sha256 of the compressed
// bytes. The file appears under its final name only once it is fully
// written; a failed run leaves nothing behind.
func (a *FileArchiver) Archive(ctx context.Context, scope domain.BackupScope) (string, int64, string, error) {
	tables, err := tablesFor(scope)
	if err != nil {
		return "", 0, "", err
	}

	if err := os.MkdirAll(a.dir, 0o750); err != nil {
		return "", 0, "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	stamp := a.timeFunc().UTC().Format(archiveStampLayout)
	finalPath := filepath.Join(a.dir, fmt.Sprintf("%s-%s%s", scope, stamp, archiveSuffix))
	tmpPath := finalPath + ".tmp"

	rows, checksum, err := a.writeArchive(ctx, tmpPath, tables)
	if err != nil {
		os.Remove(tmpPath)
		return "", 0, "", err
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return "", 0, "", fmt.Errorf("failed to stat archive: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", 0, "", fmt.Errorf("failed to finalize archive: %w", err)
	}

	a.logger.InfoContext(ctx, "archive written",
		"scope", scope,
		"location", finalPath,
		"rows", rows,
		"size_bytes", info.Size())
	return finalPath, info.Size(), checksum, nil
}

// PruneFiles removes archive files whose modification time is before
// olderThan and returns how many were removed. It stops at the first
// filesystem error, reporting the count removed so far.
func (a *FileArchiver) PruneFiles(ctx context.Context, olderThan time.Time) (int, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read backup directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), archiveSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return removed, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		if !info.ModTime().Before(olderThan) {
			continue
		}
		if err := os.Remove(filepath.Join(a.dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
		a.logger.DebugContext(ctx, "archive pruned", "file", entry.Name())
		removed++
	}
	return removed, nil
}

// tablesFor maps a backup scope to the tables it exports, in write order.
func tablesFor(scope domain.BackupScope) ([]string, error) {
	switch scope {
	case domain.BackupScopeFull:
		return []string{tableProducts, tableCustomers, tableInvoices, tableLedgerEntries}, nil
	case domain.BackupScopeLedger:
		return []string{tableInvoices, tableLedgerEntries}, nil
	case domain.BackupScopeInventory:
		return []string{tableProducts}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidBackupScope, scope)
	}
}

// writeArchive streams the given tables into a gzip JSON-lines file at path,
// hashing the compressed bytes as they are written. It returns the number of
// rows exported and the hex checksum.
func (a *FileArchiver) writeArchive(ctx context.Context, path string, tables []string) (int, string, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	gz := gzip.NewWriter(io.MultiWriter(f, hasher))
	enc := json.NewEncoder(gz)

	total := 0
	for _, table := range tables {
		n, err := a.exportTable(ctx, enc, table)
		if err != nil {
			return 0, "", fmt.Errorf("failed to export %s: %w", table, err)
		}
		total += n
	}

	if err := gz.Close(); err != nil {
		return 0, "", fmt.Errorf("failed to flush archive: %w", err)
	}
	// Sync before rename so a crash cannot leave a finalized archive with
	// missing tail blocks.
	if err := f.Sync(); err != nil {
		return 0, "", fmt.Errorf("failed to sync archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, "", fmt.Errorf("failed to close archive: %w", err)
	}
	return total, hex.EncodeToString(hasher.Sum(nil)), nil
}

func (a *FileArchiver) exportTable(ctx context.Context, enc *json.Encoder, table string) (int, error) {
	switch table {
	case tableProducts:
		return exportRows(ctx, enc, table, func(ctx context.Context, limit, offset int) ([]*domain.Product, error) {
			return a.products.List(ctx, store.ProductFilter{Limit: limit, Offset: offset})
		})
	case tableCustomers:
		return exportRows(ctx, enc, table, a.customers.List)
	case tableInvoices:
		return exportRows(ctx, enc, table, func(ctx context.Context, limit, offset int) ([]*domain.Invoice, error) {
			return a.invoices.List(ctx, store.InvoiceFilter{Limit: limit, Offset: offset})
		})
	case tableLedgerEntries:
		return exportRows(ctx, enc, table, func(ctx context.Context, limit, offset int) ([]*domain.LedgerEntry, error) {
			return a.ledger.List(ctx, store.LedgerFilter{Limit: limit, Offset: offset})
		})
	default:
		return 0, fmt.Errorf("unknown archive table %q", table)
	}
}

// exportRows pages through one table and writes an envelope line per row.
func exportRows[T any](
	ctx context.Context,
	enc *json.Encoder,
	table string,
	page func(ctx context.Context, limit, offset int) ([]T, error),
) (int, error) {
	total := 0
	for offset := 0; ; offset += exportBatchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		rows, err := page(ctx, exportBatchSize, offset)
		if err != nil {
			return total, err
		}
		for _, row := range rows {
			if err := enc.Encode(envelope{Table: table, Row: row}); err != nil {
				return total, err
			}
			total++
		}
		if len(rows) < exportBatchSize {
			return total, nil
		}
	}
}
