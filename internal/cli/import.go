package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/eshaffer321/ledger-reconcile/internal/adapters/importer"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// FileImport is the outcome of importing one file
type FileImport struct {
	Path     string
	Kind     string
	Imported int
	Errors   []importer.RowError
}

// ImportSummary is the outcome of an import command
type ImportSummary struct {
	Files    []FileImport
	Imported int
	Rejected int
}

type parseFunc func(f *os.File, source string) (*importer.ImportResult, error)

func csvParser(columns importer.ColumnMap, origin matcher.Origin, contextOnly bool) parseFunc {
	return func(f *os.File, source string) (*importer.ImportResult, error) {
		return importer.ParseCSV(f, columns, origin, contextOnly, source)
	}
}

func amazonParser(f *os.File, source string) (*importer.ImportResult, error) {
	return importer.ParseAmazonOrders(f, source)
}

// RunImport parses every file named in flags and saves the valid rows.
// Rows that fail to parse are reported, not fatal; an unreadable file is.
func RunImport(repo storage.RecordRepository, flags *ImportFlags) (*ImportSummary, error) {
	type job struct {
		kind  string
		paths []string
		parse parseFunc
	}
	jobs := []job{
		{"amazon", flags.Amazon, amazonParser},
		{"bank", flags.Bank, csvParser(importer.BankStatementColumns, matcher.OriginBankStatement, false)},
		{"paypal", flags.PayPal, csvParser(importer.PayPalColumns, matcher.OriginPayPal, true)},
		{"card", flags.Card, csvParser(importer.CardStatementColumns, matcher.OriginCardStatement, true)},
	}

	summary := &ImportSummary{}
	for _, j := range jobs {
		for _, path := range j.paths {
			file, err := importFile(repo, path, j.parse)
			if err != nil {
				return summary, fmt.Errorf("%s import of %s: %w", j.kind, path, err)
			}
			file.Kind = j.kind
			summary.Files = append(summary.Files, *file)
			summary.Imported += file.Imported
			summary.Rejected += len(file.Errors)
		}
	}
	return summary, nil
}

func importFile(repo storage.RecordRepository, path string, parse parseFunc) (*FileImport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	result, err := parse(f, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if len(result.Records) > 0 {
		if err := repo.SaveRecords(result.Records); err != nil {
			return nil, fmt.Errorf("failed to save records: %w", err)
		}
	}

	return &FileImport{
		Path:     path,
		Imported: len(result.Records),
		Errors:   result.Errors,
	}, nil
}
