package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// rowNamespace scopes derived record ids
var rowNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ledger-reconcile/import-row"))

// ColumnMap names the CSV header for each record field. Header matching is
// case-insensitive; an empty name means the file has no such column.
type ColumnMap struct {
	ID          string
	Date        string
	Amount      string
	Description string
	Beneficiary string
}

// Presets for common exports
var (
	BankStatementColumns = ColumnMap{
		ID:          "Transaction ID",
		Date:        "Date",
		Amount:      "Amount",
		Description: "Description",
		Beneficiary: "Payee",
	}
	PayPalColumns = ColumnMap{
		ID:          "Transaction ID",
		Date:        "Date",
		Amount:      "Gross",
		Description: "Type",
		Beneficiary: "Name",
	}
	CardStatementColumns = ColumnMap{
		Date:        "Transaction Date",
		Amount:      "Amount",
		Description: "Description",
	}
)

type columnIndex struct {
	id, date, amount, description, beneficiary int
}

func (m ColumnMap) resolve(header []string) (columnIndex, error) {
	find := func(name string) int {
		if name == "" {
			return -1
		}
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
		return -1
	}

	idx := columnIndex{
		id:          find(m.ID),
		date:        find(m.Date),
		amount:      find(m.Amount),
		description: find(m.Description),
		beneficiary: find(m.Beneficiary),
	}
	if idx.date < 0 {
		return idx, fmt.Errorf("missing date column %q", m.Date)
	}
	if idx.amount < 0 {
		return idx, fmt.Errorf("missing amount column %q", m.Amount)
	}
	return idx, nil
}

// ParseCSV reads a header-mapped CSV export. Rows without an id column value
// get an id derived from the row content and how often that content already
// appeared in the file, so importing the same file twice yields the same
// records and identical rows stay distinct.
func ParseCSV(r io.Reader, columns ColumnMap, origin matcher.Origin, contextOnly bool, source string) (*ImportResult, error) {
	if !origin.Valid() {
		return nil, fmt.Errorf("unknown origin %q", origin)
	}

	reader := csv.NewReader(skipBOM(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx, err := columns.resolve(header)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	seen := make(map[string]int)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.Errors = append(result.Errors, RowError{Line: parseErr.Line, Err: err})
				continue
			}
			return nil, err
		}
		line, _ := reader.FieldPos(0)

		content := strings.Join(row, "\x1f")
		seen[content]++

		record, err := convertRow(row, idx, origin, contextOnly, source, rowKey(content, seen[content]))
		if err != nil {
			result.Errors = append(result.Errors, RowError{Line: line, Err: err})
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result, nil
}

// rowKey is the hash input for a derived id. The first occurrence keeps the
// bare content.
func rowKey(content string, occurrence int) string {
	if occurrence <= 1 {
		return content
	}
	return content + "\x1e" + strconv.Itoa(occurrence)
}

func convertRow(row []string, idx columnIndex, origin matcher.Origin, contextOnly bool, source, key string) (storage.Record, error) {
	field := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	date, err := parseDate(field(idx.date))
	if err != nil {
		return storage.Record{}, err
	}
	amount, err := parseAmount(field(idx.amount))
	if err != nil {
		return storage.Record{}, err
	}

	id := field(idx.id)
	if id == "" {
		id = uuid.NewSHA1(rowNamespace, []byte(key)).String()
	}

	return storage.Record{
		ID:          string(origin) + ":" + id,
		Date:        date,
		Amount:      amount,
		Description: field(idx.description),
		Beneficiary: field(idx.beneficiary),
		Origin:      string(origin),
		ContextOnly: contextOnly,
		Source:      source,
	}, nil
}

// skipBOM drops a leading UTF-8 byte order mark
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(3); err == nil && bytes.Equal(prefix, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	return br
}
