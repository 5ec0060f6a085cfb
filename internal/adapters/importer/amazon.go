package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// AmazonExport is the JSON written by amazon-order-scraper
type AmazonExport struct {
	Orders []AmazonOrder `json:"orders"`
}

// AmazonOrder is one order of the export
type AmazonOrder struct {
	OrderID   string            `json:"orderId"`
	OrderDate string            `json:"orderDate"` // ISO 8601: "2025-12-13"
	Total     string            `json:"total"`     // "$116.20"
	Items     []AmazonOrderItem `json:"items"`
}

// AmazonOrderItem is a purchased item; only the name is kept
type AmazonOrderItem struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

// ParseAmazonOrders converts an amazon-order-scraper export into context-only
// records. Orders are outflows, so amounts are stored negative.
func ParseAmazonOrders(r io.Reader, source string) (*ImportResult, error) {
	var export AmazonExport
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("failed to decode amazon export: %w", err)
	}

	result := &ImportResult{}
	for i, order := range export.Orders {
		record, err := convertAmazonOrder(order, source)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Line: i + 1, Err: err})
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result, nil
}

func convertAmazonOrder(order AmazonOrder, source string) (storage.Record, error) {
	if order.OrderID == "" {
		return storage.Record{}, fmt.Errorf("order has no id")
	}
	date, err := parseDate(order.OrderDate)
	if err != nil {
		return storage.Record{}, fmt.Errorf("order %s: %w", order.OrderID, err)
	}
	total, err := parseAmount(order.Total)
	if err != nil {
		return storage.Record{}, fmt.Errorf("order %s: %w", order.OrderID, err)
	}
	if total > 0 {
		total = -total
	}

	return storage.Record{
		ID:          "amazon:" + order.OrderID,
		Date:        date,
		Amount:      total,
		Description: describeOrder(order),
		Beneficiary: "Amazon",
		Origin:      string(matcher.OriginAmazon),
		ContextOnly: true,
		Source:      source,
	}, nil
}

func describeOrder(order AmazonOrder) string {
	names := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		if item.Name == "" {
			continue
		}
		if item.Quantity > 1 {
			names = append(names, fmt.Sprintf("%s (x%d)", item.Name, item.Quantity))
		} else {
			names = append(names, item.Name)
		}
	}
	if len(names) == 0 {
		return "Amazon order " + order.OrderID
	}
	return fmt.Sprintf("Amazon order %s: %s", order.OrderID, strings.Join(names, ", "))
}
