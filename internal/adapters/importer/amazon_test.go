package importer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const amazonExport = `{
  "orders": [
    {
      "orderId": "113-1234567-8901234",
      "orderDate": "2025-12-13",
      "total": "$116.20",
      "items": [
        {"name": "USB-C Cable", "price": "$14.99", "quantity": 2},
        {"name": "Desk Lamp", "price": "$79.62", "quantity": 1}
      ]
    },
    {
      "orderId": "113-0000000-0000000",
      "orderDate": "not a date",
      "total": "$5.00"
    },
    {
      "orderId": "113-9999999-0000000",
      "orderDate": "2025-12-10",
      "total": "$5.00"
    }
  ]
}`

func TestParseAmazonOrders(t *testing.T) {
	result, err := ParseAmazonOrders(strings.NewReader(amazonExport), "orders.json")
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Line)

	order := result.Records[0]
	assert.Equal(t, "amazon:113-1234567-8901234", order.ID)
	assert.True(t, order.Date.Equal(time.Date(2025, time.December, 13, 0, 0, 0, 0, time.UTC)))
	assert.InDelta(t, -116.20, order.Amount, 0.0001)
	assert.Equal(t, "Amazon order 113-1234567-8901234: USB-C Cable (x2), Desk Lamp", order.Description)
	assert.Equal(t, "Amazon", order.Beneficiary)
	assert.Equal(t, "amazon", order.Origin)
	assert.True(t, order.ContextOnly)
	assert.Equal(t, "orders.json", order.Source)

	assert.Equal(t, "Amazon order 113-9999999-0000000", result.Records[1].Description)
}

func TestParseAmazonOrders_InvalidJSON(t *testing.T) {
	_, err := ParseAmazonOrders(strings.NewReader("{not json"), "")
	assert.Error(t, err)
}
