package queue

import (
	"context"
	"testing"
	"time"

	"shopkeep/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleEvent() model.SaleEvent {
	return model.SaleEvent{
		CreatedAt:    time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC),
		EventID:      "evt-1",
		ProductID:    7,
		ProductTitle: "Car Toy",
		Quantity:     1,
		UnitPrice:    decimal.NewFromInt(150),
		StockAfter:   1,
	}
}

func TestSaleMessage_StreamRoundTrip(t *testing.T) {
	msg := FromSaleEvent(sampleEvent())
	require.NoError(t, msg.Validate())

	// Redis 返回的字段值都是字符串
	values := map[string]interface{}{}
	for k, v := range msg.streamValues() {
		s, err := getStreamString(map[string]interface{}{k: v}, k)
		require.NoError(t, err)
		values[k] = s
	}

	got, err := parseSaleEvent(values)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestParseSaleEvent_Malformed(t *testing.T) {
	base := FromSaleEvent(sampleEvent()).streamValues()

	t.Run("missing field", func(t *testing.T) {
		values := copyValues(base)
		delete(values, "event_id")
		_, err := parseSaleEvent(values)
		assert.Error(t, err)
	})

	t.Run("non numeric product id", func(t *testing.T) {
		values := copyValues(base)
		values["product_id"] = "abc"
		_, err := parseSaleEvent(values)
		assert.Error(t, err)
	})

	t.Run("bad price", func(t *testing.T) {
		values := copyValues(base)
		values["unit_price"] = "cheap"
		_, err := parseSaleEvent(values)
		assert.Error(t, err)
	})
}

func copyValues(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type memAlerts struct{ alerts map[string]model.StockAlert }

func (m *memAlerts) Create(_ context.Context, a *model.StockAlert) error {
	m.alerts[a.EventID] = *a
	return nil
}

func TestConsumer_HandleRaisesAlertAtThreshold(t *testing.T) {
	alerts := &memAlerts{alerts: map[string]model.StockAlert{}}
	c := &Consumer{alerts: alerts, log: zap.NewNop()}
	ctx := context.Background()

	low := FromSaleEvent(sampleEvent())
	require.NoError(t, c.handle(ctx, low))
	// 重复消息
	require.NoError(t, c.handle(ctx, low))

	healthy := low
	healthy.EventID = "evt-2"
	healthy.StockAfter = 5
	require.NoError(t, c.handle(ctx, healthy))

	require.Len(t, alerts.alerts, 1)
	assert.Equal(t, int64(1), alerts.alerts["evt-1"].StockAfter)
	assert.Equal(t, "Car Toy", alerts.alerts["evt-1"].ProductTitle)

	assert.Error(t, c.handle(ctx, SaleMessage{}))
}
