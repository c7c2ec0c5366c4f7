package webhook_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"comandero/internal/order/app/core"
	"comandero/internal/order/domain/models"
	"comandero/internal/webhook"
	"comandero/internal/xpkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveChatID(t *testing.T) {
	cases := []struct {
		name       string
		externalID string
		phone      string
		want       string
	}{
		{"prefix before underscore", "555_1700000000", "5551234", "555"},
		{"no underscore uses whole id", "555", "5551234", "555"},
		{"empty external falls back to phone", "", "5551234", "5551234"},
		{"sentinel prefix falls back to phone", "desconocido_1700000000", "5551234", "5551234"},
		{"sentinel phone yields sentinel", "", core.SentinelContact, core.SentinelContact},
		{"nothing known yields sentinel", "", "", core.SentinelContact},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, webhook.DeriveChatID(tc.externalID, tc.phone))
		})
	}
}

func readyDetail() models.OrderDetail {
	return models.OrderDetail{
		Order: models.Order{
			ID:            17,
			ExternalID:    "555_1700000000",
			RestaurantID:  1,
			CustomerName:  "Ana",
			CustomerPhone: "5551234",
			Status:        models.StatusReady,
			PaymentStatus: models.PaymentPending,
			OrderType:     models.TypeDelivery,
			TotalAmount:   20,
		},
		Items: []models.OrderItem{
			{ProductName: "burger", Quantity: 2, UnitPrice: 10},
		},
	}
}

func TestNotifyReadyPostsPayload(t *testing.T) {
	mylog, err := logger.New("ERROR")
	require.NoError(t, err)

	received := make(chan webhook.ReadyPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload webhook.ReadyPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
	}))
	defer srv.Close()

	webhook.NewDispatcher(srv.URL, mylog).NotifyReady(readyDetail())

	payload := <-received
	assert.Equal(t, int64(17), payload.OrderID)
	assert.Equal(t, "555", payload.ChatID)
	assert.Equal(t, "finalizado", payload.Status)
	require.Len(t, payload.Items, 1)
	assert.Equal(t, "burger", payload.Items[0].Name)
}

func TestNotifyReadyDisabledWithoutURL(t *testing.T) {
	mylog, err := logger.New("ERROR")
	require.NoError(t, err)

	// Must not panic or attempt any network call.
	webhook.NewDispatcher("", mylog).NotifyReady(readyDetail())
}

func TestNotifyReadySwallowsEndpointRejection(t *testing.T) {
	mylog, err := logger.New("ERROR")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	webhook.NewDispatcher(srv.URL, mylog).NotifyReady(readyDetail())
}
