package webhook

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"comandero/internal/order/app/core"
	"comandero/internal/order/domain/models"
	"comandero/internal/xpkg/logger"
)

// ReadyPayload is the notification POSTed to the operator-configured endpoint
// when an order transitions into finalizado.
type ReadyPayload struct {
	OrderID         int64         `json:"order_id"`
	ExternalID      string        `json:"external_id"`
	ChatID          string        `json:"chat_id"`
	CustomerName    string        `json:"customer_name"`
	CustomerPhone   string        `json:"customer_phone"`
	CustomerAddress string        `json:"customer_address"`
	Status          string        `json:"status"`
	TotalAmount     float64       `json:"total_amount"`
	PaymentMethod   string        `json:"payment_method"`
	PaymentStatus   string        `json:"payment_status"`
	OrderType       string        `json:"order_type"`
	CreatedAt       time.Time     `json:"created_at"`
	Items           []PayloadItem `json:"items"`
}

type PayloadItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Dispatcher delivers "order ready" notifications best-effort: failures are
// logged, never surfaced, and an empty URL disables the feature entirely.
type Dispatcher struct {
	url    string
	client *http.Client
	mylog  logger.Logger
}

func NewDispatcher(url string, mylog logger.Logger) *Dispatcher {
	return &Dispatcher{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		mylog:  mylog,
	}
}

func (d *Dispatcher) NotifyReady(detail models.OrderDetail) {
	if d.url == "" {
		return
	}
	mylog := d.mylog.Action("notify_ready").With("order_id", detail.ID)

	payload := ReadyPayload{
		OrderID:         detail.ID,
		ExternalID:      detail.ExternalID,
		ChatID:          DeriveChatID(detail.ExternalID, detail.CustomerPhone),
		CustomerName:    detail.CustomerName,
		CustomerPhone:   detail.CustomerPhone,
		CustomerAddress: detail.CustomerAddress,
		Status:          string(detail.Status),
		TotalAmount:     detail.TotalAmount,
		PaymentMethod:   detail.PaymentMethod,
		PaymentStatus:   string(detail.PaymentStatus),
		OrderType:       string(detail.OrderType),
		CreatedAt:       detail.CreatedAt,
	}
	for _, it := range detail.Items {
		payload.Items = append(payload.Items, PayloadItem{
			Name:      it.ProductName,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		mylog.Error("Failed to marshal webhook payload", err)
		return
	}

	resp, err := d.client.Post(d.url, "application/json", bytes.NewReader(body))
	if err != nil {
		mylog.Error("Webhook delivery failed", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		mylog.Warn("Webhook endpoint rejected notification", "status", resp.StatusCode)
		return
	}
	mylog.Info("Ready notification delivered", "chat_id", payload.ChatID)
}

// DeriveChatID recovers the customer-channel identity the upstream automation
// encodes in the idempotency key: the prefix of external_id before the first
// underscore, falling back to the customer phone, then to the sentinel.
func DeriveChatID(externalID, phone string) string {
	prefix, _, _ := strings.Cut(externalID, "_")
	if prefix != "" && prefix != core.SentinelContact {
		return prefix
	}
	if phone != "" && phone != core.SentinelContact {
		return phone
	}
	return core.SentinelContact
}
