package brokermessage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pkgmodels "comandero/pkg/models"
	"comandero/pkg/rabbitmq"

	"comandero/internal/order/domain/models"
	"comandero/internal/xpkg/logger"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ChangeFeed publishes one ChangeEvent per committed order mutation on the
// orders.changes fanout exchange.
type ChangeFeed struct {
	rmq   *rabbitmq.RabbitMQ
	mylog logger.Logger
}

func NewChangeFeed(rmq *rabbitmq.RabbitMQ, mylog logger.Logger) *ChangeFeed {
	return &ChangeFeed{rmq: rmq, mylog: mylog}
}

func (cf *ChangeFeed) PublishInsert(ctx context.Context, order models.Order) error {
	// Insert payloads carry only changed columns; subscribers fetch the full
	// projection before merging.
	columns := map[string]any{
		"status":        string(order.Status),
		"restaurant_id": order.RestaurantID,
		"order_type":    string(order.OrderType),
	}
	return cf.publish(ctx, pkgmodels.ChangeEvent{
		ID:         uuid.NewString(),
		Op:         pkgmodels.OpInsert,
		OrderID:    order.ID,
		Columns:    columns,
		Version:    order.Version,
		OccurredAt: time.Now().UTC(),
	})
}

func (cf *ChangeFeed) PublishUpdate(ctx context.Context, orderID int64, changed map[string]any, version int64) error {
	return cf.publish(ctx, pkgmodels.ChangeEvent{
		ID:         uuid.NewString(),
		Op:         pkgmodels.OpUpdate,
		OrderID:    orderID,
		Columns:    changed,
		Version:    version,
		OccurredAt: time.Now().UTC(),
	})
}

func (cf *ChangeFeed) publish(ctx context.Context, event pkgmodels.ChangeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = cf.rmq.Channel.PublishWithContext(pubCtx,
		rabbitmq.OrdersExchange, // exchange
		"",                      // routing key
		false,                   // mandatory
		false,                   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}

	cf.mylog.Action("change_published").Debug("Change event published",
		"op", string(event.Op), "order_id", event.OrderID, "event_id", event.ID)
	return nil
}

func (cf *ChangeFeed) Close() error {
	return cf.rmq.Close()
}
