package rabbitmq

import (
	"comandero/internal/xpkg/config"
	"comandero/internal/xpkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// OrdersExchange carries row-level change notifications for the order
// collection. Every subscriber binds its own exclusive queue to it.
const OrdersExchange = "orders.changes"

// RabbitMQ is an explicitly owned connection handle. Each subscriber session
// creates its own and closes it on teardown; there is no shared singleton.
type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

func Connect(cfg *config.RabbitMQ, mylog logger.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	err = channel.ExchangeDeclare(
		OrdersExchange, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	mylog.Action("rabbitmq_connected").Info("Connected to RabbitMQ", "host", cfg.Host)
	return &RabbitMQ{Conn: conn, Channel: channel}, nil
}

func (r *RabbitMQ) Close() error {
	if r.Channel != nil {
		r.Channel.Close()
	}
	if r.Conn != nil {
		return r.Conn.Close()
	}
	return nil
}
