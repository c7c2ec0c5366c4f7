package subscriber

import (
	"context"
	"encoding/json"
	"fmt"

	"comandero/internal/xpkg/config"
	"comandero/internal/xpkg/logger"
	pkgmodels "comandero/pkg/models"
	"comandero/pkg/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Key identifies one live subscription: caller identity plus active display
// filter. Changing either tears the previous subscription down before a new
// one opens, so two live subscriptions never overlap.
type Key struct {
	Identity string
	Filter   string
}

func (k Key) String() string {
	return k.Identity + "|" + k.Filter
}

// Subscriber owns one change-feed subscription at a time. The connection
// handle belongs to the session and is closed on teardown.
type Subscriber struct {
	cfg    *config.RabbitMQ
	mylog  logger.Logger
	active *session
}

type session struct {
	key    Key
	rmq    *rabbitmq.RabbitMQ
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg *config.RabbitMQ, mylog logger.Logger) *Subscriber {
	return &Subscriber{cfg: cfg, mylog: mylog}
}

// Subscribe opens the push subscription for key and delivers decoded events
// to handler in order of arrival. Any previous subscription is torn down
// first. ctx scopes subscription setup only: the session itself lives until
// Teardown or until the broker closes the channel, so a startup scope ending
// after Subscribe returns does not stop the live feed.
func (s *Subscriber) Subscribe(ctx context.Context, key Key, handler func(context.Context, pkgmodels.ChangeEvent)) error {
	s.Teardown()

	if err := ctx.Err(); err != nil {
		return err
	}

	rmq, err := rabbitmq.Connect(s.cfg, s.mylog)
	if err != nil {
		return fmt.Errorf("connect feed: %w", err)
	}

	q, err := rmq.Channel.QueueDeclare(
		"",    // name (server generated)
		false, // durable
		false, // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		rmq.Close()
		return fmt.Errorf("declare queue: %w", err)
	}

	err = rmq.Channel.QueueBind(
		q.Name,                  // queue name
		"",                      // routing key
		rabbitmq.OrdersExchange, // exchange
		false,                   // no-wait
		nil,                     // arguments
	)
	if err != nil {
		rmq.Close()
		return fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := rmq.Channel.Consume(
		q.Name,       // queue
		key.String(), // consumer tag
		true,         // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		rmq.Close()
		return fmt.Errorf("consume: %w", err)
	}

	s.begin(ctx, key, rmq, deliveries, handler)

	s.mylog.Action("feed_subscribed").With("subscription", key.String()).Info("Change feed subscription opened")
	return nil
}

// begin starts the consume loop. The session context deliberately drops the
// caller's cancellation: only Teardown or a closed delivery channel stops the
// loop.
func (s *Subscriber) begin(ctx context.Context, key Key, rmq *rabbitmq.RabbitMQ, deliveries <-chan amqp.Delivery, handler func(context.Context, pkgmodels.ChangeEvent)) {
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess := &session{key: key, rmq: rmq, cancel: cancel, done: make(chan struct{})}
	s.active = sess

	go func() {
		defer close(sess.done)
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-deliveries:
				if !ok {
					s.mylog.Action("feed_closed").Warn("Change feed channel closed", "subscription", key.String())
					return
				}
				var event pkgmodels.ChangeEvent
				if err := json.Unmarshal(msg.Body, &event); err != nil {
					s.mylog.Action("feed_decode_failed").Error("Failed to decode change event", err)
					continue
				}
				handler(subCtx, event)
			}
		}
	}()
}

// Teardown closes the active subscription, if any, and waits for its consume
// loop to exit.
func (s *Subscriber) Teardown() {
	if s.active == nil {
		return
	}
	s.active.cancel()
	s.active.rmq.Close()
	<-s.active.done
	s.mylog.Action("feed_teardown").Info("Change feed subscription closed", "subscription", s.active.key.String())
	s.active = nil
}
