// Package notifier publishes portal notifications to RabbitMQ.
// Publish errors are logged and returned; callers treat notification
// delivery as best effort and never fail the request over it.
package notifier

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/holyokefd/portal/internal/queue"
)

// PublishBulletinPosted announces a new bulletin on the notification
// queue.
func PublishBulletinPosted(ctx context.Context, ev q.BulletinPostedEvent) error {
	return publish(ctx, q.Notification{Kind: q.KindBulletinPosted, Bulletin: &ev})
}

// PublishMessageSent announces a sent message on the notification
// queue.
func PublishMessageSent(ctx context.Context, ev q.MessageSentEvent) error {
	return publish(ctx, q.Notification{Kind: q.KindMessageSent, Message: &ev})
}

// publish dials the broker, declares the durable notification queue
// and publishes one persistent JSON message. A fresh connection per
// publish keeps the path simple and panic-free at portal volumes.
func publish(ctx context.Context, n q.Notification) error {
	conn, err := amqp.Dial(q.BrokerURL())
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(q.NotificationQueue, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(n)
	if err != nil {
		log.Printf("rabbitmq: marshal notification failed: %v", err)
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", q.NotificationQueue, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
