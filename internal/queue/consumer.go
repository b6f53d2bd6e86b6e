// Package queue contains the background consumer that listens to the
// invoice.created queue and delivers invoice emails.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/parkhaus/garage-api/internal/service"
)

// StartInvoiceEmailConsumer connects to RabbitMQ, declares the
// invoice.created queue (durable), and starts consuming messages. Each
// message triggers an email delivery through the invoice service. The
// function runs a reconnect loop; delivery failures are logged and the
// message is rejected without requeue so a dead mail server cannot
// spin the consumer, and a later admin resend can still go out.
func StartInvoiceEmailConsumer(invoices *service.InvoiceService) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("invoice-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeInvoices(conn, invoices); err != nil {
			log.Printf("invoice-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeInvoices(conn *amqp.Connection, invoices *service.InvoiceService) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		log.Printf("invoice-consumer: set QoS failed: %v", err)
	}

	_, err = ch.QueueDeclare(invoiceQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(invoiceQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleInvoiceCreated(d.Body, invoices); err != nil {
			log.Printf("invoice-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleInvoiceCreated(body []byte, invoices *service.InvoiceService) error {
	var ev InvoiceCreatedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := invoices.SendByEmail(ctx, ev.InvoiceID); err != nil {
		return fmt.Errorf("send invoice %s: %w", ev.InvoiceNumber, err)
	}
	log.Printf("invoice-consumer: invoice %s emailed to %s", ev.InvoiceNumber, ev.CustomerEmail)
	return nil
}
