package rabbit

import (
	"context"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Queue    string
}

// Message announces an event pruned by the janitor; the calendar
// server relays it to connected clients as an event-removed.
type Message struct {
	EventID string
	Title   string
	OwnerID string
	EndTime time.Time
}

// Queue is the janitor-to-server bridge over AMQP. It carries only
// removal notices; live client traffic goes through the hub.
type Queue struct {
	conn       *amqp.Connection
	queue      amqp.Queue
	channel    *amqp.Channel
	connString string
	queueName  string
}

func New(config Config) *Queue {
	return &Queue{
		connString: fmt.Sprintf(
			"amqp://%s:%s@%s:%d/",
			config.User,
			config.Password,
			config.Host,
			config.Port,
		),
		queueName: config.Queue,
	}
}

func (q *Queue) Connect() error {
	var err error
	q.conn, err = amqp.Dial(q.connString)
	if err != nil {
		return err
	}

	q.channel, err = q.conn.Channel()
	if err != nil {
		return err
	}
	q.queue, err = q.channel.QueueDeclare(
		q.queueName,
		false, // durable
		true,  // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	return err
}

func (q *Queue) Close() {
	q.conn.Close()
}

func (q *Queue) Publish(body []byte) error {
	return q.channel.Publish(
		"",           // exchange
		q.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
}

type MessageProcess = func(msg amqp.Delivery)

func (q *Queue) Consume(ctx context.Context, process MessageProcess) error {
	msgs, err := q.channel.Consume(
		q.queue.Name, // queue
		"",           // consumer
		true,         // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if ok {
				process(m)
			}
		}
	}
}
