package broker

import (
	"context"
	"sync"
	"time"

	extErrors "github.com/pkg/errors"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var _ Publisher = &AMQPBroker{}

const eventsExchange string = "mononest_events"

// AMQPBroker publishes notifications to a RabbitMQ topic exchange
type AMQPBroker struct {
	logger     *zap.Logger
	connection *amqp.Connection

	// amqp.Channel must not be used by concurrent publishers
	mu      sync.Mutex
	channel *amqp.Channel
}

// NewAMQPBroker returns a Publisher over RabbitMQ
func NewAMQPBroker(logger *zap.Logger, amqpURI string) (*AMQPBroker, error) {
	amqpConn, err := amqp.Dial(amqpURI)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to Message Broker")
	}
	amqpChan, err := amqpConn.Channel()
	if err != nil {
		amqpConn.Close()
		return nil, extErrors.Wrap(err, "Cannot create broker channel")
	}
	broker := &AMQPBroker{
		logger:     logger,
		connection: amqpConn,
		channel:    amqpChan,
	}
	if err := broker.setupEventsExchange(); err != nil {
		broker.Close()
		return nil, extErrors.Wrap(err, "Cannot declare exchange for events")
	}
	return broker, nil
}

func (a *AMQPBroker) setupEventsExchange() error {
	return a.channel.ExchangeDeclare(
		eventsExchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
}

// Close will close the channel and connection to release resources
func (a *AMQPBroker) Close() {
	a.channel.Close()
	a.connection.Close()
}

// Publish encodes payload as a protobuf Struct and routes it by topic
func (a *AMQPBroker) Publish(ctx context.Context, topic string, payload map[string]interface{}) error {
	body, err := encodePayload(payload)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.channel.Publish(
		eventsExchange,
		topic,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/x-protobuf",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Type:         topic,
			Body:         body,
		},
	); err != nil {
		return extErrors.Wrapf(err, "Cannot publish %s", topic)
	}
	a.logger.Debug("Published event", zap.String("topic", topic))
	return nil
}

func encodePayload(payload map[string]interface{}) ([]byte, error) {
	s, err := structpb.NewStruct(payload)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot convert payload into protobuf Struct")
	}
	protoBytes, err := proto.Marshal(s)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot encode message into bytes")
	}
	return protoBytes, nil
}

// DecodePayload reverses the encoding used by Publish
func DecodePayload(body []byte) (map[string]interface{}, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(body, &s); err != nil {
		return nil, extErrors.Wrap(err, "Cannot decode message")
	}
	return s.AsMap(), nil
}
