package checks

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultDialTimeout = 5 * time.Second

// RabbitMQBackend opens and closes a broker connection.
type RabbitMQBackend struct {
	base
	url  string
	dial func(url string, cfg amqp.Config) (io.Closer, error)
}

// NewRabbitMQBackend creates a broker connectivity check.
func NewRabbitMQBackend(url string) *RabbitMQBackend {
	return &RabbitMQBackend{
		base: base{name: "Rabbit MQ", slug: "rabbit-mq", critical: true},
		url:  url,
		dial: func(url string, cfg amqp.Config) (io.Closer, error) {
			return amqp.DialConfig(url, cfg)
		},
	}
}

// Check implements Backend.
func (b *RabbitMQBackend) Check(ctx context.Context) error {
	timeout := defaultDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	cfg := amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	}

	conn, err := b.dial(b.url, cfg)
	if err != nil {
		return rabbitError(err)
	}
	_ = conn.Close()
	return nil
}

func rabbitError(err error) error {
	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return Unavailable("Unable to connect to Rabbit MQ server: Connection refused", err)
	case errors.Is(err, amqp.ErrCredentials):
		return Unavailable("Authentication error", err)
	case errors.As(err, &opErr), errors.As(err, &netErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return Unavailable("IOError", err)
	default:
		return Unavailable("Unknown Error", err)
	}
}
