package observability

import "context"

// Publisher fans lifecycle events out to an event bus. The concrete AMQP
// implementation lives in internal/rabbitmq; this package only holds the
// process-wide default so that deep components can publish without carrying a
// handle around.
type Publisher interface {
	PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error
}

// PublisherFunc adapts a plain function to the Publisher interface.
type PublisherFunc func(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error

func (f PublisherFunc) PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	return f(ctx, routingKey, message, headers)
}

var defaultPublisher Publisher

// SetPublisher installs the process-wide event publisher. Nil disables
// publishing.
func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent sends one event through the default publisher. A missing
// publisher is a silent no-op; a failed publish is counted, not raised.
func PublishEvent(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.PublishJSON(ctx, routingKey, message, headers)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
