package inspector

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-bthome/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-bthome/internal/metrics"
)

const subscribeQoS = 1

// Subscriber is the MQTT side of the inspector. Implemented by *mqtt.Client.
type Subscriber interface {
	SubscribeMessages(topic string, qos byte, handler mqtt.MessageFunc) error
	Unsubscribe(topic string) error
}

// Logger is the logging interface used by the inspector.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures an Inspector.
type Options struct {
	Subscriber Subscriber

	// Topics are the subscription filters, e.g. "homie/#".
	Topics []string

	// MaxTopics caps the tree size. Zero means no limit.
	MaxTopics int

	Metrics *metrics.Metrics
	Logger  Logger
}

// Inspector feeds subscribed messages into a Tree.
type Inspector struct {
	tree    *Tree
	sub     Subscriber
	topics  []string
	metrics *metrics.Metrics
	logger  Logger
	now     func() time.Time

	full atomic.Bool
}

// New creates an inspector. Call Start to subscribe.
func New(opts Options) (*Inspector, error) {
	if opts.Subscriber == nil {
		return nil, ErrNoSubscriber
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}
	return &Inspector{
		tree:    NewTree(opts.MaxTopics),
		sub:     opts.Subscriber,
		topics:  append([]string(nil), opts.Topics...),
		metrics: opts.Metrics,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Tree returns the topic tree.
func (i *Inspector) Tree() *Tree {
	return i.tree
}

// Start subscribes to every configured filter. On failure the filters
// already subscribed are released.
func (i *Inspector) Start() error {
	for n, topic := range i.topics {
		if err := i.sub.SubscribeMessages(topic, subscribeQoS, i.handle); err != nil {
			for _, done := range i.topics[:n] {
				if uerr := i.sub.Unsubscribe(done); uerr != nil {
					i.logger.Debug("releasing inspector filter", "topic", done, "error", uerr)
				}
			}
			return err
		}
	}
	return nil
}

// Stop unsubscribes from every configured filter.
func (i *Inspector) Stop() {
	for _, topic := range i.topics {
		if err := i.sub.Unsubscribe(topic); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
			i.logger.Warn("unsubscribing inspector", "topic", topic, "error", err)
		}
	}
}

func (i *Inspector) handle(m mqtt.Message) error {
	err := i.tree.Insert(NewValue(m.Topic, m.Payload, m.Retained, i.now()))
	switch {
	case errors.Is(err, ErrTreeFull):
		// Logged once per overflow episode.
		if i.full.CompareAndSwap(false, true) {
			i.logger.Warn("inspector topic limit reached, new topics dropped", "limit", i.tree.limit)
		}
	case err == nil:
		i.full.Store(false)
	}
	i.metrics.SetInspectorTopics(i.tree.Len())
	return nil
}
