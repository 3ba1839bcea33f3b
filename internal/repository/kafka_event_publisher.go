package repository

import (
	"context"
	"sync"
	"time"

	"FXPulse/internal/domain/models"
	drepo "FXPulse/internal/domain/repository"
	pkgkafka "FXPulse/pkg/kafka"
	applogger "FXPulse/pkg/logger"
)

type kafkaEvent struct {
	topic string
	key   []byte
	value interface{}
}

// KafkaEventPublisher forwards ticks and alert events to Kafka through an
// internal queue, so a slow broker never stalls the ingest path. Events
// are dropped when the queue is full.
type KafkaEventPublisher struct {
	producer   *pkgkafka.Producer
	tickTopic  string
	alertTopic string
	metrics    drepo.Metrics
	l          *applogger.Logger

	queue chan kafkaEvent
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewKafkaEventPublisher creates a publisher and starts its drain worker.
func NewKafkaEventPublisher(
	producer *pkgkafka.Producer,
	tickTopic, alertTopic string,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *KafkaEventPublisher {
	p := &KafkaEventPublisher{
		producer:   producer,
		tickTopic:  tickTopic,
		alertTopic: alertTopic,
		metrics:    metrics,
		l:          l,
		queue:      make(chan kafkaEvent, 4096),
		done:       make(chan struct{}),
	}
	p.wg.Add(1)
	go p.drain()
	return p
}

// PublishTick enqueues a tick event. Never blocks.
func (p *KafkaEventPublisher) PublishTick(_ context.Context, t models.Tick) error {
	return p.enqueue(kafkaEvent{topic: p.tickTopic, key: []byte(t.Symbol), value: t})
}

// PublishAlert enqueues an alert-fired event. Never blocks.
func (p *KafkaEventPublisher) PublishAlert(_ context.Context, ta models.TriggeredAlert) error {
	return p.enqueue(kafkaEvent{topic: p.alertTopic, key: []byte(ta.Alert.Symbol), value: ta})
}

func (p *KafkaEventPublisher) enqueue(ev kafkaEvent) error {
	select {
	case p.queue <- ev:
		return nil
	default:
		p.metrics.RecordDroppedMessage("kafka_queue_full")
		return nil
	}
}

func (p *KafkaEventPublisher) drain() {
	defer p.wg.Done()
	for {
		select {
		case ev := <-p.queue:
			p.publish(ev)
		case <-p.done:
			// flush what is already queued
			for {
				select {
				case ev := <-p.queue:
					p.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *KafkaEventPublisher) publish(ev kafkaEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.producer.Publish(ctx, ev.topic, ev.key, ev.value); err != nil {
		p.l.Warn("kafka publish failed",
			applogger.String("topic", ev.topic),
			applogger.Error(err))
	}
}

// Close stops the worker, flushes the queue and closes the producer.
func (p *KafkaEventPublisher) Close() error {
	p.once.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
	return p.producer.Close()
}
