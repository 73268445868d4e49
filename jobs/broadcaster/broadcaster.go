// Package broadcaster drains the durable event journal to the market
// data topic. It is the only component that talks to the broker on the
// outbound side, so the engine never blocks on Kafka.
package broadcaster

import (
	"context"
	"time"

	"vidar/infra/journal"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type Broadcaster struct {
	journal  *journal.Journal
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	log      *zap.Logger
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(
	jnl *journal.Journal,
	brokers []string,
	topic string,
	interval time.Duration,
	log *zap.Logger,
) (*Broadcaster, error) {

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Broadcaster{
		journal:  jnl,
		producer: producer,
		topic:    topic,
		interval: interval,
		log:      log,
	}, nil
}

// ------------------------------------------------
// RUN LOOP
// ------------------------------------------------

// Run drains the journal until ctx is cancelled. It never returns an
// error; publish failures stay in the journal and are retried on the
// next tick.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("broadcaster started",
		zap.String("topic", b.topic),
		zap.Duration("interval", b.interval))

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("broadcaster stopped")
			return
		case <-ticker.C:
			b.drainOnce()
		}
	}
}

// ------------------------------------------------
// DRAIN LOGIC (CRITICAL)
// ------------------------------------------------

// drainOnce walks every pending record in sequence order: mark SENT,
// publish, mark ACKED, delete. A failure at any step leaves the record
// pending; consumers dedupe by seq, so re-publishing after a crash is
// safe.
func (b *Broadcaster) drainOnce() {
	err := b.journal.ScanPending(func(rec journal.Record) error {
		if err := b.journal.MarkSent(rec.Seq); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(kindKey(rec.Kind)),
			Value: sarama.ByteEncoder(rec.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			b.log.Warn("publish failed, will retry",
				zap.Uint64("seq", rec.Seq),
				zap.Uint32("retries", rec.Retries),
				zap.Error(err))
			_ = b.journal.MarkFailed(rec.Seq)
			return nil // retry on next tick
		}

		if err := b.journal.MarkAcked(rec.Seq); err != nil {
			return err
		}
		return b.journal.Delete(rec.Seq)
	})
	if err != nil {
		b.log.Error("journal drain aborted", zap.Error(err))
	}
}

func kindKey(k journal.Kind) string {
	switch k {
	case journal.KindTrade:
		return "trade"
	case journal.KindOrder:
		return "order"
	case journal.KindBook:
		return "book"
	default:
		return "event"
	}
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
