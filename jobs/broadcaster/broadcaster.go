// Package broadcaster drains the fill-event outbox to a Kafka trades topic.
package broadcaster

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	exitwal "limitbook/infra/wal/exit"
)

type Broadcaster struct {
	outbox   *exitwal.ExitWAL
	producer sarama.SyncProducer
	topic    string
	log      *slog.Logger
}

// New wraps an existing producer. A nil logger discards.
func New(
	outbox *exitwal.ExitWAL,
	producer sarama.SyncProducer,
	topic string,
	logger *slog.Logger,
) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Broadcaster{
		outbox:   outbox,
		producer: producer,
		topic:    topic,
		log:      logger.With("component", "broadcaster"),
	}
}

// Dial connects a sync producer to brokers and wraps it.
func Dial(
	outbox *exitwal.ExitWAL,
	brokers []string,
	topic string,
	logger *slog.Logger,
) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return New(outbox, producer, topic, logger), nil
}

// Run drains the outbox every interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context, interval time.Duration) {
	b.log.Info("started", "topic", b.topic, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("stopped")
			return
		case <-ticker.C:
			if _, err := b.DrainOnce(); err != nil {
				b.log.Error("drain failed", "err", err)
			}
		}
	}
}

// DrainOnce publishes every NEW, SENT or FAILED event in sequence order and
// removes the acknowledged ones. SENT events are left over from a crash
// between publish and ack, so consumers may see an event twice. It returns
// the number of events published.
func (b *Broadcaster) DrainOnce() (int, error) {
	sent := 0
	err := b.outbox.ScanByState(exitwal.StateNew, func(rec exitwal.ExitRecord) error {
		if err := b.outbox.MarkSent(rec.Seq); err != nil {
			return err
		}

		if _, _, err := b.producer.SendMessage(b.message(rec)); err != nil {
			b.log.Warn("publish failed", "seq", rec.Seq, "retries", rec.Retries, "err", err)
			return b.outbox.MarkFailed(rec.Seq)
		}

		if err := b.outbox.MarkAcked(rec.Seq); err != nil {
			return err
		}
		sent++
		return nil
	}, exitwal.StateSent, exitwal.StateFailed)
	if err != nil {
		return sent, err
	}

	removed, err := b.outbox.DeleteAcked()
	if err != nil {
		return sent, err
	}
	if sent > 0 {
		b.log.Debug("drained", "sent", sent, "removed", removed)
	}
	return sent, nil
}

func (b *Broadcaster) message(rec exitwal.ExitRecord) *sarama.ProducerMessage {
	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Value: sarama.ByteEncoder(rec.Payload),
	}

	// key by pair so one market's fills stay ordered on one partition
	var head struct {
		Pair string `json:"pair"`
	}
	if json.Unmarshal(rec.Payload, &head) == nil && head.Pair != "" {
		msg.Key = sarama.StringEncoder(head.Pair)
	}
	return msg
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
