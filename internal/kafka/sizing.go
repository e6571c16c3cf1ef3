package kafka

import (
	"fmt"
	"strconv"

	"github.com/UnendingLoop/BgRemover/internal/source"
	kafkago "github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
)

// MaxMessageBytes fits the largest source as a base64 data url plus the message envelope.
// Kafka defaults (1 MiB on writer, reader and topic) would reject ordinary photos.
const MaxMessageBytes = source.MaxSourceSize/3*4 + 1<<20

// topicConfigEntries - per-topic overrides for the boundary topics
func topicConfigEntries() []kafkago.ConfigEntry {
	return []kafkago.ConfigEntry{
		{ConfigName: "max.message.bytes", ConfigValue: strconv.Itoa(MaxMessageBytes)},
	}
}

// WidenProducer lets the writer batch a single message of MaxMessageBytes
func WidenProducer(p *wbfkafka.Producer) {
	if p.Writer.BatchBytes < MaxMessageBytes {
		p.Writer.BatchBytes = MaxMessageBytes
	}
}

// WidenConsumer rebuilds the reader so one fetch can carry MaxMessageBytes. Call before StartConsuming.
func WidenConsumer(c *wbfkafka.Consumer) error {
	cfg := c.Reader.Config()
	if cfg.MaxBytes >= MaxMessageBytes {
		return nil
	}
	if err := c.Reader.Close(); err != nil {
		return fmt.Errorf("failed to close default kafka reader: %w", err)
	}
	cfg.MaxBytes = MaxMessageBytes
	c.Reader = kafkago.NewReader(cfg)
	return nil
}
