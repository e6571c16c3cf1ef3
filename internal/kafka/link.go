package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/link"
	"github.com/UnendingLoop/BgRemover/internal/model"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// Стратегия ретрая отправки в очередь; весь бюджет должен укладываться в таймаут операции
var SendStrategy = retry.Strategy{
	Attempts: 3,
	Delay:    200 * time.Millisecond,
	Backoff:  2,
}

// Publisher - контракт продюсера (wbf kafka.Producer)
type Publisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, value []byte) error
}

// Committer - контракт коммита прочитанных сообщений (wbf kafka.Consumer)
type Committer interface {
	Commit(ctx context.Context, msg kafkago.Message) error
}

// Link sends requests to the request topic and hands messages read from the reply topic to a Deliver
type Link struct {
	publisher Publisher
	latch     *link.Latch
	logger    zlog.Zerolog
}

func NewLink(pub Publisher, logger zlog.Zerolog) *Link {
	return &Link{publisher: pub, latch: link.NewLatch(), logger: logger}
}

// Send publishes payload keyed by its operation id
func (l *Link) Send(ctx context.Context, payload []byte) error {
	return l.publisher.SendWithRetry(ctx, SendStrategy, MessageKey(payload), payload)
}

func (l *Link) Ready() <-chan struct{} {
	return l.latch.Ready()
}

// Consume delivers replies one by one until ctx is done or queue is closed
func (l *Link) Consume(ctx context.Context, queue <-chan kafkago.Message, committer Committer, deliver link.Deliver) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-queue:
			if !ok {
				l.logger.Info().Msg("Reply channel closed, stopping kafka link...")
				return
			}
			l.latch.Observe(msg.Value)
			if deliver != nil {
				deliver(msg.Value)
			}
			if err := committer.Commit(ctx, msg); err != nil {
				l.logger.Error().Err(err).Msg("Failed to commit reply message")
			}
		}
	}
}

// MessageKey - operation id of a boundary payload as kafka key; nil for unreadable payloads
func MessageKey(payload []byte) []byte {
	msg, err := model.ParseMessage(payload)
	if err != nil || msg.ID == 0 {
		return nil
	}
	return []byte(strconv.FormatUint(msg.ID, 10))
}
