// Package worker hosts a raster processor behind kafka: requests come from one topic, replies go to another
package worker

import (
	"context"
	"log"

	"github.com/UnendingLoop/BgRemover/internal/kafka"
	"github.com/UnendingLoop/BgRemover/internal/model"
	kafkago "github.com/segmentio/kafka-go"
)

// Handler answers one request payload with one reply payload (processor.Processor)
type Handler interface {
	Handle(ctx context.Context, payload []byte) []byte
}

type Worker struct {
	handler   Handler
	queue     <-chan kafkago.Message
	committer kafka.Committer
	replies   kafka.Publisher
}

func NewWorkerInstance(h Handler, q <-chan kafkago.Message, c kafka.Committer, replies kafka.Publisher) *Worker {
	return &Worker{handler: h, queue: q, committer: c, replies: replies}
}

// StartWorker announces readiness, then processes requests one at a time until ctx is done
func (w *Worker) StartWorker(ctx context.Context) {
	w.publish(ctx, model.Message{Type: model.MsgReady}.Marshal())

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				log.Println("Queue channel closed, stopping worker...")
				return
			}
			w.processMessage(ctx, msg)
		}
	}
}

func (w *Worker) processMessage(ctx context.Context, msg kafkago.Message) {
	reply := w.handler.Handle(ctx, msg.Value)
	w.publish(ctx, reply)

	// коммитим в любом случае: повтор запроса не нужен, оркестратор ждет ответ не дольше таймаута
	if err := w.committer.Commit(ctx, msg); err != nil {
		log.Printf("Failed to commit queue-message: %v", err)
	}
}

func (w *Worker) publish(ctx context.Context, payload []byte) {
	if err := w.replies.SendWithRetry(ctx, kafka.SendStrategy, kafka.MessageKey(payload), payload); err != nil {
		log.Printf("Failed to publish reply: %v", err)
	}
}
