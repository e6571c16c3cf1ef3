package main

import (
	"context"
	"fmt"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/appconfig"
	"github.com/UnendingLoop/BgRemover/internal/bridge"
	"github.com/UnendingLoop/BgRemover/internal/kafka"
	"github.com/UnendingLoop/BgRemover/internal/link"
	"github.com/UnendingLoop/BgRemover/internal/processor"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/config"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

const readyWait = 2 * time.Minute

// mountedProcessor - endpoint to register in the bridge plus its teardown
type mountedProcessor struct {
	endpoint link.Endpoint
	close    func()
}

// mountProcessor starts exactly one raster processor for this process as PROCESSOR_MODE says
func mountProcessor(ctx context.Context, cfg *config.Config, br *bridge.Bridge) (*mountedProcessor, error) {
	switch mode := cfg.GetString("PROCESSOR_MODE"); mode {
	case appconfig.ModeInProc:
		l := link.NewInProc(ctx, processor.New(cfg.GetInt("MAX_SIDE"), zlog.Logger), br.OnMessage, zlog.Logger)
		return &mountedProcessor{endpoint: l, close: func() { _ = l.Close() }}, nil

	case appconfig.ModePipe:
		child, err := link.Spawn(ctx, cfg.GetString("RASTERD_PATH"), nil, br.OnMessage, zlog.Logger)
		if err != nil {
			return nil, err
		}
		return &mountedProcessor{endpoint: child, close: func() {
			if err := child.Close(); err != nil {
				zlog.Logger.Error().Err(err).Msg("Raster processor exited badly")
			}
		}}, nil

	case appconfig.ModeKafka:
		return mountKafka(ctx, cfg, br)

	default:
		return nil, fmt.Errorf("unknown PROCESSOR_MODE %q", mode)
	}
}

func mountKafka(ctx context.Context, cfg *config.Config, br *bridge.Bridge) (*mountedProcessor, error) {
	broker := cfg.GetString("KAFKA_BROKER")
	reqTopic := cfg.GetString("KAFKA_REQUEST_TOPIC")
	repTopic := cfg.GetString("KAFKA_REPLY_TOPIC")

	// ждем пока кафка раздуплится
	if err := kafka.WaitKafkaReady(ctx, broker, 5*time.Second); err != nil {
		return nil, err
	}
	kafka.InitKafkaTopics(ctx, broker, 10*time.Second, reqTopic, repTopic)

	pub := wbfkafka.NewProducer([]string{broker}, reqTopic)
	kafka.WidenProducer(pub)

	// у каждого экземпляра API своя группа: ответы должны дойти до всех, лишние отсеет bridge по id
	group := cfg.GetString("KAFKA_GROUPID") + "-api-" + uuid.NewString()
	cons := wbfkafka.NewConsumer([]string{broker}, repTopic, group)
	if err := kafka.WidenConsumer(cons); err != nil {
		return nil, err
	}

	queue := make(chan kafkago.Message)
	cons.StartConsuming(ctx, queue, retry.Strategy{Attempts: 5, Delay: 2 * time.Second, Backoff: 1.5})

	kl := kafka.NewLink(pub, zlog.Logger)
	go kl.Consume(ctx, queue, cons, br.OnMessage)

	return &mountedProcessor{endpoint: kl, close: func() {
		if err := pub.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-writer")
		}
		if err := cons.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-reader")
		}
	}}, nil
}

// registerWhenReady pings the processor and registers it in the bridge once it answers
func registerWhenReady(ctx context.Context, br *bridge.Bridge, mp *mountedProcessor) {
	waitCtx, cancel := context.WithTimeout(ctx, readyWait)
	defer cancel()

	if err := link.AwaitReady(waitCtx, mp.endpoint, time.Second); err != nil {
		zlog.Logger.Error().Err(err).Msg("Raster processor never became ready, removals stay unavailable")
		return
	}
	br.Register(mp.endpoint)
}
