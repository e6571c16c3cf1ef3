// Package main (in worker-subfolder) hosts the raster processor behind Kafka
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/BgRemover/internal/appconfig"
	"github.com/UnendingLoop/BgRemover/internal/kafka"
	"github.com/UnendingLoop/BgRemover/internal/processor"
	"github.com/UnendingLoop/BgRemover/internal/worker"
	kafkago "github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig, err := appconfig.Load("./.env")
	if err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}
	if err := appconfig.InitLogger(appConfig); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ждем пока кафка раздуплится
	broker := appConfig.GetString("KAFKA_BROKER")
	if err := kafka.WaitKafkaReady(ctx, broker, 5*time.Second); err != nil {
		log.Fatalf("Kafka is unreachable: %v", err)
	}
	reqTopic := appConfig.GetString("KAFKA_REQUEST_TOPIC")
	repTopic := appConfig.GetString("KAFKA_REPLY_TOPIC")
	kafka.InitKafkaTopics(ctx, broker, 10*time.Second, reqTopic, repTopic)

	// подключиться к кафке как читатель запросов и писатель ответов
	queue := make(chan kafkago.Message)
	retryStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	cons := wbfkafka.NewConsumer([]string{broker}, reqTopic, appConfig.GetString("KAFKA_GROUPID")+"-worker")
	pub := wbfkafka.NewProducer([]string{broker}, repTopic)
	kafka.WidenProducer(pub)
	if err := kafka.WidenConsumer(cons); err != nil {
		log.Fatalf("Failed to configure Kafka-reader: %v", err)
	}

	cons.StartConsuming(ctx, queue, retryStrategy)

	proc := processor.New(appConfig.GetInt("MAX_SIDE"), zlog.Logger)
	go worker.NewWorkerInstance(proc, queue, cons, pub).StartWorker(ctx)

	<-ctx.Done()

	shutdown(cons, pub)
	log.Println("Exiting worker...")
}

func shutdown(cons *wbfkafka.Consumer, pub *wbfkafka.Producer) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	if err := cons.Close(); err != nil {
		log.Println("Failed to close Kafka-reader:", err)
	}
	log.Println("Kafka-consumer connection closed.")

	if err := pub.Close(); err != nil {
		log.Println("Failed to close Kafka-writer:", err)
	}
	log.Println("Kafka-producer connection closed.")
}
