package main

import (
	"context"
	"os/signal"
	"syscall"

	logrus "github.com/sirupsen/logrus"

	"stakeledger/internal/indexer"
	"stakeledger/pkg/config"
)

func main() {
	config.LoadEnv()
	config.InitLogger()

	// Initialize database
	config.InitDB()

	// Initialize RabbitMQ
	config.InitRabbitMQ()
	defer config.RabbitMQ.Close()

	queue := config.EventsQueue()
	msgConsumer, err := config.NewConsumer(queue)
	if err != nil {
		logrus.Fatal("Failed to create consumer: ", err)
	}
	defer msgConsumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logrus.WithField("queue", queue).Info("Event indexer worker started, waiting for messages...")
	if err := msgConsumer.Consume(ctx, indexer.Handler(config.DB)); err != nil {
		logrus.Errorf("Consumer stopped: %v", err)
		return
	}
	logrus.Info("Event indexer worker stopped")
}
