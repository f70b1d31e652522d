package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	logger "github.com/sirupsen/logrus"

	"stakeledger/internal/jobs"
	"stakeledger/pkg/config"
)

func main() {
	config.LoadEnv()
	config.InitLogger()

	config.InitDB()
	config.InitRabbitMQ()
	defer config.RabbitMQ.Close()

	publisher, err := config.NewPublisher()
	if err != nil {
		logger.Fatalf("> 创建发布者失败: %v", err)
	}
	defer publisher.Close()

	queue := config.EventsQueue()
	batch := config.EnvInt("RELAY_BATCH", 500)

	// Overlapping relay runs would publish the same rows twice.
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	// 默认每5秒转发一次
	_, err = c.AddFunc(config.Env("RELAY_CRON", "*/5 * * * * *"), func() {
		if _, err := jobs.RelayEvents(config.DB, publisher, queue, batch); err != nil {
			logger.Errorf("> 转发账本事件失败: %v", err)
		}
	})
	if err != nil {
		logger.Fatalf("> 添加转发任务失败: %v", err)
	}

	// 默认每分钟记录一次快照
	_, err = c.AddFunc(config.Env("SNAPSHOT_CRON", "0 * * * * *"), func() {
		if _, err := jobs.SnapshotPools(config.DB, time.Now()); err != nil {
			logger.Errorf("> 记录质押池快照失败: %v", err)
		}
	})
	if err != nil {
		logger.Fatalf("> 添加快照任务失败: %v", err)
	}

	c.Start()
	logger.Info("> 定时任务已启动")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	<-c.Stop().Done()
	logger.Info("> 定时任务已停止")
}
