// Package jobs holds the scheduled tasks run by cmd/scheduler.
package jobs

import (
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stakeledger/internal/metrics"
	"stakeledger/internal/models"
)

// Publisher sends one message to a queue.
type Publisher interface {
	Publish(queueName string, message interface{}) error
}

// RelayEvents publishes up to batch unpublished ledger events to queue in
// sequence order and marks each as published once the broker has it. It
// stops at the first publish failure so ordering is kept; the rest go out on
// the next run.
func RelayEvents(db *gorm.DB, pub Publisher, queue string, batch int) (int, error) {
	var pending []models.LedgerEvent
	if err := db.Where("published = ?", false).Order("id").Limit(batch).Find(&pending).Error; err != nil {
		log.Errorf("> 查询待发布事件失败: %v", err)
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	sent := 0
	for _, ev := range pending {
		if err := pub.Publish(queue, ev); err != nil {
			log.Errorf("> 发布事件 %d 失败: %v", ev.ID, err)
			metrics.EventsRelayed(sent)
			return sent, err
		}

		now := time.Now()
		err := db.Model(&models.LedgerEvent{}).
			Where("id = ?", ev.ID).
			Updates(map[string]interface{}{"published": true, "published_at": &now}).Error
		if err != nil {
			// Already on the queue; the indexer drops the duplicate.
			log.Errorf("> 标记事件 %d 已发布失败: %v", ev.ID, err)
			metrics.EventsRelayed(sent)
			return sent, err
		}
		sent++
	}

	metrics.EventsRelayed(sent)
	log.Infof("> 已发布 %d 个事件到队列 %s", sent, queue)
	return sent, nil
}
