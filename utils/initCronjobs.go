package utils

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RoomPurger drops expired rooms.
type RoomPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// CacheRefresher drops a cached view so it is reloaded on next use.
type CacheRefresher interface {
	Refresh()
}

// CronCleaner schedules the housekeeping jobs and starts the scheduler.
// The caller stops it on shutdown.
func CronCleaner(rooms RoomPurger, questions CacheRefresher, logger *zap.Logger) *cron.Cron {
	c := cron.New()

	// 期限切れルームの掃除（毎時）
	c.AddFunc("@hourly", func() {
		PurgeRooms(rooms, logger)
	})

	// 他のプロセスが更新した出題回数を取り込むため、質問キャッシュを定期的に破棄
	c.AddFunc("*/15 * * * *", func() {
		questions.Refresh()
		logger.Info("質問キャッシュを破棄しました")
	})

	c.Start()
	return c
}

// PurgeRooms runs one purge pass.
func PurgeRooms(rooms RoomPurger, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	logger.Info("期限切れルームの削除を開始")
	purged, err := rooms.PurgeExpired(ctx)
	if err != nil {
		logger.Error("期限切れルームの削除に失敗しました", zap.Error(err))
		return
	}
	logger.Info("期限切れルームの削除完了", zap.Int("rooms_deleted", purged))
}
