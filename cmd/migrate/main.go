// Command migrate prepares the question table and seeds the default
// templates. It is safe to run repeatedly.
package main

import (
	"context"
	"flag"
	"time"

	"whosaidit/database"
	"whosaidit/models"
	"whosaidit/questions"
	"whosaidit/utils"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.json", "設定ファイルのパス")
	resetUsage := flag.Bool("reset-usage", false, "全ての質問の出題回数を0に戻す")
	flag.Parse()

	logger, err := utils.InitLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	config, err := database.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("設定ファイルの読み込みに失敗しました", zap.Error(err))
	}
	db, err := database.InitPostgreSQL(config, logger)
	if err != nil {
		logger.Fatal("PostgreSQLの初期化に失敗しました", zap.Error(err))
	}

	// テーブル 'questions' が存在するかを確認する
	existed := db.Migrator().HasTable(&models.Question{})
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Error migrating tables", zap.Error(err))
	}
	logger.Info("Question table ready", zap.Bool("existed", existed))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if *resetUsage {
		res := db.WithContext(ctx).Model(&models.Question{}).
			Where("usage_count <> ?", 0).
			Update("usage_count", 0)
		if res.Error != nil {
			logger.Fatal("出題回数のリセットに失敗しました", zap.Error(res.Error))
		}
		logger.Info("Usage counts reset", zap.Int64("rows", res.RowsAffected))
	}

	inserted, err := questions.NewGormStore(db).Seed(ctx, questions.DefaultTemplates)
	if err != nil {
		logger.Fatal("質問テンプレートの投入に失敗しました", zap.Error(err))
	}
	logger.Info("Seed completed",
		zap.Int("inserted", inserted),
		zap.Int("templates", len(questions.DefaultTemplates)))
}
