package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"whosaidit/auth"               //接続用JWTの発行と検証
	"whosaidit/database"           //設定の読み込み、PostgreSQLとRedisの初期化
	"whosaidit/handlers"           //ルーム作成・参加などのHTTPリクエストの処理
	"whosaidit/internal/game"      //ゲーム進行のロジック
	"whosaidit/internal/websocket" //WebSocketセッションとブロードキャスト
	"whosaidit/questions"          //質問テンプレートの供給
	"whosaidit/repository"         //ルームの保存先
	"whosaidit/utils"              //ロガーの初期化とCronジョブ(期限切れルームの掃除)

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

func main() {
	logger, err := utils.InitLogger() // ロガーの初期化
	if err != nil {
		panic(err) // 失敗した場合はプログラム停止
	}
	defer logger.Sync() // ロガーのクリーンアップ

	config, err := database.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("設定ファイルの読み込みに失敗しました", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 必要なバックエンドだけを非同期で初期化
	var db *gorm.DB
	var rdb *redis.Client
	done := make(chan bool)

	go func() {
		if config.QuestionStore == "postgres" {
			var err error
			db, err = database.InitPostgreSQL(config, logger)
			if err != nil {
				logger.Fatal("PostgreSQLの初期化に失敗しました", zap.Error(err))
			}
			if err := database.AutoMigrate(db); err != nil {
				logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
			}
		}
		done <- true
	}()

	go func() {
		if config.RoomStore == "redis" {
			var err error
			rdb, err = database.InitRedis(config, logger)
			if err != nil {
				logger.Fatal("Failed to initialize Redis", zap.Error(err))
			}
		}
		done <- true
	}()

	// 2つの初期化が完了するのを待つ
	<-done
	<-done

	var rooms repository.RoomRepository
	if rdb != nil {
		rooms = repository.NewRedisRoomRepository(rdb, logger)
		defer rdb.Close()
	} else {
		rooms = repository.NewMemoryRoomRepository()
	}

	var store questions.Store
	if db != nil {
		store = questions.NewGormStore(db)
	} else {
		store = questions.NewStaticStore(nil)
	}
	seeded, err := store.Seed(ctx, questions.DefaultTemplates)
	if err != nil {
		logger.Fatal("質問テンプレートの投入に失敗しました", zap.Error(err))
	}
	logger.Info("Question templates ready",
		zap.String("room_store", config.RoomStore),
		zap.String("question_store", config.QuestionStore),
		zap.Int("seeded", seeded))

	supplier := questions.NewSupplier(store, questions.NewCache(store), logger)
	engine := game.NewEngine(rooms, supplier, logger)
	tokens := auth.NewTokenManager(config.JWTSecret)
	coordinator := websocket.NewCoordinator(engine, logger)
	wsServer := websocket.NewServer(ctx, coordinator, tokens, config.AllowedOrigins, logger)

	// クーロンスケジューラのセットアップと呼び出し
	scheduler := utils.CronCleaner(rooms, supplier, logger)
	defer scheduler.Stop()

	router := gin.New()
	//リクエストロガーを起動
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	//CORS（Cross-Origin Resource Sharing）ポリシーを設定
	router.Use(cors.New(cors.Config{
		AllowOrigins:     config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	//各HTTPリクエストのルーティング
	handlers.NewRoomHandler(engine, tokens, logger).RegisterRoutes(router)
	router.GET("/ws", func(c *gin.Context) {
		wsServer.HandleConnections(c.Writer, c.Request)
	})

	srv := &http.Server{
		Addr:    ":" + config.Port,
		Handler: router,
	}
	go func() {
		logger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to run HTTP server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
