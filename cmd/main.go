package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"IntentEngine/internal/api"
	"IntentEngine/internal/app"
	"IntentEngine/internal/config"
	"IntentEngine/internal/database"
	"IntentEngine/internal/listener"
	"IntentEngine/internal/model"
	"IntentEngine/internal/mq"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// 1. 加载配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("加载配置文件失败: %v", err)
	}

	// 2. 初始化日志
	logrusLogger := logrus.New()
	logrusLogger.SetLevel(logrus.InfoLevel)
	logrusLogger.Info("配置文件加载成功")

	// 3. 连接 PostgreSQL（库不存在则先创建再连）并配置连接池
	db, err := database.Open(&cfg.Database, logrusLogger)
	if err != nil {
		logrusLogger.Fatalf("初始化数据库失败: %v", err)
	}
	logrusLogger.Info("PostgreSQL连接成功")

	// 4. 库表不存在则自动创建
	if err := model.Migrate(db); err != nil {
		logrusLogger.Fatalf("数据库表结构迁移失败: %v", err)
	}
	logrusLogger.Info("数据库表结构检查完成（不存在则已创建）")

	// 5. 组装服务
	a, err := app.New(cfg, db, logrusLogger)
	if err != nil {
		logrusLogger.Fatalf("初始化服务失败: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 6. 实时信号订阅（可选）
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		reader := mq.NewReader(cfg.Kafka.Brokers, cfg.Kafka.SignalsTopic, cfg.Kafka.GroupID)
		sub := listener.NewKafkaSubscriber(reader, listener.NewSignalListener(a.Signals, logrusLogger), logrusLogger)
		go func() {
			if err := sub.Run(ctx); err != nil {
				logrusLogger.WithError(err).Error("KafkaSubscriber stopped")
			}
		}()
		logrusLogger.WithField("topic", cfg.Kafka.SignalsTopic).Info("实时信号订阅已启动")
	}

	// 7. 配置Gin运行模式（从配置读取：debug/release）
	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()

	// 注册ppof 方便调试和监测性能问题
	pprof.Register(r)
	logrusLogger.Infof("Gin运行模式: %s", cfg.Server.Mode)

	if cfg.Metrics.Enabled {
		r.Use(a.Metrics.GinMiddleware())
		r.GET(cfg.Metrics.Path, gin.WrapH(a.Metrics.Handler()))
	}

	// 8. 注册API路由
	api.RegisterRoutes(r, api.Handlers{
		Jobs:     api.NewJobHandler(a.Recompute, logrusLogger),
		Signals:  api.NewSignalHandler(a.Signals, logrusLogger),
		Programs: api.NewProgramHandler(a.Programs, logrusLogger),
		Accounts: api.NewAccountHandler(a.Accounts, logrusLogger),
		Admin:    api.NewAdminHandler(a.Admin, logrusLogger),
	})

	// 9. 启动服务（从配置读取端口），收到退出信号后优雅关闭
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: r}
	go func() {
		logrusLogger.Infof("服务启动成功，端口：%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrusLogger.Fatalf("启动服务失败: %v", err)
		}
	}()

	<-ctx.Done()
	logrusLogger.Info("收到退出信号，正在关闭服务…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrusLogger.WithError(err).Error("服务关闭失败")
	}
}
