package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"possystem/internal/config"
	"possystem/internal/handler"
	"possystem/internal/infrastructure/cache"
	"possystem/internal/infrastructure/lock"
	"possystem/internal/infrastructure/mq"
	"possystem/internal/job"
	"possystem/internal/store"
	"possystem/pkg/idgen"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 初始化 ID 生成器
	idgen.Init(1)

	// 打开存储文件（进程生命周期内只打开一次，退出时冲刷）
	s := store.Open(cfg.Storage.Path)
	defer func() {
		if err := s.Close(); err != nil {
			log.Printf("存储冲刷失败: %v", err)
		}
	}()

	// 初始化 Redis（可选，仅分布式锁用）
	redisClient := cache.InitRedis(&cfg.Redis)
	locks := lock.NewProvider(redisClient)

	// 初始化 Kafka（可选）
	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动发件箱投递任务（Kafka 未启用时不启动）
	if cfg.Kafka.Enabled {
		outboxSender := job.NewOutboxSender(s, cfg)
		go outboxSender.Start(ctx)
	}

	// 设置路由
	router := handler.SetupRouter(s, locks, cfg)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
