package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	api "AuraPilot/api/http"
	"AuraPilot/internal/config"
	_ "AuraPilot/internal/initial"
	"AuraPilot/pkg/redis"
	"AuraPilot/pkg/zlog"
)

func main() {
	conf := config.GetConfig()
	addr := fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port)

	go func() {
		zlog.Info("AuraPilot 启动: " + addr)
		if err := api.GE.Run(addr); err != nil {
			zlog.Fatal("服务启动失败: " + err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("正在关闭服务器...")
	// 等在途索引任务收尾，再断开外部连接
	api.Shutdown()
	redis.Close()
	zlog.Sync()
	zlog.Info("服务器已退出")
}
