package initial

import (
	"AuraPilot/internal/config"
	"AuraPilot/pkg/zlog"
)

// 本文件按文件名排在 initial 包最前，保证日志器先于其它组件初始化
func init() {
	conf := config.GetConfig()
	zlog.InitLogger(conf.LogConfig.LogPath)
}
