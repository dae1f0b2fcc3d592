package initial

import (
	"fmt"
	"log"
	"os"
	"time"

	"AuraPilot/internal/config"
	"AuraPilot/internal/modules/rag/domain/document"
	"AuraPilot/pkg/zlog"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var GormDB *gorm.DB

func init() {
	conf := config.GetConfig()
	// docStore=memory 时跳过 MySQL，文档记录走内存兜底实现
	if conf.RagConfig.DocStore != "mysql" || conf.MysqlConfig.Host == "" {
		zlog.Info("MySQL 未启用，文档记录使用内存存储")
		return
	}

	dbName := conf.MysqlConfig.DatabaseName
	if dbName == "" {
		dbName = conf.AppName
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		conf.MysqlConfig.User, conf.MysqlConfig.Password,
		conf.MysqlConfig.Host, conf.MysqlConfig.Port, dbName)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var err error
	GormDB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		zlog.Fatal(err.Error())
	}

	// 自动迁移，如果没有建表，会自动创建对应的表
	err = GormDB.AutoMigrate(
		&document.Document{},
		&document.ChatMessage{},
	)
	if err != nil {
		zlog.Fatal(err.Error())
	}
}
