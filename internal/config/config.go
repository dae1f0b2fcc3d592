package config

import (
	"log"
	"os"

	"github.com/BurntSushi/toml"
)

type MainConfig struct {
	AppName   string `toml:"appName"`
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	EnableTLS bool   `toml:"enableTLS"`
}

type MysqlConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
}

type LogConfig struct {
	LogPath string `toml:"logPath"`
}

type JwtConfig struct {
	Key         string `toml:"key"`
	ExpireHours int    `toml:"expireHours"`
	Issuer      string `toml:"issuer"`
}

type MilvusConfig struct {
	Address        string `toml:"address"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	DBName         string `toml:"dbName"`
	CollectionName string `toml:"collectionName"`
	VectorDim      int    `toml:"vectorDim"`
	MetricType     string `toml:"metricType"`
}

type KafkaConfig struct {
	Brokers         []string `toml:"brokers"`
	ClientID        string   `toml:"clientID"`
	IngestTopic     string   `toml:"ingestTopic"`
	ConsumerGroupID string   `toml:"consumerGroupID"`
	Partitions      int32    `toml:"partitions"`
	Replication     int16    `toml:"replication"`
}

type RedisConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"poolSize"`
	MinIdleConns int    `toml:"minIdleConns"`
}

type AIEmbeddingConfig struct {
	Provider        string `toml:"provider"`
	APIKey          string `toml:"apiKey"`
	BaseURL         string `toml:"baseURL"`
	Model           string `toml:"model"`
	Dimensions      int    `toml:"dimensions"`
	TimeoutSeconds  int    `toml:"timeoutSeconds"`
	RetryTimes      int    `toml:"retryTimes"`
	ByAzure         bool   `toml:"byAzure"`
	AzureAPIVersion string `toml:"azureApiVersion"`
}

type AIChatModelConfig struct {
	Provider        string `toml:"provider"`
	APIKey          string `toml:"apiKey"`
	AccessKey       string `toml:"accessKey"`
	SecretKey       string `toml:"secretKey"`
	BaseURL         string `toml:"baseURL"`
	Region          string `toml:"region"`
	Model           string `toml:"model"`
	TimeoutSeconds  int    `toml:"timeoutSeconds"`
	RetryTimes      int    `toml:"retryTimes"`
	ByAzure         bool   `toml:"byAzure"`
	AzureAPIVersion string `toml:"azureApiVersion"`
}

type AIConfig struct {
	Embedding AIEmbeddingConfig `toml:"embedding"`
	ChatModel AIChatModelConfig `toml:"chatModel"`
}

// RagConfig RAG 流水线参数（切片、召回、上下文与并发控制）
type RagConfig struct {
	ChunkSize         int     `toml:"chunkSize"`
	ChunkOverlap      int     `toml:"chunkOverlap"`
	UseRecursiveSplit bool    `toml:"useRecursiveSplit"`
	TopK              int     `toml:"topK"`
	MinScore          float32 `toml:"minScore"`
	MaxContextChars   int     `toml:"maxContextChars"`
	HistoryTurns      int     `toml:"historyTurns"`
	// IngestMode 取值 inline（进程内协程池）或 kafka（经消息队列分发）
	IngestMode        string `toml:"ingestMode"`
	IngestConcurrency int    `toml:"ingestConcurrency"`
	// DocStore 取值 mysql 或 memory（无 MySQL 时的内存兜底实现）
	DocStore string `toml:"docStore"`
	// UploadDir 上传文件的落盘目录，索引任务按文档 ID 取回原始字节
	UploadDir string `toml:"uploadDir"`
}

type Config struct {
	MainConfig   `toml:"mainConfig"`
	MysqlConfig  `toml:"mysqlConfig"`
	JwtConfig    `toml:"jwtConfig"`
	MilvusConfig `toml:"milvusConfig"`
	KafkaConfig  `toml:"kafkaConfig"`
	RedisConfig  `toml:"redisConfig"`
	AIConfig     `toml:"aiConfig"`
	RagConfig    `toml:"ragConfig"`
	LogConfig    `toml:"logConfig"`
}

var config *Config

func LoadConfig() error {
	configPath := os.Getenv("AURAPILOT_CONFIG")
	if configPath == "" {
		configPath = "configs/config_local.toml"
	}
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		log.Printf("加载配置文件失败: %v, 尝试使用默认设置", err)
		return err
	}
	return nil
}

func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		_ = LoadConfig()
		config.ApplyDefaults()
	}
	return config
}

// ApplyDefaults 为 RAG 参数补齐默认值，保证未配置时流水线仍可运行
func (c *Config) ApplyDefaults() {
	if c.RagConfig.ChunkSize <= 0 {
		c.RagConfig.ChunkSize = 500
	}
	if c.RagConfig.ChunkOverlap < 0 {
		c.RagConfig.ChunkOverlap = 0
	}
	if c.RagConfig.ChunkOverlap >= c.RagConfig.ChunkSize {
		c.RagConfig.ChunkOverlap = c.RagConfig.ChunkSize / 10
	}
	if c.RagConfig.TopK <= 0 {
		c.RagConfig.TopK = 5
	}
	if c.RagConfig.MinScore == 0 {
		c.RagConfig.MinScore = 0.3
	}
	if c.RagConfig.MaxContextChars <= 0 {
		c.RagConfig.MaxContextChars = 4000
	}
	if c.RagConfig.HistoryTurns < 0 {
		c.RagConfig.HistoryTurns = 0
	}
	if c.RagConfig.IngestMode == "" {
		c.RagConfig.IngestMode = "inline"
	}
	if c.RagConfig.IngestConcurrency <= 0 {
		c.RagConfig.IngestConcurrency = 4
	}
	if c.RagConfig.DocStore == "" {
		c.RagConfig.DocStore = "mysql"
	}
	if c.RagConfig.UploadDir == "" {
		c.RagConfig.UploadDir = "data/uploads"
	}
	if c.MilvusConfig.VectorDim <= 0 {
		c.MilvusConfig.VectorDim = 384
	}
	if c.AIConfig.Embedding.Dimensions <= 0 {
		c.AIConfig.Embedding.Dimensions = c.MilvusConfig.VectorDim
	}
}
