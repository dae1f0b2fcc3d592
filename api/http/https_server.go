package http

import (
	"context"
	"fmt"
	"strings"

	"AuraPilot/internal/config"
	"AuraPilot/internal/initial"
	jwtMiddleware "AuraPilot/internal/middleware/jwt"
	"AuraPilot/internal/modules/rag/application/service"
	"AuraPilot/internal/modules/rag/domain/document"
	"AuraPilot/internal/modules/rag/domain/repository"
	"AuraPilot/internal/modules/rag/infrastructure/chunking"
	embeddingProvider "AuraPilot/internal/modules/rag/infrastructure/embedding"
	"AuraPilot/internal/modules/rag/infrastructure/extract"
	"AuraPilot/internal/modules/rag/infrastructure/filestore"
	"AuraPilot/internal/modules/rag/infrastructure/llm"
	"AuraPilot/internal/modules/rag/infrastructure/mq/kafka"
	"AuraPilot/internal/modules/rag/infrastructure/persistence"
	"AuraPilot/internal/modules/rag/infrastructure/pipeline"
	"AuraPilot/internal/modules/rag/infrastructure/queue"
	"AuraPilot/internal/modules/rag/infrastructure/vectordb"
	ragHandler "AuraPilot/internal/modules/rag/interface/http"
	"AuraPilot/pkg/back"
	"AuraPilot/pkg/ssl"
	"AuraPilot/pkg/util"
	"AuraPilot/pkg/util/myjwt"
	"AuraPilot/pkg/xerr"
	"AuraPilot/pkg/zlog"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var GE *gin.Engine

// 退出时需要释放的资源（dispatcher、kafka consumer）
var (
	ingestDispatcher queue.Dispatcher
	consumerWorker   *queue.IngestConsumerWorker
	consumerCancel   context.CancelFunc
)

func init() {
	conf := config.GetConfig()

	GE = gin.Default()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	GE.Use(cors.New(corsConfig))
	if conf.MainConfig.EnableTLS {
		GE.Use(ssl.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port))
	}

	ctx := context.Background()

	// ---- 向量化 provider：启动时实测维度，和集合配置不一致立即终止 ----
	embedder, embMeta, err := embeddingProvider.NewEmbedderFromConfig(ctx, conf)
	if err != nil {
		zlog.Fatal("embedding provider init failed: " + err.Error())
		return
	}
	probedDim, err := embeddingProvider.ProbeDimension(ctx, embedder)
	if err != nil {
		zlog.Fatal("embedding dimension probe failed: " + err.Error())
		return
	}
	if probedDim != conf.MilvusConfig.VectorDim {
		zlog.Fatal(fmt.Errorf("%w: embedding dim mismatch provider=%d collection=%d",
			document.ErrConfiguration, probedDim, conf.MilvusConfig.VectorDim).Error())
		return
	}

	// ---- 对话模型：初始化失败不致命，问答走降级路径 ----
	var gen llm.Generator
	chatModelReady := false
	cm, cmMeta, err := llm.NewChatModelFromConfig(ctx, conf)
	if err != nil {
		zlog.Warn("chat model unavailable, answers will degrade to excerpts", zap.Error(err))
	} else {
		gen = llm.NewGenerator(cm)
		chatModelReady = true
	}

	// ---- 存储选型：按配置/连接情况选 Milvus 或内存、MySQL 或内存 ----
	var vs repository.VectorStore
	vectorStoreName := "memory"
	if initial.MilvusClient != nil {
		collection := strings.TrimSpace(conf.MilvusConfig.CollectionName)
		if collection == "" {
			collection = "document_chunks"
		}
		ms, err := vectordb.NewMilvusStore(initial.MilvusClient, collection, conf.MilvusConfig.VectorDim)
		if err != nil {
			zlog.Fatal("milvus vector store init failed: " + err.Error())
			return
		}
		vs = ms
		vectorStoreName = "milvus"
	} else {
		vs = vectordb.NewMemoryStore()
	}

	var docRepo repository.DocumentRepository
	var msgRepo repository.ChatMessageRepository
	docStoreName := "memory"
	if initial.GormDB != nil {
		docRepo = persistence.NewDocumentRepository(initial.GormDB)
		msgRepo = persistence.NewChatMessageRepository(initial.GormDB)
		docStoreName = "mysql"
	} else {
		docRepo = persistence.NewMemoryDocumentStore()
		msgRepo = persistence.NewMemoryChatMessageStore()
	}

	files, err := filestore.NewLocalStore(conf.RagConfig.UploadDir)
	if err != nil {
		zlog.Fatal("file store init failed: " + err.Error())
		return
	}

	// ---- 流水线 ----
	var chunker *chunking.SimpleChunker
	if conf.RagConfig.UseRecursiveSplit {
		chunker = chunking.NewRecursiveChunker(conf.RagConfig.ChunkSize, conf.RagConfig.ChunkOverlap)
	} else {
		chunker = chunking.NewSimpleChunker(conf.RagConfig.ChunkSize, conf.RagConfig.ChunkOverlap)
	}
	extractor := extract.NewExtractor()

	ingestPipeline, err := pipeline.NewIngestPipeline(docRepo, vs, embedder, files, extractor, chunker, conf.MilvusConfig.VectorDim)
	if err != nil {
		zlog.Fatal("ingest pipeline init failed: " + err.Error())
		return
	}
	queryPipeline, err := pipeline.NewQueryPipeline(vs, embedder, gen, pipeline.QueryPipelineConfig{
		VectorDim:       conf.MilvusConfig.VectorDim,
		TopK:            conf.RagConfig.TopK,
		MinScore:        conf.RagConfig.MinScore,
		MaxContextChars: conf.RagConfig.MaxContextChars,
	})
	if err != nil {
		zlog.Fatal("query pipeline init failed: " + err.Error())
		return
	}

	// ---- 索引任务派发：inline 协程池 或 kafka ----
	switch conf.RagConfig.IngestMode {
	case "kafka":
		if err := kafka.EnsureTopic(kafka.TopicAdminConfig{
			Brokers:  conf.KafkaConfig.Brokers,
			ClientID: conf.KafkaConfig.ClientID,
		}, conf.KafkaConfig.IngestTopic, conf.KafkaConfig.Partitions, conf.KafkaConfig.Replication); err != nil {
			zlog.Fatal("kafka ensure topic failed: " + err.Error())
			return
		}
		publisher, err := kafka.NewSaramaPublisher(kafka.PublisherConfig{
			Brokers:  conf.KafkaConfig.Brokers,
			ClientID: conf.KafkaConfig.ClientID,
		})
		if err != nil {
			zlog.Fatal("kafka publisher init failed: " + err.Error())
			return
		}
		ingestDispatcher, err = queue.NewKafkaDispatcher(publisher, conf.KafkaConfig.IngestTopic)
		if err != nil {
			zlog.Fatal("kafka dispatcher init failed: " + err.Error())
			return
		}

		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:  conf.KafkaConfig.Brokers,
			GroupID:  conf.KafkaConfig.ConsumerGroupID,
			Topics:   []string{conf.KafkaConfig.IngestTopic},
			ClientID: conf.KafkaConfig.ClientID,
		})
		if err != nil {
			zlog.Fatal("kafka consumer init failed: " + err.Error())
			return
		}
		consumerWorker = queue.NewIngestConsumerWorker(consumer, ingestPipeline)
		var workerCtx context.Context
		workerCtx, consumerCancel = context.WithCancel(context.Background())
		go func() {
			if err := consumerWorker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
				zlog.Error("ingest consumer stopped", zap.Error(err))
			}
		}()
	default:
		ingestDispatcher, err = queue.NewInlineDispatcher(ingestPipeline, conf.RagConfig.IngestConcurrency)
		if err != nil {
			zlog.Fatal("inline dispatcher init failed: " + err.Error())
			return
		}
	}

	// ---- service / handler ----
	docSvc := service.NewDocumentService(docRepo, vs, files, ingestDispatcher)
	chatSvc := service.NewChatService(queryPipeline, msgRepo, conf.RagConfig.HistoryTurns)

	docH := ragHandler.NewDocumentHandler(docSvc)
	chatH := ragHandler.NewChatHandler(chatSvc)
	statusH := ragHandler.NewStatusHandler(ragHandler.ProviderStatus{
		EmbeddingProvider: embMeta.Provider,
		EmbeddingModel:    embMeta.Model,
		EmbeddingDim:      embMeta.Dim,
		ChatModelProvider: cmMeta.Provider,
		ChatModelReady:    chatModelReady,
		VectorStore:       vectorStoreName,
		DocumentStore:     docStoreName,
		IngestMode:        conf.RagConfig.IngestMode,
	})

	GE.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	// 令牌签发边界：用户体系由外部身份系统承担，这里仅换发本服务的 JWT
	GE.POST("/auth/token", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
		}
		if err := c.BindJSON(&req); err != nil {
			back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
			return
		}
		token, err := myjwt.GenerateToken(util.GenerateUUID(), req.Username)
		if err != nil {
			zlog.Error("token generation failed", zap.Error(err))
			back.Error(c, xerr.ErrServerError.Code, xerr.ErrServerError.Message)
			return
		}
		back.Success(c, gin.H{"token": token})
	})

	authed := GE.Group("/")
	authed.Use(jwtMiddleware.Auth())
	authed.GET("/auth/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"uuid":     c.GetString("uuid"),
			"username": c.GetString("username"),
		})
	})
	authed.GET("/rag/status", statusH.Status)
	authed.POST("/rag/documents", docH.Upload)
	authed.GET("/rag/documents", docH.List)
	authed.GET("/rag/documents/:id", docH.Get)
	authed.POST("/rag/documents/:id/reindex", docH.Reindex)
	authed.DELETE("/rag/documents/:id", docH.Delete)
	authed.POST("/rag/chat/query", chatH.Query)
	authed.GET("/rag/chat/history", chatH.History)
	authed.DELETE("/rag/chat/history", chatH.ClearHistory)
}

// Shutdown 释放后台资源：停 kafka consumer、等在途索引任务结束
func Shutdown() {
	if consumerCancel != nil {
		consumerCancel()
	}
	if consumerWorker != nil {
		_ = consumerWorker.Close()
	}
	if ingestDispatcher != nil {
		_ = ingestDispatcher.Close()
	}
}
