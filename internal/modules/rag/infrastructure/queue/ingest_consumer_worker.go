package queue

import (
	"context"
	"errors"
	"strings"

	"AuraPilot/internal/modules/rag/domain/document"
	"AuraPilot/internal/modules/rag/infrastructure/mq"
	"AuraPilot/internal/modules/rag/infrastructure/pipeline"
	"AuraPilot/pkg/zlog"

	"go.uber.org/zap"
)

// IngestConsumerWorker kafka 模式下的索引 worker：
// 消费文档 ID，调流水线执行。业务失败（文档已落 failed 终态）
// 不重试，消息照常提交；只有基础设施错误才留给重投。
type IngestConsumerWorker struct {
	consumer mq.Consumer
	pipeline *pipeline.IngestPipeline
}

func NewIngestConsumerWorker(consumer mq.Consumer, p *pipeline.IngestPipeline) *IngestConsumerWorker {
	return &IngestConsumerWorker{consumer: consumer, pipeline: p}
}

func (w *IngestConsumerWorker) Run(ctx context.Context) error {
	if w == nil || w.consumer == nil {
		return errors.New("consumer is nil")
	}
	if w.pipeline == nil {
		return errors.New("pipeline is nil")
	}
	return w.consumer.Run(ctx, w)
}

func (w *IngestConsumerWorker) Handle(ctx context.Context, msg mq.Message) error {
	documentID := strings.TrimSpace(string(msg.Value))
	if documentID == "" {
		zlog.Warn("ingest consumer got empty document id", zap.String("topic", msg.Topic))
		return nil
	}

	_, err := w.pipeline.Ingest(ctx, documentID)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, document.ErrDocumentNotFound):
		// 文档已被删除，消息作废
		return nil
	case errors.Is(err, document.ErrDocumentBusy):
		// 另一个 worker 在处理，重复消息不重试
		zlog.Info("ingest consumer skip busy document", zap.String("documentId", documentID))
		return nil
	case errors.Is(err, document.ErrExtraction),
		errors.Is(err, document.ErrEmbedding),
		errors.Is(err, document.ErrVectorStore):
		// 业务失败已落 failed 终态，重投不会有不同结果
		zlog.Warn("ingest consumer document failed",
			zap.String("documentId", documentID), zap.Error(err))
		return nil
	default:
		zlog.Warn("ingest consumer infrastructure error, message will be redelivered",
			zap.String("documentId", documentID), zap.Error(err))
		return err
	}
}

func (w *IngestConsumerWorker) Close() error {
	if w == nil || w.consumer == nil {
		return nil
	}
	return w.consumer.Close()
}
