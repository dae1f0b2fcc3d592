package queue

import (
	"context"
	"errors"
	"strings"
	"sync"

	"AuraPilot/internal/modules/rag/domain/document"
	"AuraPilot/internal/modules/rag/infrastructure/mq"
	"AuraPilot/internal/modules/rag/infrastructure/pipeline"
	"AuraPilot/pkg/zlog"

	"go.uber.org/zap"
)

// Dispatcher 把索引任务派发出去。上传接口立即返回，
// 任务由进程内协程池（inline）或 kafka 消费者（kafka）异步执行。
type Dispatcher interface {
	Dispatch(ctx context.Context, documentID string) error
	Close() error
}

// inlineDispatcher 进程内派发：有界协程池，信号量限并发。
// Close 等待在途任务跑完。
type inlineDispatcher struct {
	pipeline *pipeline.IngestPipeline
	sem      chan struct{}
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewInlineDispatcher(p *pipeline.IngestPipeline, concurrency int) (Dispatcher, error) {
	if p == nil {
		return nil, errors.New("ingest pipeline is nil")
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &inlineDispatcher{
		pipeline: p,
		sem:      make(chan struct{}, concurrency),
	}, nil
}

func (d *inlineDispatcher) Dispatch(ctx context.Context, documentID string) error {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return errors.New("missing document id")
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errors.New("dispatcher closed")
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.sem <- struct{}{}
		defer func() { <-d.sem }()

		// 请求的 ctx 在响应返回后就取消了，任务要用独立的 ctx
		if _, err := d.pipeline.Ingest(context.Background(), documentID); err != nil {
			if errors.Is(err, document.ErrDocumentBusy) {
				zlog.Info("文档索引任务被占用，跳过", zap.String("documentId", documentID))
				return
			}
			zlog.Warn("文档索引任务失败",
				zap.String("documentId", documentID), zap.Error(err))
		}
	}()
	return nil
}

func (d *inlineDispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
	return nil
}

// kafkaDispatcher 经消息队列派发：只发布文档 ID，worker 端取回执行。
// 文档 ID 同时作为 key，保证同一文档的事件落在同一分区按序消费。
type kafkaDispatcher struct {
	publisher mq.Publisher
	topic     string
}

func NewKafkaDispatcher(publisher mq.Publisher, topic string) (Dispatcher, error) {
	if publisher == nil {
		return nil, errors.New("publisher is nil")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("ingest topic is empty")
	}
	return &kafkaDispatcher{publisher: publisher, topic: topic}, nil
}

func (d *kafkaDispatcher) Dispatch(ctx context.Context, documentID string) error {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return errors.New("missing document id")
	}
	_, err := d.publisher.Publish(ctx, mq.Message{
		Topic: d.topic,
		Key:   []byte(documentID),
		Value: []byte(documentID),
	})
	return err
}

func (d *kafkaDispatcher) Close() error {
	return d.publisher.Close()
}
