// Package syncbus 通过 NATS request/reply 接收外部同步批次
//
// 每条请求消息的 payload 为 dto.ReconcileRequest 的 JSON，
// 回复为与 HTTP 接口一致的响应信封。
package syncbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/config"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/dto"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/repository"
	"github.com/CyberArcenal/Kabisilya-Management-sub006/internal/service"
	pkgerrors "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/errors"
)

// 单批处理超时
const processTimeout = 60 * time.Second

// Stop 等待排空的上限；比单批超时稍长
const drainTimeout = processTimeout + 5*time.Second

// Reply 回复信封
type Reply struct {
	Status  bool                 `json:"status"`
	Kind    string               `json:"kind,omitempty"`
	Message string               `json:"message"`
	Data    *dto.ReconcileResult `json:"data,omitempty"`
}

// Consumer 同步批次消费者；同一 queue group 内多实例分摊消息
type Consumer struct {
	nc        *nats.Conn
	cfg       config.NATSConfig
	sessions  service.SessionService
	reconcile service.ReconcileService
	txm       repository.TxManager
	logger    *zap.Logger

	sub          *nats.Subscription
	drainTimeout time.Duration
}

// NewConsumer 创建 Consumer 实例
func NewConsumer(
	nc *nats.Conn,
	cfg config.NATSConfig,
	svc *service.Service,
	txm repository.TxManager,
	logger *zap.Logger,
) *Consumer {
	return &Consumer{
		nc:        nc,
		cfg:       cfg,
		sessions:  svc.Session,
		reconcile: svc.Reconcile,
		txm:       txm,
		logger:    logger.Named("syncbus"),

		drainTimeout: drainTimeout,
	}
}

// Connect 按配置连接 NATS，断线重连事件写入日志
func Connect(cfg config.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("kabisilya-assignment-sync"),
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS 连接断开", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS 已重连", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("连接 NATS 失败: %w", err)
	}
	return nc, nil
}

// Start 订阅同步主题
func (c *Consumer) Start() error {
	if c.sub != nil {
		return errors.New("syncbus: consumer already started")
	}
	sub, err := c.nc.QueueSubscribe(c.cfg.Subject, c.cfg.Queue, c.handle)
	if err != nil {
		return fmt.Errorf("订阅 %s 失败: %w", c.cfg.Subject, err)
	}
	c.sub = sub
	c.logger.Info("同步消费者已启动",
		zap.String("subject", c.cfg.Subject),
		zap.String("queue", c.cfg.Queue),
	)
	return nil
}

// Stop 排空订阅，处理中的消息完成后返回；超过 drainTimeout 返回错误
//
// Drain 本身是异步的，订阅失效才表示排空结束。
func (c *Consumer) Stop() error {
	if c.sub == nil {
		return nil
	}
	sub := c.sub
	c.sub = nil
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("排空订阅失败: %w", err)
	}

	deadline := time.Now().Add(c.drainTimeout)
	for sub.IsValid() {
		if time.Now().After(deadline) {
			return fmt.Errorf("syncbus: drain did not finish within %s", c.drainTimeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.logger.Info("同步消费者已停止")
	return nil
}

func (c *Consumer) handle(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	reply := c.Process(ctx, msg.Data)
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(reply); err != nil {
		c.logger.Warn("回复同步请求失败", zap.Error(err))
	}
}

// Process 解码 → 取当前经营周期 → 同一事务内执行同步 → 编码回复
func (c *Consumer) Process(ctx context.Context, data []byte) []byte {
	var req dto.ReconcileRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return c.encode(failure(pkgerrors.Validationf("invalid sync payload: %v", err)))
	}
	if len(req.Records) == 0 {
		return c.encode(failure(pkgerrors.Validationf("sync batch contains no records")))
	}

	var result *dto.ReconcileResult
	err := c.txm.RunInTx(ctx, func(ctx context.Context) error {
		sessionID, err := c.sessions.CurrentID(ctx)
		if err != nil {
			return err
		}
		result, err = c.reconcile.Reconcile(ctx, &req, sessionID, c.cfg.ActorID)
		return err
	})
	if err != nil {
		c.logger.Warn("同步批次失败", zap.String("source_id", req.SourceID), zap.Error(err))
		return c.encode(failure(err))
	}

	return c.encode(Reply{Status: true, Message: "sync completed", Data: result})
}

func failure(err error) Reply {
	kind := pkgerrors.KindOf(err)
	message := err.Error()
	if kind == pkgerrors.KindPersistence || kind == pkgerrors.KindUnknown {
		message = "internal server error"
	}
	return Reply{Status: false, Kind: kind.String(), Message: message}
}

func (c *Consumer) encode(r Reply) []byte {
	b, err := json.Marshal(r)
	if err != nil {
		c.logger.Error("编码同步回复失败", zap.Error(err))
		return []byte(`{"status":false,"message":"internal server error"}`)
	}
	return b
}
