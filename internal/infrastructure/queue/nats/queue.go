package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/resilience"
)

const workerQueueGroup = "manual-workers"

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	Executor       *resilience.Executor
	Logger         *slog.Logger
}

func New(url, subject string, options Options) (*Queue, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(
		url,
		nats.Name("manual-assistant"),
		nats.Timeout(durationOr(options.ConnectTimeout, 2*time.Second)),
		nats.ReconnectWait(durationOr(options.ReconnectWait, 2*time.Second)),
		nats.MaxReconnects(intOr(options.MaxReconnects, 60)),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.Executor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// manualUploaded is the wire form of an ingestion request.
type manualUploaded struct {
	ManualID   string    `json:"manual_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func encodeEvent(manualID string, at time.Time) ([]byte, error) {
	return json.Marshal(manualUploaded{ManualID: manualID, UploadedAt: at.UTC()})
}

// decodeEvent accepts the JSON event or a bare manual ID.
func decodeEvent(data []byte) (string, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return "", errors.New("empty message")
	}
	if !strings.HasPrefix(raw, "{") {
		return raw, nil
	}
	var ev manualUploaded
	if err := json.Unmarshal(data, &ev); err != nil {
		return "", fmt.Errorf("decode event: %w", err)
	}
	if ev.ManualID == "" {
		return "", errors.New("event has no manual_id")
	}
	return ev.ManualID, nil
}

func (q *Queue) PublishManualUploaded(ctx context.Context, manualID string) error {
	payload, err := encodeEvent(manualID, time.Now())
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = q.executor.Execute(ctx, "nats.publish", func(context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}, classifyNATSError)
	if err != nil && !domain.IsKind(err, domain.ErrTemporary) &&
		(resilience.IsCircuitOpen(err) || classifyNATSError(err).Retryable) {
		return domain.WrapError(domain.ErrTemporary, "nats publish", err)
	}
	return err
}

// SubscribeManualUploaded blocks until ctx is done, then drains the
// subscription so in-flight handlers finish.
func (q *Queue) SubscribeManualUploaded(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		manualID, err := decodeEvent(msg.Data)
		if err != nil {
			q.logger.Error("nats_message_rejected", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(ctx, manualID); err != nil {
			q.logger.Error("manual_processing_failed", "manual_id", manualID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func classifyNATSError(err error) resilience.Classification {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.Classification{}
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrConnectionReconnecting):
		return resilience.Classification{Retryable: true, Trips: true}
	default:
		return resilience.Classification{Trips: true}
	}
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func intOr(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}
