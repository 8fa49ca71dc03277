// Package nats broadcasts document change events between replicas.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/simdex/internal/domain"
	"github.com/kailas-cloud/simdex/internal/resilience"
)

// Options tunes the NATS connection.
type Options struct {
	Name                 string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	Executor             *resilience.Executor
	Logger               *zap.Logger
}

// Bus publishes and receives domain.DocumentChange events on one subject.
type Bus struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *zap.Logger
}

// Connect dials NATS. Connection loss is retried in the background.
func Connect(url, subject string, options Options) (*Bus, error) {
	if subject == "" {
		return nil, errors.New("nats subject is required")
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	name := options.Name
	if name == "" {
		name = "simdex"
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Bus{
		conn:     conn,
		subject:  subject,
		executor: options.Executor,
		logger:   logger,
	}, nil
}

// Close closes the connection.
func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// Ping reports whether the connection is usable.
func (b *Bus) Ping(context.Context) error {
	if b.conn == nil || !b.conn.IsConnected() {
		return nats.ErrDisconnected
	}
	return nil
}

// Publish sends a change event. Stamps At when zero.
func (b *Bus) Publish(ctx context.Context, change domain.DocumentChange) error {
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	call := func(_ context.Context) error {
		if err := b.conn.Publish(b.subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", change.Op, err)
	}
	return nil
}

// Subscribe delivers every change event to handler until ctx is done.
// Every replica receives every event (no queue group): each one owns an
// in-memory lexical index that must follow the corpus.
func (b *Bus) Subscribe(ctx context.Context, handler func(context.Context, domain.DocumentChange) error) error {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		var change domain.DocumentChange
		if err := json.Unmarshal(msg.Data, &change); err != nil {
			b.logger.Warn("Dropping malformed change event", zap.ByteString("data", msg.Data), zap.Error(err))
			return
		}
		if err := handler(ctx, change); err != nil {
			b.logger.Error("Change handler failed",
				zap.String("op", string(change.Op)),
				zap.String("document_id", change.DocumentID),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func classifyNATSError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}
