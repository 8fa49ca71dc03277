package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/kailas-cloud/simdex/internal/domain"
	"github.com/kailas-cloud/simdex/internal/resilience"
)

func startTestNATSServer(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}
	server, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("new nats server: %v", err)
	}
	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server.ClientURL()
}

func connect(t *testing.T, url string) *Bus {
	t.Helper()
	b, err := Connect(url, "simdex.test.changed", Options{
		Executor: resilience.NewExecutor(resilience.DefaultConfig(), nil),
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

// subscribe starts Subscribe in the background and waits until it is live.
func subscribe(t *testing.T, b *Bus) (<-chan domain.DocumentChange, context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan domain.DocumentChange, 8)
	done := make(chan error, 1)
	go func() {
		done <- b.Subscribe(ctx, func(_ context.Context, c domain.DocumentChange) error {
			got <- c
			return nil
		})
	}()
	deadline := time.Now().Add(2 * time.Second)
	for b.conn.NumSubscriptions() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return got, cancel, done
}

func TestBus_BroadcastsToEveryReplica(t *testing.T) {
	url := startTestNATSServer(t)
	pub := connect(t, url)
	r1, r2 := connect(t, url), connect(t, url)

	got1, cancel1, done1 := subscribe(t, r1)
	got2, cancel2, done2 := subscribe(t, r2)
	if err := r1.conn.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := r2.conn.Flush(); err != nil {
		t.Fatal(err)
	}

	err := pub.Publish(context.Background(), domain.DocumentChange{DocumentID: "r7", Op: domain.ChangeUpsert})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	for i, ch := range []<-chan domain.DocumentChange{got1, got2} {
		select {
		case c := <-ch:
			if c.DocumentID != "r7" || c.Op != domain.ChangeUpsert || c.At.IsZero() {
				t.Errorf("replica %d got %+v", i, c)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("replica %d: no event", i)
		}
	}

	cancel1()
	cancel2()
	for _, done := range []<-chan error{done1, done2} {
		if err := <-done; err != nil {
			t.Errorf("subscribe returned %v", err)
		}
	}
}

func TestBus_DropsMalformedEvents(t *testing.T) {
	url := startTestNATSServer(t)
	b := connect(t, url)
	got, cancel, done := subscribe(t, b)
	defer func() {
		cancel()
		<-done
	}()

	if err := b.conn.Publish(b.subject, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish(context.Background(), domain.DocumentChange{Op: domain.ChangeRebuild}); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-got:
		if c.Op != domain.ChangeRebuild {
			t.Errorf("expected only the valid event, got %+v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
}

func TestBus_PublishAfterClose(t *testing.T) {
	url := startTestNATSServer(t)
	b := connect(t, url)
	b.Close()

	err := b.Publish(context.Background(), domain.DocumentChange{Op: domain.ChangeDelete, DocumentID: "x"})
	if !errors.Is(err, nats.ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
	if b.Ping(context.Background()) == nil {
		t.Error("ping must fail after close")
	}
}

func TestConnect_RequiresSubject(t *testing.T) {
	if _, err := Connect("nats://127.0.0.1:1", "", Options{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestClassifyNATSError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want resilience.ErrorClassification
	}{
		{"nil", nil, resilience.ErrorClassification{}},
		{"canceled", context.Canceled, resilience.ErrorClassification{}},
		{"no servers", nats.ErrNoServers, resilience.ErrorClassification{Retryable: true, RecordFailure: true}},
		{"other", errors.New("bad subject"), resilience.ErrorClassification{RecordFailure: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyNATSError(tt.err); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
