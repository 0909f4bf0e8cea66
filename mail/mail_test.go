package mail

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLinks(t *testing.T) {
	l := Links{BaseURL: "https://app.example.com/"}
	if got := l.Verification("abc_-1"); got != "https://app.example.com/verify-email?token=abc_-1" {
		t.Fatalf("unexpected verification link %q", got)
	}
	if got := l.PasswordReset("a+b"); got != "https://app.example.com/reset-password?token=a%2Bb" {
		t.Fatalf("unexpected reset link %q", got)
	}
}

func TestVerificationMessage(t *testing.T) {
	msg, err := VerificationMessage("ann@x.com", "Ann <script>", "https://x/verify-email?token=t", 24*time.Hour, "en")
	if err != nil {
		t.Fatalf("VerificationMessage failed: %v", err)
	}
	if msg.To != "ann@x.com" || msg.Locale != "en" {
		t.Fatalf("unexpected envelope %+v", msg)
	}
	if !strings.Contains(msg.Text, "https://x/verify-email?token=t") || !strings.Contains(msg.Text, "24 hours") {
		t.Fatalf("text body missing link or expiry: %s", msg.Text)
	}
	if strings.Contains(msg.HTML, "<script>") {
		t.Fatal("html body must escape user-controlled name")
	}
}

func TestPasswordResetMessage(t *testing.T) {
	msg, err := PasswordResetMessage("ann@x.com", "Ann", "https://x/reset-password?token=t", time.Hour, "en")
	if err != nil {
		t.Fatalf("PasswordResetMessage failed: %v", err)
	}
	if !strings.Contains(msg.Text, "1 hour") || msg.Subject == "" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()
	_ = r.Send(ctx, Message{To: "a@x.com", Subject: "1"})
	_ = r.Send(ctx, Message{To: "b@x.com", Subject: "2"})
	_ = r.Send(ctx, Message{To: "a@x.com", Subject: "3"})

	last, ok := r.Last("a@x.com")
	if !ok || last.Subject != "3" {
		t.Fatalf("unexpected last message %+v", last)
	}
	if len(r.Messages()) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(r.Messages()))
	}

	boom := errors.New("smtp down")
	r.FailWith(boom)
	if err := r.Send(ctx, Message{To: "c@x.com"}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := r.Last("c@x.com"); ok {
		t.Fatal("failed send must not be recorded")
	}
}

func TestConsoleLogsMessage(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	c := NewConsole(zap.New(core))

	if err := c.Send(context.Background(), Message{To: "a@x.com", Subject: "Hello", Text: "body"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	entries := logs.FilterMessage("email").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["to"] != "a@x.com" {
		t.Fatalf("unexpected fields %v", entries[0].ContextMap())
	}
}

func TestDispatcherDeliversAndCounts(t *testing.T) {
	rec := NewRecorder()
	var mu sync.Mutex
	var results []Result
	d := NewDispatcher(DispatcherConfig{BufferSize: 8}, rec, nil, func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})

	for i := 0; i < 5; i++ {
		if !d.Enqueue(context.Background(), Message{To: "a@x.com"}) {
			t.Fatal("enqueue should succeed")
		}
	}
	d.Close()

	if d.Sent() != 5 || d.Failed() != 0 {
		t.Fatalf("expected 5 sent, got sent=%d failed=%d", d.Sent(), d.Failed())
	}
	if len(rec.Messages()) != 5 {
		t.Fatalf("expected 5 delivered, got %d", len(rec.Messages()))
	}
	mu.Lock()
	defer mu.Unlock()
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if d.Enqueue(context.Background(), Message{}) {
		t.Fatal("enqueue after close must fail")
	}
}

func TestDispatcherLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	failing := MailerFunc(func(context.Context, Message) error { return errors.New("refused") })
	d := NewDispatcher(DispatcherConfig{BufferSize: 1}, failing, zap.New(core), nil)

	d.Enqueue(context.Background(), Message{To: "a@x.com", Subject: "s"})
	d.Close()

	if d.Failed() != 1 {
		t.Fatalf("expected 1 failure, got %d", d.Failed())
	}
	if logs.FilterMessage("email delivery failed").Len() != 1 {
		t.Fatal("expected failure to be logged")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	slow := MailerFunc(func(ctx context.Context, _ Message) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	})
	d := NewDispatcher(DispatcherConfig{BufferSize: 1, DropIfFull: true}, slow, nil, nil)

	accepted := 0
	for i := 0; i < 10; i++ {
		if d.Enqueue(context.Background(), Message{}) {
			accepted++
		}
	}
	close(block)
	d.Close()

	if accepted > 2 {
		t.Fatalf("at most worker+buffer messages can be accepted, got %d", accepted)
	}
	if d.Dropped() != uint64(10-accepted) {
		t.Fatalf("expected %d dropped, got %d", 10-accepted, d.Dropped())
	}
}

func TestDispatcherFullQueueHonorsContext(t *testing.T) {
	block := make(chan struct{})
	slow := MailerFunc(func(ctx context.Context, _ Message) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	})
	d := NewDispatcher(DispatcherConfig{BufferSize: 1}, slow, nil, nil)
	defer d.Close()
	defer close(block)

	// One message parks the worker, the next fills the buffer.
	d.Enqueue(context.Background(), Message{})
	deadline := time.Now().Add(time.Second)
	for len(d.ch) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !d.Enqueue(context.Background(), Message{}) {
		t.Fatal("buffer slot should accept")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if d.Enqueue(ctx, Message{}) {
		t.Fatal("enqueue into a full queue must fail once ctx ends")
	}
	if time.Since(start) > time.Second {
		t.Fatal("enqueue ignored its context deadline")
	}
	if d.Dropped() != 1 {
		t.Fatalf("expected 1 dropped, got %d", d.Dropped())
	}
}

func TestDispatcherCloseReleasesBlockedEnqueue(t *testing.T) {
	block := make(chan struct{})
	slow := MailerFunc(func(context.Context, Message) error {
		<-block
		return nil
	})
	d := NewDispatcher(DispatcherConfig{BufferSize: 1, SendTimeout: time.Minute}, slow, nil, nil)

	d.Enqueue(context.Background(), Message{})
	deadline := time.Now().Add(time.Second)
	for len(d.ch) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Enqueue(context.Background(), Message{})

	result := make(chan bool, 1)
	go func() { result <- d.Enqueue(context.Background(), Message{}) }()
	time.Sleep(10 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()

	select {
	case ok := <-result:
		if ok {
			t.Fatal("blocked enqueue must not be accepted once Close starts")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not release the blocked enqueue")
	}
	close(block)
	<-closed
	if d.Sent() != 2 {
		t.Fatalf("expected both accepted messages delivered, got %d", d.Sent())
	}
}

func TestDispatcherAcceptedMessagesSurviveConcurrentClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		rec := NewRecorder()
		d := NewDispatcher(DispatcherConfig{BufferSize: 4, DropIfFull: true}, rec, nil, nil)

		var accepted atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					if d.Enqueue(context.Background(), Message{To: "a@x.com"}) {
						accepted.Add(1)
					}
				}
			}()
		}
		d.Close()
		wg.Wait()

		if got := int64(len(rec.Messages())); got != accepted.Load() {
			t.Fatalf("round %d: accepted %d messages but delivered %d", round, accepted.Load(), got)
		}
	}
}

func TestNilDispatcher(t *testing.T) {
	var d *Dispatcher
	if d.Enqueue(context.Background(), Message{}) {
		t.Fatal("nil dispatcher must not accept")
	}
	d.Close()
	if d.Sent() != 0 || d.Dropped() != 0 {
		t.Fatal("nil dispatcher counters must be zero")
	}
}
