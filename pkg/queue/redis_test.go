package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func testQueue(t *testing.T, backoff, maxBackoff time.Duration) *RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisQueueFromClient(client, backoff, maxBackoff, zap.NewNop())
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

type testPayload struct {
	Value int `json:"value"`
}

func TestEnqueueCounts(t *testing.T) {
	q := testQueue(t, time.Second, time.Minute)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "stage-a", testPayload{Value: 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, "stage-a", testPayload{Value: 2}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	counts, err := q.Counts(ctx, "stage-a")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Waiting != 2 {
		t.Fatalf("waiting = %d, want 2", counts.Waiting)
	}
	if counts.Active != 0 || counts.Delayed != 0 || counts.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestEnqueueBulk(t *testing.T) {
	q := testQueue(t, time.Second, time.Minute)
	ctx := context.Background()

	payloads := []any{testPayload{Value: 1}, testPayload{Value: 2}, testPayload{Value: 3}}
	if err := q.EnqueueBulk(ctx, "stage-a", payloads); err != nil {
		t.Fatalf("enqueue bulk: %v", err)
	}

	counts, err := q.Counts(ctx, "stage-a")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Waiting != 3 {
		t.Fatalf("waiting = %d, want 3", counts.Waiting)
	}
}

func TestRunDeliversPayloadToHandler(t *testing.T) {
	q := testQueue(t, time.Second, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan testPayload, 1)
	q.RegisterHandler("stage-a", 1, func(ctx context.Context, payload json.RawMessage) error {
		var p testPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return Permanent(err)
		}
		got <- p
		return nil
	})
	go q.Run(ctx)

	if err := q.Enqueue(ctx, "stage-a", testPayload{Value: 42}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case p := <-got:
		if p.Value != 42 {
			t.Fatalf("payload value = %d, want 42", p.Value)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("handler never received the task")
	}

	waitFor(t, 2*time.Second, func() bool {
		counts, err := q.Counts(context.Background(), "stage-a")
		return err == nil && counts.Waiting == 0 && counts.Active == 0
	})
}

func TestRetryableErrorMovesTaskToDelayed(t *testing.T) {
	// Backoff of a minute keeps the retried task parked in the delayed set
	// for the duration of the test.
	q := testQueue(t, time.Minute, 10*time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.RegisterHandler("stage-a", 1, func(ctx context.Context, payload json.RawMessage) error {
		return errors.New("upstream not ready")
	})
	go q.Run(ctx)

	if err := q.Enqueue(ctx, "stage-a", testPayload{Value: 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		counts, err := q.Counts(context.Background(), "stage-a")
		return err == nil && counts.Delayed == 1
	})

	members, err := q.client.ZRange(context.Background(), delayedKey("stage-a"), 0, -1).Result()
	if err != nil || len(members) != 1 {
		t.Fatalf("delayed members: %v, err %v", members, err)
	}
	var task Task
	if err := json.Unmarshal([]byte(members[0]), &task); err != nil {
		t.Fatalf("unmarshal delayed task: %v", err)
	}
	if task.Retries != 1 {
		t.Fatalf("retries = %d, want 1", task.Retries)
	}
}

func TestPermanentErrorDeadLetters(t *testing.T) {
	q := testQueue(t, time.Second, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.RegisterHandler("stage-a", 1, func(ctx context.Context, payload json.RawMessage) error {
		return Permanent(errors.New("malformed row"))
	})
	go q.Run(ctx)

	if err := q.Enqueue(ctx, "stage-a", testPayload{Value: 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		counts, err := q.Counts(context.Background(), "stage-a")
		return err == nil && counts.Failed == 1 && counts.Delayed == 0
	})
}

func TestUndecodableTaskDeadLetters(t *testing.T) {
	q := testQueue(t, time.Second, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.RegisterHandler("stage-a", 1, func(ctx context.Context, payload json.RawMessage) error {
		t.Errorf("handler invoked for undecodable task")
		return nil
	})
	go q.Run(ctx)

	if err := q.client.LPush(ctx, pendingKey("stage-a"), "not json").Err(); err != nil {
		t.Fatalf("lpush: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		counts, err := q.Counts(context.Background(), "stage-a")
		return err == nil && counts.Failed == 1
	})
}

func TestDelayedTaskIsPromoted(t *testing.T) {
	q := testQueue(t, 10*time.Millisecond, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan int, 8)
	attempt := 0
	q.RegisterHandler("stage-a", 1, func(ctx context.Context, payload json.RawMessage) error {
		attempt++
		calls <- attempt
		if attempt == 1 {
			return errors.New("transient")
		}
		return nil
	})
	go q.Run(ctx)

	if err := q.Enqueue(ctx, "stage-a", testPayload{Value: 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// First attempt fails, the promoter moves the retry back to pending and
	// the second attempt succeeds.
	for want := 1; want <= 2; want++ {
		select {
		case got := <-calls:
			if got != want {
				t.Fatalf("attempt = %d, want %d", got, want)
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("attempt %d never happened", want)
		}
	}
}

func TestPermanentMarksErrors(t *testing.T) {
	base := errors.New("boom")
	if !IsPermanent(Permanent(base)) {
		t.Fatalf("Permanent error not detected")
	}
	if IsPermanent(base) {
		t.Fatalf("plain error reported permanent")
	}
	if !errors.Is(Permanent(base), base) {
		t.Fatalf("Permanent must preserve the error chain")
	}
	if Permanent(nil) != nil {
		t.Fatalf("Permanent(nil) must be nil")
	}
}
