package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestBackoffWithJitterBounds(t *testing.T) {
	min, max := 50*time.Millisecond, 2*time.Second
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
	if d := backoffWithJitter(min, max, 1); d > min {
		t.Fatalf("first attempt should not exceed min, got %v", d)
	}
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]int{"a": 1})
	if err != nil || string(b) != `{"a":1}` {
		t.Fatalf("json encode: %s %v", b, err)
	}
	b, _ = encodeValue("raw")
	if string(b) != "raw" {
		t.Fatalf("string passthrough: %s", b)
	}
	if _, err := encodeValue(make(chan int)); err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestHookChainOrderAndPanic(t *testing.T) {
	var order []string
	h1 := HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			order = append(order, "before1")
			return ctx, km, append(data, '1'), nil
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { order = append(order, "after1") },
	}
	h2 := HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			order = append(order, "before2")
			return ctx, km, append(data, '2'), nil
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { order = append(order, "after2") },
	}
	chain := NewHookChain(h1, nil, h2)

	_, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("x"))
	if err != nil {
		t.Fatalf("before: %v", err)
	}
	if string(data) != "x12" {
		t.Fatalf("data not threaded: %s", data)
	}
	chain.AfterHandle(context.Background(), "t", kafka.Message{}, data, nil)
	want := []string{"before1", "before2", "after2", "after1"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v", order)
		}
	}

	panicky := HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
		panic("bad")
	}}
	_, _, _, err = NewHookChain(panicky).BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	if !errors.As(err, &he) || he.Code != "ERR_PANIC" {
		t.Fatalf("expected ERR_PANIC, got %v", err)
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := NewConsumer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
