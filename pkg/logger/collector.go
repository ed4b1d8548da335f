package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"sync"
	"time"
)

// Publisher ships aggregated entries, typically to the Kafka logs topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush period
	CountThreshold int           // distinct entries that force an early flush
	Topic          string
	Publisher      Publisher
	PublishTimeout time.Duration
}

// AggregatedLogEntry is one distinct log line with how often it repeated.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector folds repeated entries together and publishes them in batches,
// either every TimeInterval or once CountThreshold distinct entries piled up.
type LogCollector struct {
	cfg     CollectionConfig
	mu      sync.Mutex
	entries map[uint64]*AggregatedLogEntry
	stop    chan struct{}
	once    sync.Once
	loopWg  sync.WaitGroup
	sendWg  sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 30 * time.Second
	}
	c := &LogCollector{
		cfg:     cfg,
		entries: make(map[uint64]*AggregatedLogEntry),
		stop:    make(chan struct{}),
	}
	c.loopWg.Add(1)
	go c.loop()
	return c
}

// AddLog counts one occurrence of an entry.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := entryKey(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
		return
	}
	c.entries[key] = &AggregatedLogEntry{
		Level:     level,
		Message:   message,
		Fields:    fields,
		Caller:    caller,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	if len(c.entries) >= c.cfg.CountThreshold {
		c.flushLocked()
	}
}

// entryKey hashes the identifying parts. json.Marshal sorts map keys, so equal
// field sets hash equally.
func entryKey(level, message string, fields map[string]interface{}, caller string) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00", level, message, caller)
	if b, err := json.Marshal(fields); err == nil {
		_, _ = h.Write(b)
	}
	return h.Sum64()
}

func (c *LogCollector) loop() {
	defer c.loopWg.Done()
	t := time.NewTicker(c.cfg.TimeInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
		case <-c.stop:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
			return
		}
	}
}

// flushLocked hands the current batch to the publisher in the background.
func (c *LogCollector) flushLocked() {
	if len(c.entries) == 0 {
		return
	}
	batch := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		batch = append(batch, *e)
	}
	c.entries = make(map[uint64]*AggregatedLogEntry)

	c.sendWg.Add(1)
	go func() {
		defer c.sendWg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublishTimeout)
		defer cancel()
		if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
			fmt.Fprintf(os.Stderr, "publish aggregated logs: %v\n", err)
		}
	}()
}

// Close flushes what is left and waits for in-flight publishes.
func (c *LogCollector) Close() {
	c.once.Do(func() {
		close(c.stop)
		c.loopWg.Wait()
		c.sendWg.Wait()
	})
}
