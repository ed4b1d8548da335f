package kafka

import "time"

type ProducerOption func(*ProducerConfig)

// ProducerConfig mirrors the kafka-go Writer knobs the app exposes. Decisions
// and fills are keyed by user, so HashByKey keeps each user's events ordered.
type ProducerConfig struct {
	Brokers          []string
	RequiredAcks     int // -1 waits for all in-sync replicas
	Compression      string
	MaxAttempts      int
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	BatchSize        int
	BatchBytes       int
	BatchTimeout     time.Duration
	Async            bool
	HashByKey        bool
	AutoCreateTopics bool
}

func defaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		RequiredAcks: -1,
		Compression:  "gzip",
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    100,
		BatchBytes:   1 << 20,
		BatchTimeout: 200 * time.Millisecond,
		HashByKey:    true,
	}
}

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithCompression accepts gzip, snappy, lz4 or zstd. Anything else means gzip.
func WithCompression(codec string) ProducerOption {
	return func(c *ProducerConfig) { c.Compression = codec }
}

func WithRequiredAcks(acks int) ProducerOption {
	return func(c *ProducerConfig) { c.RequiredAcks = acks }
}

func WithMaxAttempts(n int) ProducerOption {
	return func(c *ProducerConfig) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

func WithBatchSize(n int) ProducerOption {
	return func(c *ProducerConfig) {
		if n > 0 {
			c.BatchSize = n
		}
	}
}

func WithBatchBytes(n int) ProducerOption {
	return func(c *ProducerConfig) {
		if n > 0 {
			c.BatchBytes = n
		}
	}
}

func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		if d > 0 {
			c.BatchTimeout = d
		}
	}
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.WriteTimeout = write
		c.ReadTimeout = read
	}
}

// WithAsync makes writes fire-and-forget. Errors then only show in metrics.
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = async }
}

func WithAutoCreateTopics(on bool) ProducerOption {
	return func(c *ProducerConfig) { c.AutoCreateTopics = on }
}

func WithHashByKey(hash bool) ProducerOption {
	return func(c *ProducerConfig) { c.HashByKey = hash }
}
