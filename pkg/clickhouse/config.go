package clickhouse

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Options describes how to reach ClickHouse. Stores address tables as
// database.table, so the connection does not pin a database and the schema
// statements can create it.
type Options struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration // bounds Bootstrap DDL
	MaxExecTime  time.Duration

	HTTP         bool
	AsyncInsert  bool
	WaitForAsync bool
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		Port:            9000,
		Database:        "default",
		User:            "default",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
	}
}

func WithAddr(host string, port int) Option {
	return func(o *Options) {
		o.Host = host
		if port > 0 {
			o.Port = port
		}
	}
}

func WithDatabase(db string) Option {
	return func(o *Options) { o.Database = db }
}

func WithCredentials(user, password string) Option {
	return func(o *Options) {
		o.User = user
		o.Password = password
	}
}

// WithPool caps the database/sql pool.
func WithPool(maxOpen, maxIdle int) Option {
	return func(o *Options) {
		o.MaxOpenConns = maxOpen
		o.MaxIdleConns = maxIdle
	}
}

// WithTimeouts sets dial, read and DDL write timeouts. Zero keeps the default.
func WithTimeouts(dial, read, write time.Duration) Option {
	return func(o *Options) {
		if dial > 0 {
			o.DialTimeout = dial
		}
		if read > 0 {
			o.ReadTimeout = read
		}
		if write > 0 {
			o.WriteTimeout = write
		}
	}
}

func WithHTTP(enabled bool) Option {
	return func(o *Options) { o.HTTP = enabled }
}

// WithAsyncInsert lets the server buffer small inserts such as ticker batches.
func WithAsyncInsert(enabled, wait bool) Option {
	return func(o *Options) {
		o.AsyncInsert = enabled
		o.WaitForAsync = wait
	}
}

func WithMaxExecutionTime(d time.Duration) Option {
	return func(o *Options) { o.MaxExecTime = d }
}

// dsn builds the clickhouse-go URL. The path is left empty on purpose; see
// Options.
func (o Options) dsn() string {
	scheme := "clickhouse"
	if o.HTTP {
		scheme = "http"
	}
	q := url.Values{}
	if o.DialTimeout > 0 {
		q.Set("dial_timeout", o.DialTimeout.String())
	}
	if o.ReadTimeout > 0 {
		q.Set("read_timeout", o.ReadTimeout.String())
	}
	if o.MaxExecTime > 0 {
		q.Set("max_execution_time", strconv.Itoa(int(o.MaxExecTime.Seconds())))
	}
	if o.AsyncInsert {
		q.Set("async_insert", "1")
		if o.WaitForAsync {
			q.Set("wait_for_async_insert", "1")
		}
	}
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(o.User, o.Password),
		Host:     fmt.Sprintf("%s:%d", o.Host, o.Port),
		RawQuery: q.Encode(),
	}
	return u.String()
}
