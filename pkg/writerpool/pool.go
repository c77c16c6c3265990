// Package writerpool is the relational writer pool: a bounded channel of
// WorkItem values drained by a configurable number of worker goroutines,
// each holding its own relational-store session and prepared-statement
// cache, applying last-writer-wins upserts under the conflict predicate
// relstore defines.
package writerpool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/meridianchain/stateindexer/pkg/log"
	"github.com/meridianchain/stateindexer/pkg/metrics"
	"github.com/rs/zerolog"
)

const (
	// DefaultWorkers is the default worker-task count (spec §5: "N writer
	// threads, configurable, default 100").
	DefaultWorkers = 100
	// DefaultChannelCapacity is the bounded channel's recommended size.
	DefaultChannelCapacity = 40960
	// DefaultStartupBatchSize is the bulk-insert batch size used during
	// bootstrap.
	DefaultStartupBatchSize = 10
	// DefaultReceiveTimeout is both the cancellation granularity and the
	// startup-barrier polling rate.
	DefaultReceiveTimeout = 500 * time.Millisecond
)

// Config configures pool bring-up. DSN is the relational-store path each
// worker opens its own session against.
type Config struct {
	DSN              string
	Workers          int
	ChannelCapacity  int
	StartupBatchSize int
	ReceiveTimeout   time.Duration
	PanicOnDBErrors  bool
	HistoricalMode   bool
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.ChannelCapacity <= 0 {
		c.ChannelCapacity = DefaultChannelCapacity
	}
	if c.StartupBatchSize <= 0 {
		c.StartupBatchSize = DefaultStartupBatchSize
	}
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = DefaultReceiveTimeout
	}
	return c
}

// Pool is the writer pool. It satisfies metrics.PoolSource.
type Pool struct {
	cfg    Config
	ch     chan WorkItem
	logger zerolog.Logger
	wg     sync.WaitGroup

	exitWorker             atomic.Bool
	startupDone            atomic.Bool
	startupDoneCount       atomic.Int64
	initializedWorkerCount atomic.Int64
}

// New builds a pool from cfg. Call Start to launch the worker goroutines.
func New(cfg Config) *Pool {
	cfg = cfg.withDefaults()
	return &Pool{
		cfg:    cfg,
		ch:     make(chan WorkItem, cfg.ChannelCapacity),
		logger: log.WithComponent("writerpool"),
	}
}

// Start launches cfg.Workers worker goroutines, each opening its own
// relational-store session.
func (p *Pool) Start() {
	for i := 0; i < p.cfg.Workers; i++ {
		w := &worker{id: i, pool: p}
		p.wg.Add(1)
		go w.run()
	}
}

// Submit enqueues item, blocking if the channel is full (backpressure per
// spec §4.5/§5).
func (p *Pool) Submit(item WorkItem) {
	p.ch <- item
	metrics.ChannelDepth.Set(float64(len(p.ch)))
}

// NotifyEndOfStartup waits for the channel to drain, sets the startup-done
// flag, and blocks until every worker has flushed its startup batch and
// reported in. After it returns, startup_done_count == initialized_worker_count.
func (p *Pool) NotifyEndOfStartup() {
	for len(p.ch) > 0 {
		time.Sleep(p.cfg.ReceiveTimeout / 4)
	}
	p.startupDone.Store(true)
	metrics.StartupDoneCount.Set(0)
	for p.startupDoneCount.Load() < p.initializedWorkerCount.Load() {
		time.Sleep(p.cfg.ReceiveTimeout / 4)
	}
}

// RequestExitAndJoin is join(): it sets exit_worker and waits for every
// worker to exit. Workers check the flag only when a receive times out, so
// each keeps applying items until the channel has been empty for one
// ReceiveTimeout, then flushes its startup batch and exits. The startup
// barrier must not be held during cancellation, so this never waits on
// startupDone.
func (p *Pool) RequestExitAndJoin() {
	p.exitWorker.Store(true)
	p.wg.Wait()
}

// Depth, Capacity, and WorkersInitialized satisfy metrics.PoolSource.
func (p *Pool) Depth() int               { return len(p.ch) }
func (p *Pool) Capacity() int            { return cap(p.ch) }
func (p *Pool) WorkersInitialized() int  { return int(p.initializedWorkerCount.Load()) }
