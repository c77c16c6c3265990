package metrics

import "time"

// StateSource exposes the gauges the authenticated state engine can report
// without the metrics package depending on pkg/state directly.
type StateSource interface {
	Watermark() (slot uint64, writeVersion uint64)
	RootSlot() uint64
}

// PoolSource exposes writer pool occupancy for collection.
type PoolSource interface {
	Depth() int
	Capacity() int
	WorkersInitialized() int
}

// SubmitterSource exposes the submission driver's progress for collection.
type SubmitterSource interface {
	LastSubmittedSlot() uint64
}

// Collector periodically samples the running components and updates the
// corresponding prometheus gauges. Any source may be nil, in which case its
// metrics are simply not collected that cycle.
type Collector struct {
	state      StateSource
	pool       PoolSource
	submitter  SubmitterSource
	stopCh     chan struct{}
}

// NewCollector creates a metrics collector over the given sources.
func NewCollector(state StateSource, pool PoolSource, submitter SubmitterSource) *Collector {
	return &Collector{
		state:     state,
		pool:      pool,
		submitter: submitter,
		stopCh:    make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15s ticker.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectStateMetrics()
	c.collectPoolMetrics()
	c.collectSubmitterMetrics()
}

func (c *Collector) collectStateMetrics() {
	if c.state == nil {
		return
	}
	slot, wv := c.state.Watermark()
	WatermarkSlot.Set(float64(slot))
	WatermarkWriteVersion.Set(float64(wv))
	CurrentRootSlot.Set(float64(c.state.RootSlot()))
}

func (c *Collector) collectPoolMetrics() {
	if c.pool == nil {
		return
	}
	ChannelDepth.Set(float64(c.pool.Depth()))
	ChannelCapacity.Set(float64(c.pool.Capacity()))
	WorkersInitialized.Set(float64(c.pool.WorkersInitialized()))
}

func (c *Collector) collectSubmitterMetrics() {
	if c.submitter == nil {
		return
	}
	LastSubmittedSlot.Set(float64(c.submitter.LastSubmittedSlot()))
}
