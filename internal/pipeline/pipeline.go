// Package pipeline bridges the byte transport and the message store:
// one reader goroutine pulls available bytes in chunks, one decode
// goroutine batches frames out of the accumulator and flushes each
// batch to the store, the pull queue and all subscribers in a single
// pass, amortizing lock and dispatch cost at high frame rates.
package pipeline

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/canprobe/internal/observability"
	"github.com/danmuck/canprobe/internal/serialcan"
	"github.com/danmuck/canprobe/internal/store"
	"github.com/danmuck/canprobe/internal/transport"
)

var ErrNotRunning = errors.New("pipeline: not running")

// Config tunes the ingestion loops. Zero values take defaults.
type Config struct {
	ReadTimeout   time.Duration // bounded transport read, keeps shutdown responsive
	ReadChunk     int           // bytes pulled per transport read
	BatchSize     int           // max frames flushed per decode pass
	IdleSleep     time.Duration // decode loop sleep when nothing decoded
	QueueCapacity int           // pull-queue bound
	StatsInterval time.Duration // throughput log cadence, 0 disables
}

func (c *Config) applyDefaults() {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = time.Millisecond
	}
	if c.ReadChunk <= 0 {
		c.ReadChunk = 4096
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1000
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = time.Millisecond
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 10000
	}
}

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	FramesDecoded uint64
	FramingErrors uint64
	BytesRead     uint64
	ReadErrors    uint64
	BufferBytes   int
	QueueLen      int
	QueueDropped  uint64
	MsgPerSec     float64
	BytesPerSec   float64
}

// Pipeline owns the reader and decode goroutines for one transport.
type Pipeline struct {
	cfg   Config
	tr    transport.Transport
	codec serialcan.Codec
	st    *store.Store
	queue *Queue
	fan   *fanout
	log   zerolog.Logger

	decMu sync.Mutex
	dec   *serialcan.Decoder

	seq        atomic.Uint64
	bytesRead  atomic.Uint64
	readErrors atomic.Uint64

	rateMu      sync.Mutex
	msgPerSec   float64
	bytesPerSec float64

	running atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New wires a pipeline; nothing runs until Start.
func New(cfg Config, tr transport.Transport, codec serialcan.Codec, st *store.Store, log zerolog.Logger) *Pipeline {
	cfg.applyDefaults()
	return &Pipeline{
		cfg:   cfg,
		tr:    tr,
		codec: codec,
		st:    st,
		queue: NewQueue(cfg.QueueCapacity),
		fan:   newFanout(),
		dec:   serialcan.NewDecoder(codec),
		log:   log.With().Str("component", "pipeline").Logger(),
	}
}

// Start clears the accumulator, queue and store left over from any
// previous monitoring session, then launches the reader and decode
// goroutines.
func (p *Pipeline) Start() {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	p.decMu.Lock()
	p.dec.Reset()
	p.decMu.Unlock()
	p.queue.Clear()
	p.st.Clear()

	p.stop = make(chan struct{})
	p.wg.Add(2)
	go p.readLoop()
	go p.decodeLoop()
	if p.cfg.StatsInterval > 0 {
		p.wg.Add(1)
		go p.statsLoop()
	}
	p.log.Info().Str("dialect", p.codec.Name()).Msg("monitoring started")
}

// Stop joins every goroutine before returning; the transport stays
// open and is released by the caller afterwards, so no pipeline thread
// ever touches a closed transport.
func (p *Pipeline) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stop)
	p.wg.Wait()
	p.fan.close()
	p.log.Info().Msg("monitoring stopped")
}

// Subscribe registers an every-frame listener with a bounded buffer.
func (p *Pipeline) Subscribe(buffer int) (<-chan store.Record, func()) {
	return p.fan.subscribe(buffer)
}

// Drain returns up to max of the oldest undelivered records.
func (p *Pipeline) Drain(max int) []store.Record { return p.queue.Drain(max) }

// Acknowledge discards up to n of the oldest undelivered records.
func (p *Pipeline) Acknowledge(n int) int { return p.queue.Acknowledge(n) }

// Send encodes one frame and writes it to the transport.
func (p *Pipeline) Send(f serialcan.Frame) error {
	wire, err := p.codec.Encode(f)
	if err != nil {
		return err
	}
	return p.tr.Write(wire)
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.decMu.Lock()
	ds := p.dec.Stats()
	buffered := p.dec.Buffered()
	p.decMu.Unlock()

	p.rateMu.Lock()
	msgRate, byteRate := p.msgPerSec, p.bytesPerSec
	p.rateMu.Unlock()

	return Stats{
		FramesDecoded: ds.Frames,
		FramingErrors: ds.FramingErrors,
		BytesRead:     p.bytesRead.Load(),
		ReadErrors:    p.readErrors.Load(),
		BufferBytes:   buffered,
		QueueLen:      p.queue.Len(),
		QueueDropped:  p.queue.Dropped(),
		MsgPerSec:     msgRate,
		BytesPerSec:   byteRate,
	}
}

func (p *Pipeline) readLoop() {
	defer p.wg.Done()
	chunk := make([]byte, p.cfg.ReadChunk)
	for {
		select {
		case <-p.stop:
			return
		default:
		}
		n, err := p.tr.Read(chunk, p.cfg.ReadTimeout)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				return
			}
			// Transient transport failure; retry next cycle.
			p.readErrors.Add(1)
			observability.RecordReadError()
			p.log.Debug().Err(err).Msg("transport read failed")
			continue
		}
		if n == 0 {
			continue
		}
		p.bytesRead.Add(uint64(n))
		observability.RecordBytesRead(n)
		p.decMu.Lock()
		p.dec.Push(chunk[:n])
		p.decMu.Unlock()
	}
}

func (p *Pipeline) decodeLoop() {
	defer p.wg.Done()
	batch := make([]store.Record, 0, p.cfg.BatchSize)
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		batch = batch[:0]
		now := time.Now()
		p.decMu.Lock()
		before := p.dec.Stats()
		for len(batch) < p.cfg.BatchSize {
			f, ok := p.dec.Next()
			if !ok {
				break
			}
			if f.Extended {
				// The store is COB-ID indexed; extended identifiers
				// carry no CANopen addressing.
				continue
			}
			batch = append(batch, store.NewRecord(now, f.StandardID(), f.Data, p.seq.Add(1)))
		}
		after := p.dec.Stats()
		buffered := p.dec.Buffered()
		p.decMu.Unlock()

		if n := after.FramingErrors - before.FramingErrors; n > 0 {
			observability.RecordFramingErrors(n)
		}
		observability.SetBufferBytes(buffered)

		if len(batch) == 0 {
			time.Sleep(p.cfg.IdleSleep)
			continue
		}
		observability.RecordFramesDecoded(uint64(len(batch)))
		for _, r := range batch {
			p.st.Upsert(r)
		}
		dropBefore := p.queue.Dropped()
		p.queue.Append(batch)
		if d := p.queue.Dropped() - dropBefore; d > 0 {
			observability.RecordQueueDropped(int(d))
		}
		p.fan.publish(batch)
	}
}

func (p *Pipeline) statsLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.StatsInterval)
	defer ticker.Stop()

	var lastFrames, lastBytes uint64
	last := time.Now()
	for {
		select {
		case <-p.stop:
			return
		case now := <-ticker.C:
			s := p.Stats()
			elapsed := now.Sub(last).Seconds()
			if elapsed <= 0 {
				continue
			}
			msgRate := float64(s.FramesDecoded-lastFrames) / elapsed
			byteRate := float64(s.BytesRead-lastBytes) / elapsed
			lastFrames, lastBytes, last = s.FramesDecoded, s.BytesRead, now

			p.rateMu.Lock()
			p.msgPerSec, p.bytesPerSec = msgRate, byteRate
			p.rateMu.Unlock()

			p.log.Info().
				Float64("msgs_per_sec", msgRate).
				Float64("bytes_per_sec", byteRate).
				Int("buffer_bytes", s.BufferBytes).
				Int("queue_len", s.QueueLen).
				Uint64("framing_errors", s.FramingErrors).
				Msg("throughput")
		}
	}
}
