// Package sdo implements an expedited-only CANopen SDO client: it
// transmits upload/download initiate frames, correlates SDO-Tx
// responses back to pending requests by (node, index, subindex,
// direction), sweeps timeouts, and translates abort codes.
package sdo

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/maplock"
	"github.com/rs/zerolog"

	"github.com/danmuck/canprobe/internal/canopen"
	"github.com/danmuck/canprobe/internal/observability"
	"github.com/danmuck/canprobe/internal/serialcan"
	"github.com/danmuck/canprobe/internal/store"
)

// Direction distinguishes upload (read) from download (write) requests.
type Direction uint8

const (
	DirRead Direction = iota
	DirWrite
)

func (d Direction) String() string {
	if d == DirWrite {
		return "write"
	}
	return "read"
}

// Status is the terminal state of a request.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusAborted
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusAborted:
		return "aborted"
	default:
		return "timeout"
	}
}

// Outcome is delivered to the request callback exactly once. Value is
// meaningful only for successful reads; AbortCode and Message only for
// aborts and timeouts.
type Outcome struct {
	Status    Status
	Value     uint32
	AbortCode uint32
	Message   string
}

// Callback receives the terminal outcome of a request. It runs on the
// manager's dispatch path and must not block.
type Callback func(Outcome)

// FrameWriter is the transmit half the manager needs; *pipeline.Pipeline
// satisfies it.
type FrameWriter interface {
	Send(f serialcan.Frame) error
}

// Config tunes manager timing. Zero values take defaults.
type Config struct {
	SweepInterval  time.Duration // timeout sweep cadence
	DefaultTimeout time.Duration // used when a request passes zero
}

func (c *Config) applyDefaults() {
	if c.SweepInterval <= 0 {
		c.SweepInterval = 100 * time.Millisecond
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = time.Second
	}
}

type requestKey struct {
	Node     uint8
	Index    uint16
	Subindex uint8
	Dir      Direction
}

func (k requestKey) String() string {
	return fmt.Sprintf("%d_%04X_%02X_%s", k.Node, k.Index, k.Subindex, k.Dir)
}

type pendingRequest struct {
	key      requestKey
	deadline time.Time
	cb       Callback
}

// Manager tracks in-flight expedited SDO requests. Requests sharing a
// key queue up FIFO; each response resolves the oldest pending one.
type Manager struct {
	cfg Config
	tx  FrameWriter
	log zerolog.Logger

	mu      sync.Mutex
	pending map[requestKey][]*pendingRequest

	running atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func NewManager(cfg Config, tx FrameWriter, log zerolog.Logger) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:     cfg,
		tx:      tx,
		log:     log.With().Str("component", "sdo").Logger(),
		pending: make(map[requestKey][]*pendingRequest),
	}
}

// txLock serializes transmissions per SDO server so back-to-back
// requests to one node do not interleave on the wire.
var txLock = maplock.New()

// Start launches the timeout sweeper.
func (m *Manager) Start() {
	if !m.running.CompareAndSwap(false, true) {
		return
	}
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.sweepLoop()
}

// Stop joins the sweeper. Pending requests stay registered and resolve
// on a later Start's sweep or via ClearPending.
func (m *Manager) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}
	close(m.stop)
	m.wg.Wait()
}

// Read sends an upload-initiate frame and registers the request. The
// callback fires exactly once with the decoded value, an abort, or a
// timeout. A transport send failure is returned synchronously and
// nothing is registered.
func (m *Manager) Read(req ReadRequest, timeout time.Duration, cb Callback) error {
	if err := validateNode(req.Node); err != nil {
		return err
	}
	key := requestKey{Node: req.Node, Index: req.Index, Subindex: req.Subindex, Dir: DirRead}
	return m.send(key, req.frame(), timeout, cb)
}

// Write sends a download-initiate expedited frame and registers the
// request. An unsupported SizeBits is a programmer error and is
// rejected synchronously.
func (m *Manager) Write(req WriteRequest, timeout time.Duration, cb Callback) error {
	if err := validateNode(req.Node); err != nil {
		return err
	}
	frame, err := req.frame()
	if err != nil {
		return err
	}
	key := requestKey{Node: req.Node, Index: req.Index, Subindex: req.Subindex, Dir: DirWrite}
	return m.send(key, frame, timeout, cb)
}

// SendRaw transmits an arbitrary frame with no response tracking.
func (m *Manager) SendRaw(req RawFrameRequest) error {
	if len(req.Data) > serialcan.MaxPayload {
		return serialcan.ErrPayloadTooLarge
	}
	return m.tx.Send(req.frame())
}

func (m *Manager) send(key requestKey, frame serialcan.Frame, timeout time.Duration, cb Callback) error {
	if timeout <= 0 {
		timeout = m.cfg.DefaultTimeout
	}
	req := &pendingRequest{key: key, deadline: time.Now().Add(timeout), cb: cb}

	m.mu.Lock()
	m.pending[key] = append(m.pending[key], req)
	m.mu.Unlock()

	lockKey := strconv.Itoa(int(key.Node))
	txLock.Lock(lockKey)
	err := m.tx.Send(frame)
	txLock.Unlock(lockKey)
	if err != nil {
		m.unregister(req)
		m.log.Warn().Err(err).Stringer("request", key).Msg("sdo send failed")
		return fmt.Errorf("sdo: send %s: %w", key, err)
	}
	m.log.Debug().Stringer("request", key).Dur("timeout", timeout).Msg("sdo request sent")
	return nil
}

// HandleRecord inspects a decoded message and, when it is an SDO server
// response, resolves the matching pending request. Wire it to the
// pipeline with Subscribe. Responses without a pending request, and
// responses for already-terminal requests, are ignored.
func (m *Manager) HandleRecord(r store.Record) {
	if r.Type != canopen.TypeSDOTx || len(r.Data) < 8 {
		return
	}
	node := r.NodeID
	data := r.Data
	index := binary.LittleEndian.Uint16(data[1:3])
	subindex := data[3]

	switch (data[0] >> 5) & 0x7 {
	case scsUploadResponse:
		key := requestKey{Node: node, Index: index, Subindex: subindex, Dir: DirRead}
		req := m.take(key)
		if req == nil {
			return
		}
		expedited := data[0]&0x02 != 0
		if !expedited {
			// Segmented transfers are out of protocol scope here.
			m.complete(req, Outcome{
				Status:    StatusAborted,
				AbortCode: AbortGeneral,
				Message:   AbortText(AbortGeneral),
			})
			return
		}
		n := 0
		if data[0]&0x01 != 0 { // size indicated
			n = int(data[0]>>2) & 0x3
		}
		var value uint32
		for i, b := range data[4 : 8-n] {
			value |= uint32(b) << (8 * i)
		}
		m.complete(req, Outcome{Status: StatusSuccess, Value: value})

	case scsDownloadResponse:
		key := requestKey{Node: node, Index: index, Subindex: subindex, Dir: DirWrite}
		if req := m.take(key); req != nil {
			m.complete(req, Outcome{Status: StatusSuccess})
		}

	case scsAbort:
		code := binary.LittleEndian.Uint32(data[4:8])
		// An abort does not say which direction failed; resolve the
		// read first, then the write, mirroring the request priority
		// used when both are pending.
		req := m.take(requestKey{Node: node, Index: index, Subindex: subindex, Dir: DirRead})
		if req == nil {
			req = m.take(requestKey{Node: node, Index: index, Subindex: subindex, Dir: DirWrite})
		}
		if req == nil {
			return
		}
		m.complete(req, Outcome{
			Status:    StatusAborted,
			AbortCode: code,
			Message:   AbortText(code),
		})
	}
}

// PendingCount reports requests awaiting a terminal outcome.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, reqs := range m.pending {
		n += len(reqs)
	}
	return n
}

// ClearPending drops every pending request without dispatching an
// outcome. Intended for session teardown where callers are gone.
func (m *Manager) ClearPending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = make(map[requestKey][]*pendingRequest)
}

// take removes and returns the oldest pending request for the key.
func (m *Manager) take(key requestKey) *pendingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := m.pending[key]
	if len(reqs) == 0 {
		return nil
	}
	req := reqs[0]
	rest := reqs[1:]
	if len(rest) == 0 {
		delete(m.pending, key)
	} else {
		m.pending[key] = rest
	}
	return req
}

// unregister removes a specific request, used when its send failed.
func (m *Manager) unregister(req *pendingRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := m.pending[req.key]
	for i, cur := range reqs {
		if cur == req {
			reqs = append(reqs[:i], reqs[i+1:]...)
			break
		}
	}
	if len(reqs) == 0 {
		delete(m.pending, req.key)
	} else {
		m.pending[req.key] = reqs
	}
}

// complete dispatches the terminal outcome. The request is already
// removed from the table, so a late response cannot resolve it twice.
func (m *Manager) complete(req *pendingRequest, out Outcome) {
	observability.RecordSDORequest(req.key.Dir.String(), out.Status.String())
	switch out.Status {
	case StatusSuccess:
		m.log.Debug().Stringer("request", req.key).Uint32("value", out.Value).Msg("sdo completed")
	default:
		m.log.Warn().Stringer("request", req.key).Str("status", out.Status.String()).
			Str("reason", out.Message).Msg("sdo failed")
	}
	if req.cb != nil {
		req.cb(out)
	}
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

// sweep completes every request past its deadline with a timeout
// outcome.
func (m *Manager) sweep(now time.Time) {
	var expired []*pendingRequest
	m.mu.Lock()
	for key, reqs := range m.pending {
		kept := reqs[:0]
		for _, req := range reqs {
			if now.After(req.deadline) {
				expired = append(expired, req)
			} else {
				kept = append(kept, req)
			}
		}
		if len(kept) == 0 {
			delete(m.pending, key)
		} else {
			m.pending[key] = kept
		}
	}
	m.mu.Unlock()

	for _, req := range expired {
		m.complete(req, Outcome{
			Status:    StatusTimeout,
			AbortCode: AbortTimeout,
			Message:   AbortText(AbortTimeout),
		})
	}
}
