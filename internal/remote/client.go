package remote

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"classroom-service/internal/domain"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Collection names in the remote document store.
const (
	CollectionParticipation = "participation"
	CollectionActivities    = "activities"
)

// Document is one entry of a flat collection, keyed by record id.
type Document struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// DocumentStore is the remote backend: keyed documents plus flat collections.
type DocumentStore interface {
	Ping(ctx context.Context) error
	GetDocument(ctx context.Context, key string) ([]byte, bool, error)
	SetDocument(ctx context.Context, key string, data []byte) error
	UpsertBatch(ctx context.Context, collection string, docs []Document) error
	DeleteBatch(ctx context.Context, collection string, ids []string) error
	Close()
}

// Dialer opens a DocumentStore for a configuration.
type Dialer func(ctx context.Context, cfg Config) (DocumentStore, error)

// PermissionBanner is shown while the remote store refuses access.
const PermissionBanner = "Cloud sync is blocked: the remote store refused access. " +
	"Grant the configured database role read/write access to the documents, participation and activities tables. " +
	"Everything keeps working locally in the meantime."

// Status is the connection state reported to operators.
type Status struct {
	Connected        bool       `json:"connected"`
	PermissionDenied bool       `json:"permissionDenied"`
	Banner           string     `json:"banner,omitempty"`
	LastError        string     `json:"lastError,omitempty"`
	LastErrorAt      *time.Time `json:"lastErrorAt,omitempty"`
}

// Client owns the remote connection. Mirror writes are fire-and-forget:
// failures are logged and reflected in Status, never returned to callers.
// Mirror jobs run one at a time in submission order.
type Client struct {
	dial        Dialer
	timeout     time.Duration
	concurrency int

	mu     sync.RWMutex
	store  DocumentStore
	cfg    Config
	status Status

	qmu      sync.Mutex
	queue    []mirrorJob
	draining bool

	wg sync.WaitGroup
}

type mirrorJob struct {
	op    string
	store DocumentStore
	cfg   Config
	fn    func(ctx context.Context, store DocumentStore, cfg Config) error
}

func NewClient(dial Dialer, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{dial: dial, timeout: timeout, concurrency: 4}
}

// Connect replaces any open connection with one built from cfg.
func (c *Client) Connect(ctx context.Context, cfg Config) error {
	store, err := c.dial(ctx, cfg)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = store.Ping(pingCtx)
		cancel()
		if err != nil {
			store.Close()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.recordLocked(err)
		return err
	}
	if c.store != nil {
		c.store.Close()
	}
	c.store = store
	c.cfg = cfg
	c.status = Status{Connected: true}
	log.Println("remote store connected")
	return nil
}

// IsConnected reports whether a remote store is open.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store != nil
}

// Status returns the last known connection state.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Wait blocks until in-flight mirror writes finish.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Close waits for pending mirrors and closes the connection.
func (c *Client) Close() {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		c.store.Close()
		c.store = nil
	}
	c.status.Connected = false
}

// FetchDocument reads a keyed document synchronously.
func (c *Client) FetchDocument(ctx context.Context, key string) ([]byte, bool, error) {
	store, _ := c.current()
	if store == nil {
		return nil, false, domain.ErrRemoteNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	data, ok, err := store.GetDocument(ctx, key)
	c.observe(err)
	return data, ok, err
}

// MirrorDocument writes a keyed document in the background.
func (c *Client) MirrorDocument(key string, data []byte) {
	c.goMirror("set "+key, func(ctx context.Context, store DocumentStore, _ Config) error {
		return store.SetDocument(ctx, key, data)
	})
}

// MirrorUpsert writes docs to a collection in the background, chunked to the batch limit.
func (c *Client) MirrorUpsert(collection string, docs []Document) {
	if len(docs) == 0 {
		return
	}
	c.goMirror("upsert "+collection, func(ctx context.Context, store DocumentStore, cfg Config) error {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(c.concurrency)
		for _, chunk := range Chunk(docs, cfg.EffectiveBatchSize()) {
			chunk := chunk
			g.Go(func() error { return store.UpsertBatch(ctx, collection, chunk) })
		}
		return g.Wait()
	})
}

// MirrorDelete removes ids from a collection in the background, chunked to the batch limit.
func (c *Client) MirrorDelete(collection string, ids []string) {
	if len(ids) == 0 {
		return
	}
	c.goMirror("delete "+collection, func(ctx context.Context, store DocumentStore, cfg Config) error {
		for _, chunk := range Chunk(ids, cfg.EffectiveBatchSize()) {
			if err := store.DeleteBatch(ctx, collection, chunk); err != nil {
				return err
			}
		}
		return nil
	})
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = MaxBatchSize
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

func (c *Client) goMirror(op string, fn func(ctx context.Context, store DocumentStore, cfg Config) error) {
	store, cfg := c.current()
	if store == nil {
		return
	}
	c.wg.Add(1)
	c.qmu.Lock()
	defer c.qmu.Unlock()
	c.queue = append(c.queue, mirrorJob{op: op, store: store, cfg: cfg, fn: fn})
	if !c.draining {
		c.draining = true
		go c.drain()
	}
}

// drain runs queued mirror jobs until the queue is empty. At most one drain runs at a time.
func (c *Client) drain() {
	for {
		c.qmu.Lock()
		if len(c.queue) == 0 {
			c.draining = false
			c.qmu.Unlock()
			return
		}
		job := c.queue[0]
		c.queue[0] = mirrorJob{}
		c.queue = c.queue[1:]
		c.qmu.Unlock()

		c.run(job)
		c.wg.Done()
	}
}

func (c *Client) run(job mirrorJob) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	err := job.fn(ctx, job.store, job.cfg)
	if err != nil {
		log.WithError(err).WithField("op", job.op).Warn("remote mirror failed")
	}
	c.observe(err)
}

func (c *Client) current() (DocumentStore, Config) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store, c.cfg
}

func (c *Client) observe(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		if c.status.PermissionDenied {
			log.Println("remote store access restored")
		}
		c.status.PermissionDenied = false
		c.status.Banner = ""
		return
	}
	c.recordLocked(err)
}

func (c *Client) recordLocked(err error) {
	now := time.Now().UTC()
	c.status.LastError = err.Error()
	c.status.LastErrorAt = &now
	if errors.Is(err, domain.ErrRemotePermission) {
		if !c.status.PermissionDenied {
			log.WithError(err).Error("remote store permission denied; continuing local-only")
		}
		c.status.PermissionDenied = true
		c.status.Banner = PermissionBanner
	}
}
