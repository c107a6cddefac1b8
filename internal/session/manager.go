package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"command-center/internal/apiclient"
	"command-center/internal/event"
	"command-center/internal/metrics"
	"command-center/internal/storage"
	"command-center/internal/tokenstore"
)

const (
	defaultCacheTTL = 30 * time.Minute
	gcInterval      = time.Minute
)

// Entry is everything the gateway keeps for one browser context.
type Entry struct {
	ID         string
	Controller *Controller
	Tokens     *tokenstore.Store
	Client     *apiclient.Client

	lastUsed    time.Time
	unsubscribe func()
}

type ManagerOptions struct {
	BackendURL string
	APITimeout time.Duration
	Durable    storage.Backend
	Ephemeral  storage.Backend
	// CacheTTL is how long an unused controller stays in memory.
	CacheTTL time.Duration
	// Transport is the base round tripper for backend calls. Defaults to
	// http.DefaultTransport.
	Transport http.RoundTripper
	Bus       event.Bus
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Manager owns one controller per browser context.
type Manager struct {
	opts   ManagerOptions
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*Entry
	lastGC  time.Time
	closed  bool
}

func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.BackendURL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}
	if opts.Durable == nil {
		opts.Durable = storage.NewMemory()
	}
	if opts.Ephemeral == nil {
		opts.Ephemeral = storage.NewMemory()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		entries: map[string]*Entry{},
	}, nil
}

// Get returns the entry for contextID, creating and starting its
// controller on first use.
func (m *Manager) Get(contextID string) (*Entry, error) {
	if contextID == "" {
		return nil, fmt.Errorf("context id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("session manager is closed")
	}

	now := m.now()
	if entry, ok := m.entries[contextID]; ok {
		entry.lastUsed = now
		m.gcLocked(now)
		return entry, nil
	}

	entry, err := m.newEntry(contextID)
	if err != nil {
		return nil, err
	}
	entry.lastUsed = now
	m.entries[contextID] = entry
	m.gcLocked(now)
	m.opts.Metrics.SetActiveControllers(len(m.entries))

	go entry.Controller.Start(context.Background())

	return entry, nil
}

func (m *Manager) newEntry(contextID string) (*Entry, error) {
	tokens := tokenstore.New(contextID, m.opts.Durable, m.opts.Ephemeral)

	client, err := apiclient.New(tokens, apiclient.Options{
		BaseURL: m.opts.BackendURL,
		Timeout: m.opts.APITimeout,
		Base:    m.opts.Transport,
		Metrics: m.opts.Metrics,
		Logger:  m.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}

	controller := NewController(contextID, client, tokens, ControllerOptions{
		Metrics: m.opts.Metrics,
		Logger:  m.logger,
	})

	entry := &Entry{
		ID:         contextID,
		Controller: controller,
		Tokens:     tokens,
		Client:     client,
	}

	if m.opts.Bus != nil {
		bus := m.opts.Bus
		entry.unsubscribe = controller.Subscribe(func(s Session) {
			bus.Publish(event.New(event.TypeSessionChanged, contextID, s))
		})
	}

	return entry, nil
}

// Close drops every controller. Get fails afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	entries := m.entries
	m.entries = map[string]*Entry{}
	m.closed = true
	m.mu.Unlock()

	for _, entry := range entries {
		closeEntry(entry)
	}
	m.opts.Metrics.SetActiveControllers(0)
}

func (m *Manager) gcLocked(now time.Time) {
	if now.Sub(m.lastGC) < gcInterval {
		return
	}
	m.lastGC = now

	cutoff := now.Add(-m.opts.CacheTTL)
	evicted := 0
	for id, entry := range m.entries {
		if entry.lastUsed.Before(cutoff) {
			delete(m.entries, id)
			closeEntry(entry)
			evicted++
		}
	}

	if evicted > 0 {
		m.logger.Debug("evicted idle session controllers", "count", evicted)
		m.opts.Metrics.SetActiveControllers(len(m.entries))
	}
}

func closeEntry(entry *Entry) {
	if entry.unsubscribe != nil {
		entry.unsubscribe()
	}
	entry.Controller.Close()
}
