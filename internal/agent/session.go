package agent

import (
	"context"
	"log/slog"
	"sync"

	"github.com/deskpilot/deskpilot/internal/credentials"
	"github.com/deskpilot/deskpilot/pkg/models"
)

// sessionLock is a reference-counted per-session mutex. The count lets the
// manager drop the entry once the last waiter releases it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes runs per session key and owns the conversation
// histories. Concurrent sends on the same key queue up; sends on different
// keys proceed in parallel. History is persisted only when a run finishes
// with a done event, so a failed run leaves the session exactly as it was.
type Manager struct {
	translator *Translator
	logger     *slog.Logger

	mu        sync.Mutex
	histories map[string][]models.Message
	locks     map[string]*sessionLock
}

// NewManager builds a Manager over the given translator.
func NewManager(translator *Translator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		translator: translator,
		logger:     logger.With("component", "sessions"),
		histories:  make(map[string][]models.Message),
		locks:      make(map[string]*sessionLock),
	}
}

// lockSession acquires the per-session lock, creating it on first use, and
// returns the release function.
func (m *Manager) lockSession(key string) func() {
	m.mu.Lock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sessionLock{}
		m.locks[key] = lock
	}
	lock.refs++
	m.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		m.mu.Lock()
		lock.refs--
		if lock.refs <= 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

// Send runs one buffered turn on the session and returns the assistant's
// reply text.
func (m *Manager) Send(ctx context.Context, key, input string, bag *credentials.Bag) (string, error) {
	release := m.lockSession(key)
	defer release()

	text, updated, err := m.translator.ProcessMessage(ctx, input, m.history(key), bag)
	if err != nil {
		return "", err
	}
	m.setHistory(key, updated)
	return text, nil
}

// SendStream runs one streaming turn on the session. The session stays
// locked until the returned channel is exhausted or the context is
// canceled, so an abandoned consumer cannot wedge the key. The updated
// history is persisted when the done event passes through.
func (m *Manager) SendStream(ctx context.Context, key, input string, bag *credentials.Bag) <-chan models.StreamEvent {
	out := make(chan models.StreamEvent)
	go func() {
		defer close(out)
		release := m.lockSession(key)
		defer release()

		for ev := range m.translator.Stream(ctx, input, m.history(key), bag) {
			if ev.Type == models.StreamDone {
				m.setHistory(key, ev.History)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// History returns a copy of the session's conversation so far.
func (m *Manager) History(key string) []models.Message {
	return m.history(key)
}

// Reset drops the session's conversation.
func (m *Manager) Reset(key string) {
	release := m.lockSession(key)
	defer release()

	m.mu.Lock()
	delete(m.histories, key)
	m.mu.Unlock()
	m.logger.Info("session reset", "session", key)
}

func (m *Manager) history(key string) []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.histories[key]
	out := make([]models.Message, len(stored))
	copy(out, stored)
	return out
}

func (m *Manager) setHistory(key string, history []models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histories[key] = history
}
