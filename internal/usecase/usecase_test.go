package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"relaychat/internal/domain"
)

// --- Mocks ---

type mockGateway struct {
	mu      sync.Mutex
	prompts []domain.Message
	reply   string
	err     error
}

func (m *mockGateway) Ask(_ context.Context, prompt domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return domain.Message{}, m.err
	}
	return domain.NewAssistantMessage(m.reply, prompt.ID), nil
}

func (m *mockGateway) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

type failingMessages struct {
	domain.MessageRepository
	err error
}

func (f failingMessages) Append(context.Context, domain.Message) error { return f.err }
func (f failingMessages) Clear(context.Context) error                  { return f.err }
func (f failingMessages) Observe(context.Context) (<-chan []domain.Message, error) {
	return nil, f.err
}

type mockConfigRepo struct {
	mu      sync.Mutex
	cfg     domain.Configuration
	getErr  error
	saveErr error
	saves   int
	updates chan domain.ConfigurationUpdate
}

func (m *mockConfigRepo) Get(context.Context) (domain.Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, m.getErr
}

func (m *mockConfigRepo) Save(_ context.Context, cfg domain.Configuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.cfg = cfg
	return nil
}

func (m *mockConfigRepo) Observe(context.Context) (<-chan domain.ConfigurationUpdate, error) {
	if m.getErr != nil && m.updates == nil {
		return nil, m.getErr
	}
	return m.updates, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Publish(_ context.Context, e domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}
func (b *recordingBus) Subscribe(domain.EventType, domain.EventHandler) func() { return func() {} }
func (b *recordingBus) SubscribeAll(domain.EventHandler) func()                { return func() {} }
func (b *recordingBus) Close()                                                 {}

func (b *recordingBus) types() []domain.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.EventType, len(b.events))
	for i, e := range b.events {
		out[i] = e.Type
	}
	return out
}

func (b *recordingBus) payload(i int) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var p map[string]any
	_ = json.Unmarshal(b.events[i].Payload, &p)
	return p
}

func testLogger() *slog.Logger {
	return slog.Default()
}
