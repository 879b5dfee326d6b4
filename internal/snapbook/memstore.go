package snapbook

import (
	"context"
	"sync"

	"snapbook/internal/model"
)

// MemStore is an in-memory Store for dev and tests.
type MemStore struct {
	mu           sync.RWMutex
	participants map[string]model.Participant
	order        []string
	quotes       []model.Quote
	nextQuoteID  int64
	settings     *model.Settings
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{participants: make(map[string]model.Participant)}
}

func cloneParticipant(p model.Participant) model.Participant {
	p.Photos = append([]model.Photo{}, p.Photos...)
	return p
}

func (m *MemStore) CreateParticipant(_ context.Context, p model.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants[p.ID] = cloneParticipant(p)
	m.order = append(m.order, p.ID)
	return nil
}

func (m *MemStore) GetParticipant(_ context.Context, id string) (model.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.participants[id]
	if !ok {
		return model.Participant{}, ErrNotFound
	}
	return cloneParticipant(p), nil
}

func (m *MemStore) ListParticipants(context.Context) ([]model.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Participant, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, cloneParticipant(m.participants[id]))
	}
	return out, nil
}

func (m *MemStore) DeleteParticipant(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.participants[id]; !ok {
		return ErrNotFound
	}
	delete(m.participants, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemStore) AppendPhoto(_ context.Context, participantID string, photo model.Photo, limit int) (model.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[participantID]
	if !ok {
		return model.Participant{}, ErrNotFound
	}
	if len(p.Photos) >= limit {
		return model.Participant{}, ErrPhotoLimit
	}
	p.Photos = append(p.Photos, photo)
	p.UpdatedAt = photo.Timestamp
	m.participants[participantID] = p
	return cloneParticipant(p), nil
}

func (m *MemStore) ListQuotes(context.Context) ([]model.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Quote{}, m.quotes...), nil
}

func (m *MemStore) AddQuote(_ context.Context, text string) (model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextQuoteID++
	q := model.Quote{ID: m.nextQuoteID, Text: text}
	m.quotes = append(m.quotes, q)
	return q, nil
}

func (m *MemStore) GetSettings(context.Context) (model.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return model.DefaultSettings(), nil
	}
	return *m.settings, nil
}

func (m *MemStore) UpdateSettings(_ context.Context, fn func(*model.Settings)) (model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.DefaultSettings()
	if m.settings != nil {
		s = *m.settings
	}
	fn(&s)
	m.settings = &s
	return s, nil
}
