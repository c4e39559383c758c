package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL брошенный диалог забывается через это время
const DefaultTTL = 15 * time.Minute

// Manager хранит диалоги пользователей по telegramID
type Manager struct {
	mu      sync.Mutex
	dialogs map[int64]Dialog
	ttl     time.Duration
	now     func() time.Time
}

// NewManager ttl <= 0 означает DefaultTTL
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		dialogs: make(map[int64]Dialog),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Begin начинает диалог, предыдущий диалог пользователя заменяется
func (m *Manager) Begin(telegramID int64, state UserState, bookingID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state == StateNone {
		delete(m.dialogs, telegramID)
		return
	}
	m.dialogs[telegramID] = Dialog{
		State:     state,
		BookingID: bookingID,
		StartedAt: m.now(),
	}
}

// Current активный диалог пользователя. Просроченный удаляется.
func (m *Manager) Current(telegramID int64) (Dialog, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.dialogs[telegramID]
	if !ok {
		return Dialog{}, false
	}
	if m.now().Sub(d.StartedAt) > m.ttl {
		delete(m.dialogs, telegramID)
		return Dialog{}, false
	}
	return d, true
}

// State шаг диалога или StateNone
func (m *Manager) State(telegramID int64) UserState {
	d, _ := m.Current(telegramID)
	return d.State
}

// Clear завершает диалог. false если активного диалога не было.
func (m *Manager) Clear(telegramID int64) bool {
	_, ok := m.Current(telegramID)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dialogs, telegramID)
	return ok
}
