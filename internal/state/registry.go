package state

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/danhigham/tgcore/internal/domain"
)

type entry struct {
	chat domain.Chat
	seq  uint64 // insertion order, breaks timestamp ties
}

// Registry is the canonical, ordered chat list built from backend updates.
// Chats are sorted newest last message first; chats without messages come
// last. Ties keep insertion order.
type Registry struct {
	mu       sync.RWMutex
	chats    []*entry
	byID     map[int64]*entry
	nextSeq  uint64
	onChange func()
	logger   *zap.Logger
}

func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		byID:   make(map[int64]*entry),
		logger: logger.Named("state"),
	}
}

// SetOnChange installs a hook called after every mutation, outside the lock.
func (r *Registry) SetOnChange(f func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = f
}

// Apply folds one update into the list and reports whether anything changed.
func (r *Registry) Apply(u domain.Update) bool {
	r.mu.Lock()
	changed := r.apply(u)
	onChange := r.onChange
	r.mu.Unlock()

	if changed && onChange != nil {
		onChange()
	}
	return changed
}

func (r *Registry) apply(u domain.Update) bool {
	switch u := u.(type) {
	case domain.NewChat:
		if _, ok := r.byID[u.Chat.ID]; ok {
			return false
		}
		e := &entry{chat: u.Chat.Clone(), seq: r.nextSeq}
		r.nextSeq++
		r.byID[e.chat.ID] = e
		r.insert(e)
		return true

	case domain.ChatLastMessage:
		e, ok := r.byID[u.ChatID]
		if !ok {
			return false
		}
		r.remove(e)
		if u.Message != nil {
			msg := *u.Message
			e.chat.LastMessage = &msg
		} else {
			e.chat.LastMessage = nil
		}
		r.insert(e)
		return true

	case domain.ChatTitle:
		e, ok := r.byID[u.ChatID]
		if !ok || e.chat.Title == u.Title {
			return false
		}
		e.chat.Title = u.Title
		return true

	case domain.ChatReadInbox:
		e, ok := r.byID[u.ChatID]
		if !ok || e.chat.UnreadCount == u.UnreadCount {
			return false
		}
		e.chat.UnreadCount = u.UnreadCount
		return true

	case domain.NewMessage:
		// The backend follows up with ChatLastMessage.
		return false

	default:
		r.logger.Debug("ignore update", zap.String("type", fmt.Sprintf("%T", u)))
		return false
	}
}

// insert places e at its sorted position.
func (r *Registry) insert(e *entry) {
	i, _ := slices.BinarySearchFunc(r.chats, e, compareEntries)
	r.chats = slices.Insert(r.chats, i, e)
}

// remove takes e out of the list. It must be called before e's sort key
// changes.
func (r *Registry) remove(e *entry) {
	i, found := slices.BinarySearchFunc(r.chats, e, compareEntries)
	if !found {
		i = slices.Index(r.chats, e)
	}
	r.chats = slices.Delete(r.chats, i, i+1)
}

func compareEntries(a, b *entry) int {
	am, bm := a.chat.LastMessage, b.chat.LastMessage
	switch {
	case am != nil && bm == nil:
		return -1
	case am == nil && bm != nil:
		return 1
	case am != nil && bm != nil && !am.Date.Equal(bm.Date):
		if am.Date.After(bm.Date) {
			return -1
		}
		return 1
	}
	switch {
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	}
	return 0
}

// Snapshot returns a copy of the current ordering.
func (r *Registry) Snapshot() []domain.Chat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Chat, len(r.chats))
	for i, e := range r.chats {
		out[i] = e.chat.Clone()
	}
	return out
}

func (r *Registry) Get(chatID int64) (domain.Chat, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[chatID]
	if !ok {
		return domain.Chat{}, false
	}
	return e.chat.Clone(), true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chats)
}
