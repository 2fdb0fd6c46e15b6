package convo

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const DefaultCapacity = 20

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Exchange struct {
	Role        Role
	Participant string
	Text        string
	At          time.Time
}

// ring is a fixed-size FIFO of exchanges. When full, a push overwrites the
// oldest entry.
type ring struct {
	items []Exchange
	head  int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{items: make([]Exchange, capacity)}
}

func (r *ring) push(item Exchange) {
	capacity := len(r.items)
	index := (r.head + r.size) % capacity
	r.items[index] = item
	if r.size < capacity {
		r.size++
		return
	}
	r.head = (r.head + 1) % capacity
}

func (r *ring) snapshot() []Exchange {
	out := make([]Exchange, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}

func (r *ring) reset() {
	for i := range r.items {
		r.items[i] = Exchange{}
	}
	r.head = 0
	r.size = 0
}

type roomBuffer struct {
	mu   sync.Mutex
	ring *ring
}

// Store keeps the recent exchanges of every room. Rooms are locked
// independently; appends within one room keep arrival order.
type Store struct {
	capacity int

	mu    sync.RWMutex
	rooms map[string]*roomBuffer
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		rooms:    map[string]*roomBuffer{},
	}
}

func (s *Store) Capacity() int {
	return s.capacity
}

func (s *Store) Append(room string, exchange Exchange) {
	buffer := s.room(room, true)
	buffer.mu.Lock()
	buffer.ring.push(exchange)
	buffer.mu.Unlock()
}

// AppendAndSnapshot appends exchange and returns the room history with
// exchange as its last entry.
func (s *Store) AppendAndSnapshot(room string, exchange Exchange) []Exchange {
	buffer := s.room(room, true)
	buffer.mu.Lock()
	defer buffer.mu.Unlock()
	buffer.ring.push(exchange)
	return buffer.ring.snapshot()
}

// Snapshot returns the room history, oldest first.
func (s *Store) Snapshot(room string) []Exchange {
	buffer := s.room(room, false)
	if buffer == nil {
		return nil
	}
	buffer.mu.Lock()
	defer buffer.mu.Unlock()
	return buffer.ring.snapshot()
}

func (s *Store) Len(room string) int {
	buffer := s.room(room, false)
	if buffer == nil {
		return 0
	}
	buffer.mu.Lock()
	defer buffer.mu.Unlock()
	return buffer.ring.size
}

// Clear forgets the room's history. The room stays known for Rooms.
func (s *Store) Clear(room string) {
	buffer := s.room(room, false)
	if buffer == nil {
		return
	}
	buffer.mu.Lock()
	buffer.ring.reset()
	buffer.mu.Unlock()
}

// Rooms lists every room that has been appended to, sorted.
func (s *Store) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

func (s *Store) room(room string, create bool) *roomBuffer {
	room = strings.TrimSpace(room)
	s.mu.RLock()
	buffer, ok := s.rooms[room]
	s.mu.RUnlock()
	if ok || !create {
		return buffer
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if buffer, ok = s.rooms[room]; ok {
		return buffer
	}
	buffer = &roomBuffer{ring: newRing(s.capacity)}
	s.rooms[room] = buffer
	return buffer
}
