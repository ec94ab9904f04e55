package ws

import (
	"encoding/json"
	"sort"
	"time"
)

// palette is indexed by participant id, so a reconnecting user keeps the
// same color without any stored assignment. Collisions are fine.
var palette = [...]string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7",
	"#DDA0DD", "#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E9",
}

func colorFor(id ParticipantID) string {
	i := int64(id) % int64(len(palette))
	if i < 0 {
		i = -i
	}
	return palette[i]
}

// Presence is the ephemeral per-participant state of a room.
type Presence struct {
	ParticipantID ParticipantID
	DisplayName   string
	Color         string
	CursorX       float64
	CursorY       float64
	// Timestamp is whatever the client last sent alongside its cursor.
	Timestamp json.RawMessage
	UpdatedAt time.Time
}

func (p *Presence) view() UserView {
	return UserView{
		ID:       p.ParticipantID,
		Username: p.DisplayName,
		Cursor: Cursor{
			X:         p.CursorX,
			Y:         p.CursorY,
			Color:     p.Color,
			Username:  p.DisplayName,
			Timestamp: p.Timestamp,
		},
	}
}

// presenceStore is not safe for concurrent use; the owning room's lock
// guards it.
type presenceStore struct {
	entries map[ParticipantID]*Presence
}

func newPresenceStore() *presenceStore {
	return &presenceStore{entries: make(map[ParticipantID]*Presence)}
}

// upsert creates the entry or refreshes the display name of an existing one.
// The cursor of an existing entry is kept.
func (s *presenceStore) upsert(p Participant, now time.Time) (*Presence, bool) {
	if e, ok := s.entries[p.ID]; ok {
		e.DisplayName = p.Username
		e.UpdatedAt = now
		return e, false
	}
	e := &Presence{
		ParticipantID: p.ID,
		DisplayName:   p.Username,
		Color:         colorFor(p.ID),
		UpdatedAt:     now,
	}
	s.entries[p.ID] = e
	return e, true
}

func (s *presenceStore) moveCursor(id ParticipantID, x, y float64, ts json.RawMessage, now time.Time) (UserView, bool) {
	e, ok := s.entries[id]
	if !ok {
		return UserView{}, false
	}
	e.CursorX, e.CursorY = x, y
	e.Timestamp = ts
	e.UpdatedAt = now
	return e.view(), true
}

func (s *presenceStore) remove(id ParticipantID) {
	delete(s.entries, id)
}

// lastActivity is the most recent join or cursor move in the store.
func (s *presenceStore) lastActivity() time.Time {
	var last time.Time
	for _, e := range s.entries {
		if e.UpdatedAt.After(last) {
			last = e.UpdatedAt
		}
	}
	return last
}

func (s *presenceStore) len() int { return len(s.entries) }

// snapshot is ordered by participant id.
func (s *presenceStore) snapshot() []UserView {
	out := make([]UserView, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.view())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
