package persistence

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// SessionKey is the tuple that pairs a calendar event with its journal lesson.
type SessionKey struct {
	OwnerID string
	GroupID string
	Title   string
	Start   time.Time
}

// EventKey returns the pairing key of an event.
func EventKey(event CalendarEvent) SessionKey {
	return SessionKey{OwnerID: event.OwnerID, GroupID: event.GroupID, Title: event.Title, Start: event.Start}
}

// LessonKey returns the pairing key of a lesson.
func LessonKey(lesson JournalLesson) SessionKey {
	return SessionKey{OwnerID: lesson.OwnerID, GroupID: lesson.GroupID, Title: lesson.Topic, Start: lesson.Date}
}

// NormalizeInstant truncates to whole seconds in UTC, the precision both stores keep.
func NormalizeInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Equal compares keys exactly, instants by value.
func (k SessionKey) Equal(other SessionKey) bool {
	return k.OwnerID == other.OwnerID &&
		k.GroupID == other.GroupID &&
		k.Title == other.Title &&
		NormalizeInstant(k.Start).Equal(NormalizeInstant(other.Start))
}

// Digest returns a hex blake2b-256 digest of the key, stored in an indexed
// column so lookups hit one index instead of four columns.
func (k SessionKey) Digest() string {
	h, _ := blake2b.New256(nil)
	for _, part := range []string{k.OwnerID, k.GroupID, k.Title, NormalizeInstant(k.Start).Format(time.RFC3339)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
