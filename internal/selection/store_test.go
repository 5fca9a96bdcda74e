package selection

import (
	"testing"

	"github.com/primetime43/PlexSubSetter/internal/plex"
)

func movie(key, title string) plex.Item {
	return plex.Item{RatingKey: key, Title: title, Type: "movie"}
}

func TestAddIsIdempotent(t *testing.T) {
	s := NewStore()

	items := []plex.Item{movie("1", "a"), movie("2", "b")}
	if got := s.Add(items); got != 2 {
		t.Fatalf("Add returned %d, want 2", got)
	}
	if got := s.Add(items); got != 2 {
		t.Errorf("duplicate Add returned %d, want 2", got)
	}
}

func TestAddSkipsContainers(t *testing.T) {
	s := NewStore()

	count := s.Add([]plex.Item{
		movie("1", "a"),
		{RatingKey: "10", Title: "some show", Type: "show"},
		{RatingKey: "11", Title: "season 1", Type: "season"},
		{RatingKey: "12", Title: "pilot", Type: "episode"},
	})
	if count != 2 {
		t.Errorf("Add returned %d, want 2 (containers skipped)", count)
	}
	if s.Contains("10") || s.Contains("11") {
		t.Error("container items must not be stored")
	}
}

func TestRemoveNonMemberIsNoOp(t *testing.T) {
	s := NewStore()
	s.Add([]plex.Item{movie("1", "a")})

	if got := s.Remove([]string{"99"}); got != 1 {
		t.Errorf("Remove of non-member returned %d, want 1", got)
	}
	if got := s.Remove([]string{"1"}); got != 0 {
		t.Errorf("Remove returned %d, want 0", got)
	}
}

func TestSnapshotUnaffectedByClear(t *testing.T) {
	s := NewStore()
	s.Add([]plex.Item{movie("1", "a"), movie("2", "b"), movie("3", "c")})

	snapshot := s.Snapshot()
	s.Clear()

	if len(snapshot) != 3 {
		t.Errorf("snapshot has %d items after clear, want 3", len(snapshot))
	}
	if s.Count() != 0 {
		t.Errorf("store count after clear = %d, want 0", s.Count())
	}
}

func TestKeysMatchesMembership(t *testing.T) {
	s := NewStore()
	s.Add([]plex.Item{movie("1", "a"), movie("2", "b")})
	s.Remove([]string{"1"})

	keys := s.Keys()
	if len(keys) != 1 || keys[0] != "2" {
		t.Errorf("Keys() = %v, want [2]", keys)
	}
}
