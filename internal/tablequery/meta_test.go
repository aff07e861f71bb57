package tablequery

import "testing"

func TestNewMeta(t *testing.T) {
	m := NewMeta(2, 10, 15)
	if m.LastPage != 2 {
		t.Fatalf("expected last page 2, got %d", m.LastPage)
	}
	if m.CurrentPage != 2 || m.PerPage != 10 || m.Total != 15 {
		t.Fatalf("unexpected meta %+v", m)
	}
}

func TestNewMetaEmptyResult(t *testing.T) {
	m := NewMeta(1, 10, 0)
	if m.LastPage != 1 {
		t.Fatalf("last page must clamp to 1 for empty results, got %d", m.LastPage)
	}
	if _, clamped := m.Clamp(); clamped {
		t.Fatalf("page 1 of an empty set must not clamp")
	}
}

func TestClampBeyondLastPage(t *testing.T) {
	m := NewMeta(9, 10, 15)
	target, clamped := m.Clamp()
	if !clamped || target != 2 {
		t.Fatalf("expected clamp to page 2, got target=%d clamped=%v", target, clamped)
	}
}

func TestClampExactLastPage(t *testing.T) {
	m := NewMeta(2, 10, 15)
	if _, clamped := m.Clamp(); clamped {
		t.Fatalf("the last page itself must not clamp")
	}
}
