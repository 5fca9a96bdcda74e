package subcache

import "testing"

func TestGetMissingIsUnknown(t *testing.T) {
	c := New()

	status, found := c.Get("1")
	if found {
		t.Error("Get on empty cache reported found")
	}
	if status != StatusUnknown {
		t.Errorf("status = %v, want Unknown", status)
	}
}

func TestSetAndGet(t *testing.T) {
	c := New()
	gen := c.Generation()

	if !c.Set("1", true, gen) {
		t.Fatal("Set with current generation was dropped")
	}
	c.Set("2", false, gen)

	if status, found := c.Get("1"); !found || status != StatusPresent {
		t.Errorf("Get(1) = %v, %v, want Present, true", status, found)
	}
	if status, found := c.Get("2"); !found || status != StatusAbsent {
		t.Errorf("Get(2) = %v, %v, want Absent, true", status, found)
	}
}

func TestStaleGenerationWriteDropped(t *testing.T) {
	c := New()
	gen := c.Generation()

	c.Invalidate([]string{"1"})

	if c.Set("1", true, gen) {
		t.Error("write with stale generation was accepted")
	}
	if _, found := c.Get("1"); found {
		t.Error("stale write resurrected an invalidated entry")
	}
}

func TestInvalidateTouchesOnlyGivenKeys(t *testing.T) {
	c := New()
	gen := c.Generation()
	c.Set("a", true, gen)
	c.Set("b", true, gen)
	c.Set("c", false, gen)

	c.Invalidate([]string{"a", "b"})

	if _, found := c.Get("a"); found {
		t.Error("invalidated entry a still found")
	}
	if _, found := c.Get("b"); found {
		t.Error("invalidated entry b still found")
	}
	if status, found := c.Get("c"); !found || status != StatusAbsent {
		t.Error("untouched entry c lost its status")
	}
}

func TestInvalidateEmptyKeepsGeneration(t *testing.T) {
	c := New()
	gen := c.Generation()

	c.Invalidate(nil)

	if c.Generation() != gen {
		t.Error("empty invalidation bumped the generation")
	}
}

func TestClearRemovesEverything(t *testing.T) {
	c := New()
	gen := c.Generation()
	c.Set("a", true, gen)
	c.Set("b", false, gen)

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len after clear = %d, want 0", c.Len())
	}
	if c.Set("a", true, gen) {
		t.Error("write with pre-clear generation was accepted")
	}
}
