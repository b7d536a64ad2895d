package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ecoads/internal/core"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be present")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("a = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("size = %d", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("old", "x")
	now = now.Add(30 * time.Second)
	c.Set("new", "y")
	now = now.Add(45 * time.Second)

	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("cleaned %d, want 1", n)
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("new should survive")
	}
	now = now.Add(time.Minute)
	if _, ok := c.Get("new"); ok {
		t.Error("new should expire on access")
	}
}

func TestParseCache_HitMissAndInvalidate(t *testing.T) {
	p := NewParseCache(8, time.Hour)
	ctx := context.Background()
	fp := Fingerprint("book.xlsx", []byte("content"))
	calls := 0
	load := func(context.Context) (core.Dataset, error) {
		calls++
		return core.Dataset{Periods: []string{"2025"}}, nil
	}

	if _, hit, _ := p.GetOrLoad(ctx, Key{fp, "A"}, load); hit {
		t.Fatal("first load cannot be a hit")
	}
	if _, hit, _ := p.GetOrLoad(ctx, Key{fp, "A"}, load); !hit {
		t.Fatal("second load should hit")
	}
	p.GetOrLoad(ctx, Key{fp, "B"}, load)
	if calls != 2 {
		t.Fatalf("loads = %d, want 2", calls)
	}

	other := Fingerprint("book.xlsx", []byte("changed"))
	p.GetOrLoad(ctx, Key{other, "A"}, load)

	if n := p.Invalidate(fp); n != 2 {
		t.Fatalf("invalidated %d, want 2", n)
	}
	p.GetOrLoad(ctx, Key{fp, "A"}, load)
	if calls != 4 {
		t.Fatalf("loads = %d, want 4 after invalidation", calls)
	}

	st := p.Stats()
	if st.Hits != 1 || st.Misses != 4 || st.Size != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestParseCache_FailuresNotCached(t *testing.T) {
	p := NewParseCache(8, time.Hour)
	boom := errors.New("boom")
	calls := 0
	load := func(context.Context) (core.Dataset, error) {
		calls++
		return core.Dataset{}, boom
	}
	for i := 0; i < 2; i++ {
		if _, _, err := p.GetOrLoad(context.Background(), Key{"fp", ""}, load); !errors.Is(err, boom) {
			t.Fatalf("err = %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("loads = %d, want 2", calls)
	}
}

func TestParseCache_EmptySheetIsCached(t *testing.T) {
	p := NewParseCache(8, time.Hour)
	calls := 0
	load := func(context.Context) (core.Dataset, error) {
		calls++
		return core.Dataset{Sheet: "Vacía"}, core.ErrEmptyDataset
	}
	for i := 0; i < 3; i++ {
		ds, hit, err := p.GetOrLoad(context.Background(), Key{"fp", "Vacía"}, load)
		if !errors.Is(err, core.ErrEmptyDataset) || ds.Sheet != "Vacía" || hit != (i > 0) {
			t.Fatalf("pass %d: ds=%+v hit=%v err=%v", i, ds, hit, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loads = %d, want 1", calls)
	}
}

func TestParseCache_SheetListsCachedPerFile(t *testing.T) {
	p := NewParseCache(8, time.Hour)
	ctx := context.Background()
	opens := 0
	list := func(context.Context) ([]string, error) {
		opens++
		return []string{"A", "B"}, nil
	}

	for i := 0; i < 3; i++ {
		names, err := p.GetOrListSheets(ctx, "fp", list)
		if err != nil || len(names) != 2 {
			t.Fatalf("names = %v, err = %v", names, err)
		}
		names[0] = "mutated"
	}
	if opens != 1 {
		t.Fatalf("opens = %d, want 1", opens)
	}

	p.Invalidate("fp")
	names, _ := p.GetOrListSheets(ctx, "fp", list)
	if opens != 2 || names[0] != "A" {
		t.Fatalf("after invalidation opens = %d names = %v", opens, names)
	}

	boom := errors.New("corrupt")
	for i := 0; i < 2; i++ {
		if _, err := p.GetOrListSheets(ctx, "bad", func(context.Context) ([]string, error) { return nil, boom }); !errors.Is(err, boom) {
			t.Fatalf("err = %v", err)
		}
	}
}

func TestParseCache_ViewDropsOnlyUnsharedEntries(t *testing.T) {
	p := NewParseCache(8, time.Hour)
	ctx := context.Background()
	load := func(context.Context) (core.Dataset, error) {
		return core.Dataset{Periods: []string{"2025"}}, nil
	}
	for _, k := range []Key{{"f1", "A"}, {"f1", "B"}, {"f2", "A"}} {
		p.GetOrLoad(ctx, k, load)
	}

	p.View("s1", Key{"f1", "A"})
	p.View("s2", Key{"f1", "A"})
	steps := []struct {
		viewer string
		key    Key
		want   int
		size   int
	}{
		{"s1", Key{"f1", "B"}, 0, 3}, // s2 still shows f1|A
		{"s1", Key{"f1", "B"}, 0, 3}, // unchanged view
		{"s2", Key{"f2", "A"}, 1, 2}, // f1|A unshown; s1 keeps f1 alive
		{"s1", Key{}, 1, 1},          // f1 unshown entirely
		{"s2", Key{}, 1, 0},
	}
	for i, st := range steps {
		if got := p.View(st.viewer, st.key); got != st.want {
			t.Errorf("step %d: dropped %d, want %d", i, got, st.want)
		}
		if size := p.Stats().Size; size != st.size {
			t.Errorf("step %d: size = %d, want %d", i, size, st.size)
		}
	}
	if v := p.Stats().Viewers; v != 0 {
		t.Errorf("viewers = %d, want 0", v)
	}
}

func TestParseCache_IdleViewersForgotten(t *testing.T) {
	p := NewParseCache(8, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	p.View("gone", Key{"f1", "A"})
	now = now.Add(30 * time.Second)
	p.View("here", Key{"f1", "A"})
	now = now.Add(45 * time.Second)
	p.CleanExpired()

	if v := p.Stats().Viewers; v != 1 {
		t.Fatalf("viewers = %d, want 1", v)
	}
}

func TestParseCache_ConcurrentLoadsShareOneParse(t *testing.T) {
	p := NewParseCache(8, time.Hour)
	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (core.Dataset, error) {
		calls.Add(1)
		<-release
		return core.Dataset{}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.GetOrLoad(context.Background(), Key{"fp", "S"}, load)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("loads = %d, want 1", n)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("a.xlsx", []byte("x"))
	if a != Fingerprint("a.xlsx", []byte("x")) {
		t.Fatal("fingerprint must be stable")
	}
	if a == Fingerprint("b.xlsx", []byte("x")) || a == Fingerprint("a.xlsx", []byte("y")) {
		t.Fatal("name and content must both matter")
	}
	if len(a) != 64 {
		t.Fatalf("len = %d", len(a))
	}
}

func TestManager_SweepAndSchedule(t *testing.T) {
	m := NewManager(nil)
	m.Register("one", CleanerFunc(func() int { return 2 }))
	m.Register("two", CleanerFunc(func() int { return 0 }))

	got := m.Sweep()
	if got["one"] != 2 || got["two"] != 0 || len(got) != 2 {
		t.Fatalf("sweep = %v", got)
	}

	if err := m.Start("not a schedule"); err == nil {
		t.Fatal("expected schedule error")
	}
	if err := m.Start("@every 1h"); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.Stop()
}
