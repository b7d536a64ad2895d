package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"ecoads/internal/core"
)

// Key identifies one parsed sheet of one file.
type Key struct {
	Fingerprint string
	Sheet       string
}

func (k Key) String() string { return k.Fingerprint + "|" + k.Sheet }

// Fingerprint hashes file identity: a renamed upload with the same bytes is a new file.
func Fingerprint(name string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// LoadFunc parses one sheet.
type LoadFunc func(ctx context.Context) (core.Dataset, error)

// ListFunc opens a workbook and returns its sheet names.
type ListFunc func(ctx context.Context) ([]string, error)

// Stats counts cache traffic since creation.
type Stats struct {
	Hits    int64
	Misses  int64
	Size    int
	Viewers int
}

type view struct {
	key  Key
	seen time.Time
}

// ParseCache memoizes parsed datasets by Key and sheet lists by fingerprint.
// Concurrent misses for the same key share one load. Failed loads are not
// stored; a readable sheet without data is, and keeps reporting
// core.ErrEmptyDataset on every hit.
//
// Entries are shared by every session. View tracks which key each session
// shows so that a session moving on only drops entries nobody else shows.
type ParseCache struct {
	lru    *LRUCache[core.Dataset]
	lists  *LRUCache[[]string]
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64

	mu    sync.Mutex
	views map[string]view
	ttl   time.Duration
	now   func() time.Time
}

func NewParseCache(maxSize int, ttl time.Duration) *ParseCache {
	return &ParseCache{
		lru:   NewLRUCache[core.Dataset](maxSize, ttl),
		lists: NewLRUCache[[]string](maxSize, ttl),
		views: make(map[string]view),
		ttl:   ttl,
		now:   time.Now,
	}
}

// GetOrLoad returns the cached dataset for key or runs load once.
func (p *ParseCache) GetOrLoad(ctx context.Context, key Key, load LoadFunc) (core.Dataset, bool, error) {
	if ds, ok := p.lru.Get(key.String()); ok {
		p.hits.Add(1)
		if ds.IsEmpty() {
			return ds, true, core.ErrEmptyDataset
		}
		return ds, true, nil
	}
	p.misses.Add(1)

	v, err, _ := p.group.Do(key.String(), func() (any, error) {
		ds, err := load(ctx)
		if err != nil && !errors.Is(err, core.ErrEmptyDataset) {
			return ds, err
		}
		p.lru.Set(key.String(), ds)
		return ds, err
	})
	return v.(core.Dataset), false, err
}

// GetOrListSheets returns the cached sheet names of a file or runs list once.
func (p *ParseCache) GetOrListSheets(ctx context.Context, fingerprint string, list ListFunc) ([]string, error) {
	if names, ok := p.lists.Get(fingerprint); ok {
		return append([]string(nil), names...), nil
	}
	v, err, _ := p.group.Do("sheets:"+fingerprint, func() (any, error) {
		names, err := list(ctx)
		if err != nil {
			return []string(nil), err
		}
		p.lists.Set(fingerprint, names)
		return names, nil
	})
	return append([]string(nil), v.([]string)...), err
}

// Invalidate drops every cached sheet of the file and its sheet list. The
// count covers parsed sheets only.
func (p *ParseCache) Invalidate(fingerprint string) int {
	p.lists.Delete(fingerprint)
	prefix := fingerprint + "|"
	return p.lru.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, prefix) })
}

// InvalidateKey drops one sheet.
func (p *ParseCache) InvalidateKey(key Key) bool {
	return p.lru.Delete(key.String())
}

func (p *ParseCache) InvalidateAll() {
	p.lru.Clear()
	p.lists.Clear()
}

// View records that viewer now shows key; an empty fingerprint means the
// viewer shows nothing cached. The viewer's previous key is dropped when no
// other viewer shows it, and a replaced file loses every sheet when no
// other viewer shows any of them. It returns the number of parsed sheets
// dropped.
func (p *ParseCache) View(viewer string, key Key) int {
	if viewer == "" {
		return 0
	}
	p.mu.Lock()
	prev, had := p.views[viewer]
	if key.Fingerprint == "" {
		delete(p.views, viewer)
	} else {
		p.views[viewer] = view{key: key, seen: p.now()}
	}
	if !had || prev.key == key {
		p.mu.Unlock()
		return 0
	}
	var fileShown, sheetShown bool
	for id, v := range p.views {
		if id == viewer || v.key.Fingerprint != prev.key.Fingerprint {
			continue
		}
		fileShown = true
		if v.key == prev.key {
			sheetShown = true
		}
	}
	p.mu.Unlock()

	switch {
	case prev.key.Fingerprint != key.Fingerprint && !fileShown:
		return p.Invalidate(prev.key.Fingerprint)
	case !sheetShown:
		if p.InvalidateKey(prev.key) {
			return 1
		}
	}
	return 0
}

// CleanExpired removes expired sheets and lists, and forgets viewers idle
// for longer than the entry lifetime.
func (p *ParseCache) CleanExpired() int {
	cutoff := p.now().Add(-p.ttl)
	p.mu.Lock()
	for id, v := range p.views {
		if v.seen.Before(cutoff) {
			delete(p.views, id)
		}
	}
	p.mu.Unlock()
	return p.lru.CleanExpired() + p.lists.CleanExpired()
}

func (p *ParseCache) Stats() Stats {
	p.mu.Lock()
	viewers := len(p.views)
	p.mu.Unlock()
	return Stats{Hits: p.hits.Load(), Misses: p.misses.Load(), Size: p.lru.Size(), Viewers: viewers}
}
