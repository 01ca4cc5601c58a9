package relay

import (
	"sync"
	"time"
)

type albumKey struct {
	botID   int64
	groupID string
}

type albumGroup struct {
	fileIDs []string
	timer   *time.Timer
}

// AlbumBatcher accumulates photo file ids that share a media group id and
// flushes them as a single batch once no new member arrives within the
// configured delay. Telegram delivers album members as separate updates
// with no terminator, so the flush is driven by a timer armed on the
// first member.
type AlbumBatcher struct {
	mu     sync.Mutex
	groups map[albumKey]*albumGroup
}

func NewAlbumBatcher() *AlbumBatcher {
	return &AlbumBatcher{groups: make(map[albumKey]*albumGroup)}
}

// Collect adds fileID to the album and reports whether it opened the
// batch. The flush callback runs once per batch, on the timer goroutine,
// with the file ids in arrival order.
func (b *AlbumBatcher) Collect(botID int64, groupID, fileID string, delay time.Duration, flush func(fileIDs []string)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := albumKey{botID: botID, groupID: groupID}
	if g, ok := b.groups[k]; ok {
		g.fileIDs = append(g.fileIDs, fileID)
		return false
	}

	g := &albumGroup{fileIDs: []string{fileID}}
	g.timer = time.AfterFunc(delay, func() {
		if ids := b.take(k); ids != nil {
			flush(ids)
		}
	})
	b.groups[k] = g
	return true
}

// Pending reports how many albums are currently accumulating.
func (b *AlbumBatcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.groups)
}

func (b *AlbumBatcher) take(k albumKey) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, ok := b.groups[k]
	if !ok {
		return nil
	}
	delete(b.groups, k)
	return g.fileIDs
}
