package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultMaxCacheBytes is the default budget for cached content (200 MiB).
const DefaultMaxCacheBytes int64 = 200 * 1024 * 1024

// EvictionCandidate is a cached book proposed for removal.
type EvictionCandidate struct {
	BookID       string     `json:"book_id"`
	ByteSize     int64      `json:"byte_size"`
	CachedAt     time.Time  `json:"cached_at"`
	LastOpenedAt *time.Time `json:"last_opened_at,omitempty"`
	Title        string     `json:"title"`
	Author       string     `json:"author"`
}

// EvictionPlan is the planner's answer to "can I store N more bytes?".
// When CanStore is false, Suggested lists entries whose removal frees at
// least BytesToFree, unless Shortfall is positive, in which case evicting
// everything suggested still would not make room.
type EvictionPlan struct {
	CanStore      bool                `json:"can_store"`
	TotalBytes    int64               `json:"total_bytes"`
	MaxBytes      int64               `json:"max_bytes"`
	RequiredBytes int64               `json:"required_bytes"`
	Suggested     []EvictionCandidate `json:"suggested"`
	BytesToFree   int64               `json:"bytes_to_free"`
	Shortfall     int64               `json:"shortfall"`
}

// SuggestedIDs returns the book ids of the suggested candidates in order.
func (p *EvictionPlan) SuggestedIDs() []string {
	ids := make([]string, 0, len(p.Suggested))
	for _, c := range p.Suggested {
		ids = append(ids, c.BookID)
	}
	return ids
}

// SuggestedBytes is the total size of the suggested candidates.
func (p *EvictionPlan) SuggestedBytes() int64 {
	var n int64
	for _, c := range p.Suggested {
		n += c.ByteSize
	}
	return n
}

// Sufficient reports whether the write can proceed once the suggestions are evicted.
func (p *EvictionPlan) Sufficient() bool {
	return p.CanStore || p.Shortfall == 0
}

// Summary renders the plan for humans.
func (p *EvictionPlan) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "used %s of %s, need %s",
		humanize.IBytes(uint64(p.TotalBytes)),
		humanize.IBytes(uint64(p.MaxBytes)),
		humanize.IBytes(uint64(p.RequiredBytes)))
	if p.CanStore {
		b.WriteString(": fits")
		return b.String()
	}
	fmt.Fprintf(&b, ": free %s by removing %d book(s)",
		humanize.IBytes(uint64(p.BytesToFree)), len(p.Suggested))
	if p.Shortfall > 0 {
		fmt.Fprintf(&b, " (still %s short)", humanize.IBytes(uint64(p.Shortfall)))
	}
	return b.String()
}
