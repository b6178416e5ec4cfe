package querycache

import (
	"time"

	"github.com/goliatone/go-query-cache/cache"
)

// Action is the outcome of a revalidation decision.
type Action int

const (
	// ActionNone serves the cached entry as is.
	ActionNone Action = iota
	// ActionBackgroundRefresh serves the cached entry and refreshes it without waiting.
	ActionBackgroundRefresh
	// ActionBlockingFetch fetches and waits before serving.
	ActionBlockingFetch
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionBackgroundRefresh:
		return "background_refresh"
	case ActionBlockingFetch:
		return "blocking_fetch"
	default:
		return "unknown"
	}
}

// Decide picks the next action for a key. ok reports whether entry exists and
// cycled whether the consumer already completed a fetch cycle for the key.
func Decide(entry cache.Entry, ok bool, now time.Time, ttl time.Duration, cycled bool) Action {
	if !ok || !entry.IsFresh(now, ttl) {
		return ActionBlockingFetch
	}
	if !cycled {
		return ActionBackgroundRefresh
	}
	return ActionNone
}
