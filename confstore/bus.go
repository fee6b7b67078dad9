// Copyright (C) 2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package confstore

import (
	"context"
	"strings"
	"sync"

	"github.com/cardinalhq/tenantconf/internal/logctx"
)

// Event describes one leaf configuration change. OldValue is read from the
// tenant's raw overrides before the mutation, not from the merged view, so
// it is nil when the previous effective value was inherited from global.
type Event struct {
	Path     string
	NewValue any
	OldValue any
	TenantID string
}

// ListenerFunc receives change events. Listeners run sequentially in
// registration order on the mutating call; a panic is recovered and logged
// without affecting sibling listeners or the mutating caller.
type ListenerFunc func(ctx context.Context, event Event)

type subscription struct {
	pattern string
	fn      ListenerFunc
}

// bus is the path-addressed change notification registry. Patterns are
// either exact paths ("ai.model") or prefix wildcards ("ai.*") matching any
// strictly nested path.
type bus struct {
	mu   sync.Mutex
	subs []*subscription
}

func newBus() *bus {
	return &bus{}
}

// subscribe registers a listener and returns its cancel function.
func (b *bus) subscribe(pattern string, fn ListenerFunc) func() {
	sub := &subscription{pattern: pattern, fn: fn}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s == sub {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// clear removes every listener.
func (b *bus) clear() {
	b.mu.Lock()
	b.subs = nil
	b.mu.Unlock()
}

// emit invokes every matching listener, sequentially, in registration
// order. It returns once all listeners have run.
func (b *bus) emit(ctx context.Context, event Event) {
	b.mu.Lock()
	matched := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if patternMatches(sub.pattern, event.Path) {
			matched = append(matched, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range matched {
		invokeListener(ctx, sub, event)
	}
}

func invokeListener(ctx context.Context, sub *subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logctx.FromContext(ctx).Error("config change listener panicked",
				"pattern", sub.pattern,
				"path", event.Path,
				"tenant_id", event.TenantID,
				"panic", r)
		}
	}()
	sub.fn(ctx, event)
}

// patternMatches reports whether a subscription pattern matches a changed
// path: an exact match, or a ".*" suffix matching any path strictly nested
// under the prefix. "ai.*" matches "ai.model" and "ai.nested.key" but not
// "aiFoo.bar" or "ai" itself.
func patternMatches(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(path, prefix+".")
	}
	return pattern == path
}
