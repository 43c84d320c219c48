// Package stats implements the per-scope press counters. A scope is either
// the global singleton or one community; both share the same counter logic
// and the same storage layout: <scope>/stats/epoch plus one integer key per
// counter name under <scope>/stats/count/.
package stats

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"pressbot/pkg/logger"
	"pressbot/pkg/models"
	"pressbot/pkg/store"
)

// Kind discriminates stat scopes.
type Kind string

const (
	KindGlobal    Kind = "global"
	KindCommunity Kind = "community"
)

// Scope identifies one counter namespace.
type Scope struct {
	Kind Kind
	ID   string // community id; empty for the global scope
}

// Global returns the singleton global scope.
func Global() Scope { return Scope{Kind: KindGlobal} }

// Community returns the scope for one community.
func Community(id string) Scope { return Scope{Kind: KindCommunity, ID: id} }

// Tree returns the configuration subtree owning this scope's counters.
func (s Scope) Tree() store.Tree {
	if s.Kind == KindGlobal {
		return store.Sub("global/stats")
	}
	return store.Sub("communities/" + s.ID + "/stats")
}

func (s Scope) String() string {
	if s.Kind == KindGlobal {
		return "global"
	}
	return "community:" + s.ID
}

// Counter wraps scope counters with lazy epoch initialization and rate
// derivation. One Counter serves every scope; the scope is a parameter.
type Counter struct {
	names []string
	now   func() time.Time

	// mu serializes increments so the lazy epoch init and the bump form one
	// critical section; concurrent first increments on a fresh scope must
	// not zero each other's counts or rewrite the epoch.
	mu sync.Mutex
}

// New returns a Counter tracking the given counter names. The names are used
// to zero-initialize a scope on its first increment.
func New(names []string) *Counter {
	return &Counter{names: append([]string(nil), names...), now: time.Now}
}

// SetClock overrides the timestamp source; tests only.
func (c *Counter) SetClock(now func() time.Time) { c.now = now }

// Increment bumps the named counter by one in the given scope. On the first
// increment ever seen by the scope, the epoch is recorded and all known
// counters are zeroed; the epoch is never modified afterwards.
func (c *Counter) Increment(scope Scope, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := scope.Tree()
	ok, err := t.Has("epoch")
	if err != nil {
		return err
	}
	if !ok {
		epoch := c.now().UTC().Unix()
		if err := t.Set("epoch", []byte(strconv.FormatInt(epoch, 10))); err != nil {
			return err
		}
		for _, n := range c.names {
			if err := t.Set("count/"+n, []byte("0")); err != nil {
				return err
			}
		}
		logger.Info("stat_scope_initialized", "scope", scope.String(), "epoch", epoch)
	}
	return t.GetAndSet("count/"+name, func(cur []byte) ([]byte, error) {
		n := int64(0)
		if cur != nil {
			v, err := strconv.ParseInt(string(cur), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("corrupt counter %s/%s: %w", scope.String(), name, err)
			}
			n = v
		}
		return []byte(strconv.FormatInt(n+1, 10)), nil
	})
}

// Value returns the stored count for the named counter, or 0 when the scope
// has never been incremented.
func (c *Counter) Value(scope Scope, name string) (int64, error) {
	t := scope.Tree()
	v, err := t.Get("count/" + name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseInt(string(v), 10, 64)
}

// Epoch returns the scope's epoch, or zero time when unset.
func (c *Counter) Epoch(scope Scope) (time.Time, error) {
	v, err := scope.Tree().Get("epoch")
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	sec, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt epoch for %s: %w", scope.String(), err)
	}
	return time.Unix(sec, 0).UTC(), nil
}

// RatePerHour returns the average count per hour since the scope's epoch,
// rounded to one decimal place, or 0.0 when the epoch is unset. A very young
// epoch can produce a very large rate; that is accepted, not clamped.
func (c *Counter) RatePerHour(scope Scope, name string) (float64, error) {
	epoch, err := c.Epoch(scope)
	if err != nil {
		return 0, err
	}
	if epoch.IsZero() {
		return 0, nil
	}
	n, err := c.Value(scope, name)
	if err != nil {
		return 0, err
	}
	hours := c.now().UTC().Sub(epoch).Seconds() / 3600
	if hours <= 0 {
		return 0, nil
	}
	return math.Round(float64(n)/hours*10) / 10, nil
}

// Snapshot returns counts and rates for every tracked counter in the scope.
func (c *Counter) Snapshot(scope Scope) (models.ScopeStats, error) {
	out := models.ScopeStats{
		Counts: map[string]int64{},
		Rates:  map[string]float64{},
	}
	for _, n := range c.names {
		v, err := c.Value(scope, n)
		if err != nil {
			return out, err
		}
		r, err := c.RatePerHour(scope, n)
		if err != nil {
			return out, err
		}
		out.Counts[n] = v
		out.Rates[n] = r
	}
	return out, nil
}
