package account

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"siaguard/internal/config"
)

// Registry holds the configured accounts, keyed by uppercased id. It is
// populated once at construction and read-only afterwards, so lookups are
// safe from any goroutine without locking.
type Registry struct {
	accounts map[string]*Account
}

func NewRegistry(accounts ...*Account) *Registry {
	m := make(map[string]*Account, len(accounts))
	for _, a := range accounts {
		if a != nil {
			m[a.ID] = a
		}
	}
	return &Registry{accounts: m}
}

func (r *Registry) Get(id string) *Account {
	return r.accounts[strings.ToUpper(strings.TrimSpace(id))]
}

func (r *Registry) Len() int {
	return len(r.accounts)
}

func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.accounts))
	for id := range r.accounts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// BuildRegistry constructs all configured accounts, failing fast on the
// first malformed one.
func BuildRegistry(cfgs []config.AccountConfig) (*Registry, error) {
	accounts := make([]*Account, 0, len(cfgs))
	for _, c := range cfgs {
		skew := DefaultSkew()
		if c.UnboundedSkew {
			skew = SkewPolicy{Unbounded: true}
		} else {
			if c.AllowedSkewPast != 0 {
				skew.Past = c.AllowedSkewPast
			}
			if c.AllowedSkewFuture != 0 {
				skew.Future = c.AllowedSkewFuture
			}
		}
		loc := time.UTC
		if c.Timezone != "" {
			l, err := time.LoadLocation(c.Timezone)
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", c.ID, err)
			}
			loc = l
		}
		a, err := NewWithSkew(c.ID, c.Key, skew, loc)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", c.ID, err)
		}
		accounts = append(accounts, a)
	}
	return NewRegistry(accounts...), nil
}
