// Package memory is an in-process ledger store. Each unit of work holds a
// mutex per user it has locked and stages its writes until commit.
package memory

import (
	"sort"
	"sync"
	"time"

	"fundsledger/domain/entities"

	"github.com/shopspring/decimal"
)

// Store holds committed ledger state
type Store struct {
	mu           sync.Mutex
	funds        map[string]*entities.UserFunds
	transactions map[string]*entities.FundTransaction
	promos       map[string]*entities.PromoFund

	locksMu   sync.Mutex
	userLocks map[string]*sync.Mutex

	failCommits int
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		funds:        make(map[string]*entities.UserFunds),
		transactions: make(map[string]*entities.FundTransaction),
		promos:       make(map[string]*entities.PromoFund),
		userLocks:    make(map[string]*sync.Mutex),
	}
}

// FailNextCommits makes the next n commits fail with a concurrency conflict
func (s *Store) FailNextCommits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommits = n
}

// Ping always succeeds
func (s *Store) Ping() error {
	return nil
}

func (s *Store) userLock(userID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

// consumeCommitFailure reports whether the caller's commit should fail
func (s *Store) consumeCommitFailure() bool {
	if s.failCommits > 0 {
		s.failCommits--
		return true
	}
	return false
}

func cloneFunds(f *entities.UserFunds) *entities.UserFunds {
	if f == nil {
		return nil
	}
	return f.Clone()
}

func clonePromo(p *entities.PromoFund) *entities.PromoFund {
	if p == nil {
		return nil
	}
	c := *p
	if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		c.ExpiresAt = &t
	}
	if p.Requirements.EligiblePlatforms != nil {
		c.Requirements.EligiblePlatforms = append([]string(nil), p.Requirements.EligiblePlatforms...)
	}
	return &c
}

func cloneTransaction(t *entities.FundTransaction) *entities.FundTransaction {
	if t == nil {
		return nil
	}
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	if t.Annotations != nil {
		c.Annotations = make(map[string]string, len(t.Annotations))
		for k, v := range t.Annotations {
			c.Annotations[k] = v
		}
	}
	return &c
}

// sortActivePromos orders grants soonest expiry first, grants without expiry
// last, then by grant time.
func sortActivePromos(promos []*entities.PromoFund) {
	sort.SliceStable(promos, func(i, j int) bool {
		a, b := promos[i], promos[j]
		switch {
		case a.ExpiresAt != nil && b.ExpiresAt == nil:
			return true
		case a.ExpiresAt == nil && b.ExpiresAt != nil:
			return false
		case a.ExpiresAt != nil && b.ExpiresAt != nil && !a.ExpiresAt.Equal(*b.ExpiresAt):
			return a.ExpiresAt.Before(*b.ExpiresAt)
		}
		if !a.GrantedAt.Equal(b.GrantedAt) {
			return a.GrantedAt.Before(b.GrantedAt)
		}
		return a.ID < b.ID
	})
}

func sortNewestFirst(transactions []*entities.FundTransaction) {
	sort.SliceStable(transactions, func(i, j int) bool {
		if !transactions[i].CreatedAt.Equal(transactions[j].CreatedAt) {
			return transactions[i].CreatedAt.After(transactions[j].CreatedAt)
		}
		return transactions[i].ID > transactions[j].ID
	})
}

func activePromoTotal(promos []*entities.PromoFund) decimal.Decimal {
	total := decimal.Zero
	for _, p := range promos {
		if p.Status == entities.PromoStatusActive {
			total = total.Add(p.RemainingAmount)
		}
	}
	return total
}

func expiredBy(p *entities.PromoFund, now time.Time) bool {
	return p.Status == entities.PromoStatusActive && p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}
