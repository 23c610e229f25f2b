package questions

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NamePlaceholder is replaced by the target player's name.
const NamePlaceholder = "{name}"

// Supplier hands out prompt templates that a room has not used yet, preferring
// the globally least used ones.
type Supplier struct {
	store  Store
	cache  *Cache
	logger *zap.Logger

	randMu  sync.Mutex
	randGen *rand.Rand
}

func NewSupplier(store Store, cache *Cache, logger *zap.Logger) *Supplier {
	return &Supplier{
		store:   store,
		cache:   cache,
		logger:  logger,
		randGen: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetCandidate returns a template outside exclude. Among the eligible templates
// only those with the lowest usage count are considered and one of them is
// picked at random. ok is false when every template has been used.
func (s *Supplier) GetCandidate(ctx context.Context, exclude []string) (template string, ok bool, err error) {
	qs, err := s.cache.Questions(ctx)
	if err != nil {
		return "", false, err
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, t := range exclude {
		skip[t] = struct{}{}
	}

	var least []string
	minUsage := 0
	for _, q := range qs {
		if _, used := skip[q.Template]; used {
			continue
		}
		switch {
		case len(least) == 0 || q.UsageCount < minUsage:
			least = []string{q.Template}
			minUsage = q.UsageCount
		case q.UsageCount == minUsage:
			least = append(least, q.Template)
		}
	}
	if len(least) == 0 {
		return "", false, nil
	}

	s.randMu.Lock()
	pick := least[s.randGen.Intn(len(least))]
	s.randMu.Unlock()
	return pick, true, nil
}

// RecordUsage increments the global counters of a finished game's templates.
func (s *Supplier) RecordUsage(ctx context.Context, templates []string) error {
	if len(templates) == 0 {
		return nil
	}
	if err := s.store.IncrementUsage(ctx, templates); err != nil {
		return err
	}
	s.cache.Invalidate()
	s.logger.Info("Question usage recorded", zap.Int("count", len(templates)))
	return nil
}

// Refresh drops the cached corpus so the next lookup reads the store again.
func (s *Supplier) Refresh() {
	s.cache.Invalidate()
}

// Format substitutes the target player's name into template.
func Format(template, playerName string) string {
	return strings.ReplaceAll(template, NamePlaceholder, playerName)
}
