package questions

import (
	"context"
	"fmt"
	"sync"

	"whosaidit/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the persistent question corpus with global usage counters.
type Store interface {
	Active(ctx context.Context) ([]models.Question, error)
	IncrementUsage(ctx context.Context, templates []string) error
	Seed(ctx context.Context, templates []string) (int, error)
}

// GormStore keeps questions in PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Active(ctx context.Context) ([]models.Question, error) {
	var qs []models.Question
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("usage_count ASC").
		Find(&qs).Error
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return qs, nil
}

// IncrementUsage bumps usage_count of every listed template in one statement.
func (s *GormStore) IncrementUsage(ctx context.Context, templates []string) error {
	if len(templates) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("template IN ?", templates).
		Update("usage_count", gorm.Expr("usage_count + ?", 1)).Error
	if err != nil {
		return fmt.Errorf("increment question usage: %w", err)
	}
	return nil
}

// Seed inserts the templates that do not exist yet and returns how many were added.
func (s *GormStore) Seed(ctx context.Context, templates []string) (int, error) {
	inserted := 0
	for _, t := range templates {
		q := models.Question{Template: t, Category: "general", IsActive: true}
		res := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "template"}}, DoNothing: true}).
			Create(&q)
		if res.Error != nil {
			return inserted, fmt.Errorf("seed question: %w", res.Error)
		}
		inserted += int(res.RowsAffected)
	}
	return inserted, nil
}

// StaticStore is an in-process corpus, used when PostgreSQL is not configured.
type StaticStore struct {
	mu    sync.Mutex
	usage map[string]int
	order []string
}

func NewStaticStore(templates []string) *StaticStore {
	s := &StaticStore{usage: make(map[string]int)}
	// StaticStore.Seed は失敗しない
	_, _ = s.Seed(context.Background(), templates)
	return s
}

func (s *StaticStore) Active(context.Context) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Question, 0, len(s.order))
	for _, t := range s.order {
		out = append(out, models.Question{Template: t, Category: "general", IsActive: true, UsageCount: s.usage[t]})
	}
	return out, nil
}

func (s *StaticStore) IncrementUsage(_ context.Context, templates []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range templates {
		if _, ok := s.usage[t]; ok {
			s.usage[t]++
		}
	}
	return nil
}

func (s *StaticStore) Seed(_ context.Context, templates []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, t := range templates {
		if _, ok := s.usage[t]; ok {
			continue
		}
		s.usage[t] = 0
		s.order = append(s.order, t)
		inserted++
	}
	return inserted, nil
}

// Usage returns the counter for template.
func (s *StaticStore) Usage(template string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage[template]
}
