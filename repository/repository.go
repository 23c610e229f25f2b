package repository

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"whosaidit/models"
)

const (
	// RoomTTL はルーム作成からの有効期限
	RoomTTL = 24 * time.Hour

	CodeLength      = 6
	MaxCodeAttempts = 10
	codeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var (
	ErrNotFound           = errors.New("room not found")
	ErrCodeTaken          = errors.New("room code already in use")
	ErrPreconditionFailed = errors.New("room precondition failed")
	ErrCodesExhausted     = errors.New("no unique room code available")
)

// Predicate is evaluated against the current stored state inside the atomic update.
type Predicate func(room *models.Room) bool

// Mutation edits the room in place. Returning an error aborts the update.
type Mutation func(room *models.Room) error

// RoomRepository stores Room documents keyed by room code.
//
// ConditionalUpdate must be atomic with respect to concurrent callers: when two
// callers race on the same predicate, at most one of them observes it as true.
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	FindByCode(ctx context.Context, code string) (*models.Room, error)
	ConditionalUpdate(ctx context.Context, code string, pred Predicate, mutate Mutation) (*models.Room, error)
	Delete(ctx context.Context, code string) error
	PurgeExpired(ctx context.Context) (int, error)
}

// Always is a predicate for unconditional updates.
func Always(*models.Room) bool { return true }

// GenerateCode returns a random room code.
func GenerateCode(randGen *rand.Rand) string {
	b := make([]byte, CodeLength)
	for i := range b {
		b[i] = codeAlphabet[randGen.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// CreateWithUniqueCode builds a room with newRoom for a fresh code and inserts it,
// trying up to MaxCodeAttempts codes.
func CreateWithUniqueCode(ctx context.Context, repo RoomRepository, nextCode func() string, newRoom func(code string) *models.Room) (*models.Room, error) {
	for attempt := 0; attempt < MaxCodeAttempts; attempt++ {
		room := newRoom(nextCode())
		err := repo.Create(ctx, room)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			return nil, err
		}
	}
	return nil, ErrCodesExhausted
}
