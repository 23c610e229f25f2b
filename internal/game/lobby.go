package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"whosaidit/models"
	"whosaidit/repository"

	"go.uber.org/zap"
)

const (
	MinNameLength = 2
	MaxNameLength = 20
)

// ValidateName trims name and checks its length.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < MinNameLength || n > MaxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

func (e *Engine) generateCode() string {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return repository.GenerateCode(e.randGen)
}

// CreateRoom opens a new waiting room with hostName as its host and only player.
func (e *Engine) CreateRoom(ctx context.Context, hostName string) (*models.Room, string, error) {
	name, err := ValidateName(hostName)
	if err != nil {
		return nil, "", err
	}
	host := models.Player{ID: e.newID(), Name: name, IsConnected: true}
	room, err := repository.CreateWithUniqueCode(ctx, e.repo, e.generateCode, func(code string) *models.Room {
		return models.NewRoom(code, host, e.now())
	})
	if errors.Is(err, repository.ErrCodesExhausted) {
		e.logger.Error("Room code space exhausted", zap.Int("attempts", repository.MaxCodeAttempts))
		return nil, "", ErrCodeGenerationExhausted
	}
	if err != nil {
		return nil, "", fmt.Errorf("create room: %w", err)
	}
	e.logger.Info("Room created", zap.String("roomCode", room.RoomCode), zap.String("hostId", host.ID))
	return room, host.ID, nil
}

// JoinRoom adds a new player to a waiting room.
func (e *Engine) JoinRoom(ctx context.Context, code, playerName string) (*models.Room, string, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, "", err
	}
	name, err := ValidateName(playerName)
	if err != nil {
		return nil, "", err
	}
	player := models.Player{ID: e.newID(), Name: name, IsConnected: true}

	room, err := e.update(ctx, code,
		func(r *models.Room) bool {
			return r.GameState == models.StateWaiting && !r.HasConnectedName(name)
		},
		func(r *models.Room) error {
			r.Players = append(r.Players, player)
			return nil
		},
		func(r *models.Room) error {
			if r.GameState != models.StateWaiting {
				return ErrAlreadyStarted
			}
			return ErrNameAlreadyTaken
		})
	if err != nil {
		return nil, "", err
	}
	e.logger.Info("Player joined", zap.String("roomCode", code), zap.String("playerId", player.ID))
	return room, player.ID, nil
}

// RejoinRoom marks an existing player connected again. A missing player is
// reported as ErrRoomNotFound.
func (e *Engine) RejoinRoom(ctx context.Context, code, playerID string) (*models.Room, string, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, "", err
	}
	room, err := e.update(ctx, code,
		func(r *models.Room) bool { return r.Player(playerID) != nil },
		func(r *models.Room) error {
			r.Player(playerID).IsConnected = true
			return nil
		},
		func(*models.Room) error { return ErrRoomNotFound })
	if err != nil {
		return nil, "", err
	}
	return room, CurrentQuestion(room), nil
}

func (e *Engine) GetRoom(ctx context.Context, code string) (*models.Room, string, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, "", err
	}
	room, err := e.load(ctx, code)
	if err != nil {
		return nil, "", err
	}
	return room, CurrentQuestion(room), nil
}

// AttachConnection binds connID to the player. returning is true when the
// player comes back to a game in progress or was marked disconnected.
func (e *Engine) AttachConnection(ctx context.Context, code, playerID, connID string) (room *models.Room, returning bool, err error) {
	code, err = NormalizeCode(code)
	if err != nil {
		return nil, false, err
	}
	room, err = e.update(ctx, code,
		func(r *models.Room) bool { return r.Player(playerID) != nil },
		func(r *models.Room) error {
			p := r.Player(playerID)
			returning = !p.IsConnected || r.GameState != models.StateWaiting
			p.ConnectionID = connID
			p.IsConnected = true
			return nil
		},
		func(*models.Room) error { return ErrPlayerNotFound })
	if err != nil {
		return nil, false, err
	}
	return room, returning, nil
}

// DetachConnection marks the player disconnected, but only while connID is
// still the player's current connection. ok is false when nothing changed.
func (e *Engine) DetachConnection(ctx context.Context, code, playerID, connID string) (room *models.Room, ok bool, err error) {
	room, err = e.repo.ConditionalUpdate(ctx, code,
		func(r *models.Room) bool {
			p := r.Player(playerID)
			return p != nil && p.ConnectionID == connID
		},
		func(r *models.Room) error {
			p := r.Player(playerID)
			p.IsConnected = false
			p.ConnectionID = ""
			return nil
		})
	if errors.Is(err, repository.ErrPreconditionFailed) || errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("detach %s from %s: %w", playerID, code, err)
	}
	return room, true, nil
}

// Leave handles an explicit leave. In the lobby the player is removed, the
// host moves to the first remaining player and an empty room is deleted.
// During a game the player is only marked disconnected. Missing rooms and
// players are ignored; room is nil when nothing is left to report.
func (e *Engine) Leave(ctx context.Context, code, playerID string) (*models.Room, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	room, err := e.repo.ConditionalUpdate(ctx, code,
		func(r *models.Room) bool { return r.Player(playerID) != nil },
		func(r *models.Room) error {
			if r.GameState != models.StateWaiting {
				p := r.Player(playerID)
				p.IsConnected = false
				p.ConnectionID = ""
				return nil
			}
			kept := r.Players[:0]
			for _, p := range r.Players {
				if p.ID != playerID {
					kept = append(kept, p)
				}
			}
			r.Players = kept
			if r.HostID == playerID && len(r.Players) > 0 {
				r.HostID = r.Players[0].ID
			}
			return nil
		})
	if errors.Is(err, repository.ErrPreconditionFailed) || errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("leave %s: %w", code, err)
	}

	if room.GameState == models.StateWaiting && len(room.Players) == 0 {
		if err := e.repo.Delete(ctx, code); err != nil {
			return nil, fmt.Errorf("delete empty room %s: %w", code, err)
		}
		e.logger.Info("Room deleted", zap.String("roomCode", code))
		return nil, nil
	}
	e.logger.Info("Player left", zap.String("roomCode", code), zap.String("playerId", playerID))
	return room, nil
}
