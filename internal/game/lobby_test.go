package game_test

import (
	"context"
	"testing"

	"whosaidit/internal/game"
	"whosaidit/models"
	"whosaidit/questions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, questions.DefaultTemplates)

	room, playerID, err := f.engine.CreateRoom(ctx, "  Alice  ")
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, room.RoomCode)
	assert.Equal(t, playerID, room.HostID)
	require.Len(t, room.Players, 1)
	assert.Equal(t, "Alice", room.Players[0].Name)
	assert.True(t, room.Players[0].IsConnected)
	assert.Equal(t, models.StateWaiting, room.GameState)

	for _, name := range []string{"", "A", "ABCDEFGHIJKLMNOPQRSTU"} {
		_, _, err = f.engine.CreateRoom(ctx, name)
		assert.ErrorIs(t, err, game.ErrInvalidName, name)
	}
}

func TestJoinRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, questions.DefaultTemplates)
	ids := f.seedRoom(t, "ABC123", 1)

	room, id, err := f.engine.JoinRoom(ctx, "abc123", "Bob")
	require.NoError(t, err)
	assert.Len(t, room.Players, 2)
	assert.Equal(t, "Bob", room.Player(id).Name)

	_, _, err = f.engine.JoinRoom(ctx, "ABC123", "bob")
	assert.ErrorIs(t, err, game.ErrNameAlreadyTaken)

	_, _, err = f.engine.JoinRoom(ctx, "ZZZ999", "Carol")
	assert.ErrorIs(t, err, game.ErrRoomNotFound)

	_, _, err = f.engine.JoinRoom(ctx, "ABC12", "Carol")
	assert.ErrorIs(t, err, game.ErrInvalidRoomCode)

	// leaving the lobby frees the name
	_, err = f.engine.Leave(ctx, "ABC123", id)
	require.NoError(t, err)
	_, _, err = f.engine.JoinRoom(ctx, "ABC123", "Bob")
	require.NoError(t, err)

	_, _, err = f.engine.JoinRoom(ctx, "ABC123", "Carol")
	require.NoError(t, err)
	_, _, err = f.engine.StartGame(ctx, "ABC123", ids[0])
	require.NoError(t, err)
	_, _, err = f.engine.JoinRoom(ctx, "ABC123", "Dave")
	assert.ErrorIs(t, err, game.ErrAlreadyStarted)
}

func TestRejoinAndGetRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, questions.DefaultTemplates)
	ids := f.seedRoom(t, "ABC123", 3)
	room, question, err := f.engine.StartGame(ctx, "ABC123", ids[0])
	require.NoError(t, err)

	_, ok, err := f.engine.DetachConnection(ctx, "ABC123", ids[1], "")
	require.NoError(t, err)
	require.True(t, ok)

	rejoined, q, err := f.engine.RejoinRoom(ctx, "abc123", ids[1])
	require.NoError(t, err)
	assert.True(t, rejoined.Player(ids[1]).IsConnected)
	assert.Equal(t, question, q)

	_, _, err = f.engine.RejoinRoom(ctx, "ABC123", "ghost")
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
	_, _, err = f.engine.RejoinRoom(ctx, "ZZZ999", ids[1])
	assert.ErrorIs(t, err, game.ErrRoomNotFound)

	got, q, err := f.engine.GetRoom(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, room.RoomCode, got.RoomCode)
	assert.Equal(t, question, q)

	_, _, err = f.engine.GetRoom(ctx, "ZZZ999")
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
}

func TestConnections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, questions.DefaultTemplates)
	ids := f.seedRoom(t, "ABC123", 2)

	room, returning, err := f.engine.AttachConnection(ctx, "ABC123", ids[1], "conn-1")
	require.NoError(t, err)
	assert.False(t, returning)
	assert.Equal(t, "conn-1", room.Player(ids[1]).ConnectionID)

	_, _, err = f.engine.AttachConnection(ctx, "ABC123", "ghost", "conn-x")
	assert.ErrorIs(t, err, game.ErrPlayerNotFound)

	// a newer socket replaces the old one; the old close must not disconnect
	_, _, err = f.engine.AttachConnection(ctx, "ABC123", ids[1], "conn-2")
	require.NoError(t, err)
	_, ok, err := f.engine.DetachConnection(ctx, "ABC123", ids[1], "conn-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, f.room(t, "ABC123").Player(ids[1]).IsConnected)

	room, ok, err = f.engine.DetachConnection(ctx, "ABC123", ids[1], "conn-2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, room.Player(ids[1]).IsConnected)
	assert.Empty(t, room.Player(ids[1]).ConnectionID)

	_, returning, err = f.engine.AttachConnection(ctx, "ABC123", ids[1], "conn-3")
	require.NoError(t, err)
	assert.True(t, returning)
}

func TestLeave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, questions.DefaultTemplates)
	ids := f.seedRoom(t, "ABC123", 2)

	room, err := f.engine.Leave(ctx, "ABC123", "ghost")
	require.NoError(t, err)
	assert.Nil(t, room)

	room, err = f.engine.Leave(ctx, "ABC123", ids[0])
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Len(t, room.Players, 1)
	assert.Equal(t, ids[1], room.HostID)

	room, err = f.engine.Leave(ctx, "ABC123", ids[1])
	require.NoError(t, err)
	assert.Nil(t, room)
	_, _, err = f.engine.GetRoom(ctx, "ABC123")
	assert.ErrorIs(t, err, game.ErrRoomNotFound)

	room, err = f.engine.Leave(ctx, "ABC123", ids[1])
	require.NoError(t, err)
	assert.Nil(t, room)
}

func TestLeave_DuringGameKeepsPlayer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, questions.DefaultTemplates)
	ids := f.seedRoom(t, "ABC123", 3)
	_, _, err := f.engine.StartGame(ctx, "ABC123", ids[0])
	require.NoError(t, err)
	_, err = f.engine.SubmitAnswer(ctx, "ABC123", ids[0], "mine")
	require.NoError(t, err)

	room, err := f.engine.Leave(ctx, "ABC123", ids[0])
	require.NoError(t, err)
	require.Len(t, room.Players, 3)
	p := room.Player(ids[0])
	assert.False(t, p.IsConnected)
	assert.True(t, p.HasAnswered)
	assert.Equal(t, ids[0], room.HostID)
}
