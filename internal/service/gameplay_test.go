package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/ticsync-backend/internal/apperror"
	"github.com/rocketscienceinc/ticsync-backend/internal/entity"
)

// fakeSessionRepo stores JSON copies, mimicking the document-store semantics
// of the real repository: every read is a snapshot, every write a full
// overwrite.
type fakeSessionRepo struct {
	sessions map[string][]byte
	failWith error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string][]byte)}
}

func (that *fakeSessionRepo) CreateOrUpdate(_ context.Context, session *entity.Session) error {
	if that.failWith != nil {
		return that.failWith
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}

	that.sessions[session.Key] = raw

	return nil
}

func (that *fakeSessionRepo) GetByKey(_ context.Context, key string) (*entity.Session, error) {
	if that.failWith != nil {
		return nil, that.failWith
	}

	raw, ok := that.sessions[key]
	if !ok {
		return nil, apperror.ErrSessionNotFound
	}

	var session entity.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}

	return &session, nil
}

func (that *fakeSessionRepo) DeleteByKey(_ context.Context, key string) error {
	if that.failWith != nil {
		return that.failWith
	}

	delete(that.sessions, key)

	return nil
}

func (that *fakeSessionRepo) mustGet(t *testing.T, key string) *entity.Session {
	t.Helper()

	session, err := that.GetByKey(context.Background(), key)
	require.NoError(t, err)

	return session
}

var errStorageDown = errors.New("storage is down")

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func seatSession(t *testing.T, repo *fakeSessionRepo, gameplay GameplayService, creator, joiner string) (*entity.Session, string, string) {
	t.Helper()

	ctx := context.Background()

	session, creatorSeat, err := gameplay.Create(ctx, creator, entity.CustomMode)
	require.NoError(t, err)

	session, joinerSeat, err := gameplay.Join(ctx, session.Key, joiner, entity.CustomMode)
	require.NoError(t, err)

	return session, creatorSeat, joinerSeat
}

func TestGameplayService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Returns error when the store write fails", func(t *testing.T) {
		// Given: a store that rejects writes
		repo := newFakeSessionRepo()
		repo.failWith = errStorageDown
		gameplay := NewGameplayService(testLogger(), repo)

		// When: creating a session
		session, _, err := gameplay.Create(ctx, "alice", entity.OnlineMode)

		// Then: the error is surfaced and no session is returned
		require.ErrorIs(t, err, errStorageDown)
		assert.Nil(t, session)
	})

	t.Run("Creates a session with the creator seated at random", func(t *testing.T) {
		// Given: an empty store
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		// When: creating an online session
		session, seat, err := gameplay.Create(ctx, "alice", entity.OnlineMode)

		// Then: the record is persisted with the creator holding the returned seat
		require.NoError(t, err)
		assert.Contains(t, []string{entity.PlayerX, entity.PlayerO}, seat)

		stored := repo.mustGet(t, session.Key)
		assert.Equal(t, "alice", stored.Players[seat])
		assert.False(t, stored.IsGameOver)
		assert.False(t, stored.IsTerminated)
		assert.True(t, stored.IsPublic)
	})
}

func TestGameplayService_Join(t *testing.T) {
	ctx := context.Background()

	t.Run("Fails with NotFound for an unknown key", func(t *testing.T) {
		// Given: an empty store
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		// When: joining a session that does not exist
		_, _, err := gameplay.Join(ctx, "NOSUCH", "bob", "")

		// Then: NotFound is reported
		require.ErrorIs(t, err, apperror.ErrSessionNotFound)
	})

	t.Run("Fails with Terminated and does not mutate the record", func(t *testing.T) {
		// Given: a terminated session
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		session, _, err := gameplay.Create(ctx, "alice", entity.CustomMode)
		require.NoError(t, err)

		_, err = gameplay.Leave(ctx, session.Key, entity.PlayerX)
		require.NoError(t, err)
		before := repo.mustGet(t, session.Key)

		// When: a new player tries to join
		_, _, err = gameplay.Join(ctx, session.Key, "bob", "")

		// Then: Terminated is reported and the record is untouched
		require.ErrorIs(t, err, apperror.ErrSessionTerminated)
		assert.Equal(t, before, repo.mustGet(t, session.Key))
	})

	t.Run("Fails with ModeMismatch when the joiner's mode disagrees", func(t *testing.T) {
		// Given: a custom session
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		session, _, err := gameplay.Create(ctx, "alice", entity.CustomMode)
		require.NoError(t, err)

		// When: joining with mode online
		_, _, err = gameplay.Join(ctx, session.Key, "bob", entity.OnlineMode)

		// Then: ModeMismatch is reported
		require.ErrorIs(t, err, apperror.ErrModeMismatch)
	})

	t.Run("Fills the open seat and marks the joiner online", func(t *testing.T) {
		// Given: a session awaiting an opponent
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		created, creatorSeat, err := gameplay.Create(ctx, "alice", entity.CustomMode)
		require.NoError(t, err)

		// When: bob joins
		session, seat, err := gameplay.Join(ctx, created.Key, "bob", entity.CustomMode)

		// Then: bob holds the other seat with presence online
		require.NoError(t, err)
		assert.NotEqual(t, creatorSeat, seat)
		assert.Equal(t, "bob", session.Players[seat])
		assert.True(t, session.PlayerPresence[seat].IsOnline)
		assert.True(t, session.IsFull())
	})

	t.Run("Returns the matching seat on reconnect without mutation", func(t *testing.T) {
		// Given: a full session
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		created, _, joinerSeat := seatSession(t, repo, gameplay, "alice", "bob")
		before := repo.mustGet(t, created.Key)

		// When: bob joins again
		_, seat, err := gameplay.Join(ctx, created.Key, "bob", "")

		// Then: bob gets his original seat back, nothing is written
		require.NoError(t, err)
		assert.Equal(t, joinerSeat, seat)
		assert.Equal(t, before, repo.mustGet(t, created.Key))
	})

	t.Run("Fails with Full for a third player", func(t *testing.T) {
		// Given: a full session
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		created, _, _ := seatSession(t, repo, gameplay, "alice", "bob")

		// When: carol tries to join
		_, _, err := gameplay.Join(ctx, created.Key, "carol", "")

		// Then: Full is reported
		require.ErrorIs(t, err, apperror.ErrSessionFull)
	})
}

func TestGameplayService_Move(t *testing.T) {
	ctx := context.Background()

	t.Run("Applies a valid move and alternates the turn", func(t *testing.T) {
		// Given: a full session with X to move
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		created, _, _ := seatSession(t, repo, gameplay, "alice", "bob")
		before := repo.mustGet(t, created.Key)

		// When: X plays the center
		session, err := gameplay.Move(ctx, created.Key, 4, entity.PlayerX)

		// Then: the board holds the move, O is to act and LastMove advanced
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, session.Board[4])
		assert.Equal(t, entity.PlayerO, session.CurrentPlayer)
		assert.False(t, session.IsGameOver)
		assert.False(t, session.IsDraw)
		assert.GreaterOrEqual(t, session.LastMove, before.LastMove)
	})

	t.Run("Rejects a move out of turn without state change", func(t *testing.T) {
		// Given: a full session with X to move
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		created, _, _ := seatSession(t, repo, gameplay, "alice", "bob")
		before := repo.mustGet(t, created.Key)

		// When: O moves first
		_, err := gameplay.Move(ctx, created.Key, 0, entity.PlayerO)

		// Then: the move is rejected and the record is unchanged
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.Equal(t, before, repo.mustGet(t, created.Key))
	})

	t.Run("Rejects an occupied cell", func(t *testing.T) {
		// Given: a session where X already took the center
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		created, _, _ := seatSession(t, repo, gameplay, "alice", "bob")

		_, err := gameplay.Move(ctx, created.Key, 4, entity.PlayerX)
		require.NoError(t, err)

		// When: O plays the same cell
		_, err = gameplay.Move(ctx, created.Key, 4, entity.PlayerO)

		// Then: the move is rejected
		require.ErrorIs(t, err, apperror.ErrCellOccupied)
	})

	t.Run("Rejects an out-of-range position", func(t *testing.T) {
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		created, _, _ := seatSession(t, repo, gameplay, "alice", "bob")

		_, err := gameplay.Move(ctx, created.Key, 9, entity.PlayerX)
		require.ErrorIs(t, err, apperror.ErrInvalidCell)
	})

	t.Run("Detects the win and freezes the game", func(t *testing.T) {
		// Given: X about to complete the top row
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		created, _, _ := seatSession(t, repo, gameplay, "alice", "bob")

		for _, move := range []struct {
			symbol   string
			position int
		}{
			{entity.PlayerX, 0},
			{entity.PlayerO, 3},
			{entity.PlayerX, 1},
			{entity.PlayerO, 4},
		} {
			_, err := gameplay.Move(ctx, created.Key, move.position, move.symbol)
			require.NoError(t, err)
		}

		// When: X completes the line
		session, err := gameplay.Move(ctx, created.Key, 2, entity.PlayerX)

		// Then: X wins along the top row and the game is over
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, session.Winner)
		assert.Equal(t, []int{0, 1, 2}, session.WinLine)
		assert.True(t, session.IsGameOver)
		assert.False(t, session.IsDraw)

		// When: anyone moves after the game ended
		_, err = gameplay.Move(ctx, created.Key, 8, entity.PlayerO)

		// Then: the move is rejected
		require.ErrorIs(t, err, apperror.ErrGameOver)
	})

	t.Run("Detects the draw on a full board", func(t *testing.T) {
		// Given: a sequence filling the board with no line
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		created, _, _ := seatSession(t, repo, gameplay, "alice", "bob")

		moves := []struct {
			symbol   string
			position int
		}{
			{entity.PlayerX, 0},
			{entity.PlayerO, 1},
			{entity.PlayerX, 2},
			{entity.PlayerO, 4},
			{entity.PlayerX, 3},
			{entity.PlayerO, 5},
			{entity.PlayerX, 7},
			{entity.PlayerO, 6},
		}

		for _, move := range moves {
			_, err := gameplay.Move(ctx, created.Key, move.position, move.symbol)
			require.NoError(t, err)
		}

		// When: X fills the last cell
		session, err := gameplay.Move(ctx, created.Key, 8, entity.PlayerX)

		// Then: the game is a draw with no winner
		require.NoError(t, err)
		assert.True(t, session.IsDraw)
		assert.True(t, session.IsGameOver)
		assert.Empty(t, session.Winner)
	})

	t.Run("Rejects a move in a terminated session", func(t *testing.T) {
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		created, _, _ := seatSession(t, repo, gameplay, "alice", "bob")

		_, err := gameplay.Leave(ctx, created.Key, entity.PlayerO)
		require.NoError(t, err)

		_, err = gameplay.Move(ctx, created.Key, 0, entity.PlayerX)
		require.ErrorIs(t, err, apperror.ErrSessionTerminated)
	})
}

func TestGameplayService_PlayAgain(t *testing.T) {
	ctx := context.Background()

	t.Run("A single vote is persisted without reset", func(t *testing.T) {
		// Given: a full session
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		created, _, _ := seatSession(t, repo, gameplay, "alice", "bob")

		// When: only X votes
		session, err := gameplay.RequestPlayAgain(ctx, created.Key, entity.PlayerX)

		// Then: the vote is stored, nothing else changes
		require.NoError(t, err)
		assert.True(t, session.PlayAgainRequests[entity.PlayerX])
		assert.False(t, session.PlayAgainRequests[entity.PlayerO])
	})

	t.Run("The second vote triggers the reset", func(t *testing.T) {
		// Given: a finished session with X having voted
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		created, _, _ := seatSession(t, repo, gameplay, "alice", "bob")

		_, err := gameplay.Move(ctx, created.Key, 4, entity.PlayerX)
		require.NoError(t, err)

		_, err = gameplay.RequestPlayAgain(ctx, created.Key, entity.PlayerX)
		require.NoError(t, err)

		// When: O casts the second vote
		session, err := gameplay.RequestPlayAgain(ctx, created.Key, entity.PlayerO)

		// Then: the round is reset with a fresh board and cleared votes
		require.NoError(t, err)
		assert.Equal(t, [9]string{}, session.Board)
		assert.False(t, session.PlayAgainRequests[entity.PlayerX])
		assert.False(t, session.PlayAgainRequests[entity.PlayerO])
		assert.False(t, session.IsGameOver)
		assert.False(t, session.IsTerminated)
		assert.Contains(t, []string{entity.PlayerX, entity.PlayerO}, session.CurrentPlayer)
	})

	t.Run("Cancel clears the caller's own vote", func(t *testing.T) {
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		created, _, _ := seatSession(t, repo, gameplay, "alice", "bob")

		_, err := gameplay.RequestPlayAgain(ctx, created.Key, entity.PlayerX)
		require.NoError(t, err)

		// When: X cancels
		session, err := gameplay.CancelPlayAgain(ctx, created.Key, entity.PlayerX)

		// Then: X's vote is gone
		require.NoError(t, err)
		assert.False(t, session.PlayAgainRequests[entity.PlayerX])
	})

	t.Run("Decline clears the opponent's vote", func(t *testing.T) {
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		created, _, _ := seatSession(t, repo, gameplay, "alice", "bob")

		_, err := gameplay.RequestPlayAgain(ctx, created.Key, entity.PlayerX)
		require.NoError(t, err)

		// When: O declines X's request
		session, err := gameplay.DeclinePlayAgain(ctx, created.Key, entity.PlayerO)

		// Then: X's vote is cleared, O never voted
		require.NoError(t, err)
		assert.False(t, session.PlayAgainRequests[entity.PlayerX])
		assert.False(t, session.PlayAgainRequests[entity.PlayerO])
	})
}

func TestGameplayService_Leave(t *testing.T) {
	ctx := context.Background()

	t.Run("Vacates the seat and terminates the session", func(t *testing.T) {
		// Given: a full session
		repo := newFakeSessionRepo()
		gameplay := NewGameplayService(testLogger(), repo)

		created, _, _ := seatSession(t, repo, gameplay, "alice", "bob")
		seat, ok := repo.mustGet(t, created.Key).SeatOf("bob")
		require.True(t, ok)

		// When: bob leaves
		session, err := gameplay.Leave(ctx, created.Key, seat)

		// Then: the session is terminal, naming bob
		require.NoError(t, err)
		assert.True(t, session.IsTerminated)
		assert.Equal(t, seat, session.Quitter)
		assert.Contains(t, session.TerminationReason, "bob")
		assert.Empty(t, session.Players[seat])
		assert.False(t, session.PlayerPresence[seat].IsOnline)
	})
}

func TestGameplayService_Delete(t *testing.T) {
	ctx := context.Background()

	// Given: an abandoned session
	repo := newFakeSessionRepo()
	gameplay := NewGameplayService(testLogger(), repo)

	created, _, err := gameplay.Create(ctx, "alice", entity.CustomMode)
	require.NoError(t, err)

	// When: deleting it
	err = gameplay.Delete(ctx, created.Key)

	// Then: the record is gone
	require.NoError(t, err)
	_, err = repo.GetByKey(ctx, created.Key)
	require.ErrorIs(t, err, apperror.ErrSessionNotFound)
}
