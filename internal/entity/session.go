package entity

import (
	"math/rand"
	"time"

	"github.com/rocketscienceinc/ticsync-backend/internal/engine"
)

const (
	PlayerX = engine.PlayerX
	PlayerO = engine.PlayerO

	EmptyCell = engine.EmptyCell
)

const (
	OnlineMode = "online"
	CustomMode = "custom"
)

// Presence is a seat's self-reported liveness.
type Presence struct {
	IsOnline bool  `json:"isOnline"`
	LastSeen int64 `json:"lastSeen"`
}

// Session is the authoritative shared record of one game. Any seated client
// may overwrite it in full; consistency is last-write-wins at the document
// granularity.
type Session struct {
	Key           string            `json:"id"`
	Board         [9]string         `json:"board"`
	CurrentPlayer string            `json:"currentPlayer"`
	Players       map[string]string `json:"players"`

	Winner     string `json:"winner,omitempty"`
	WinLine    []int  `json:"winningLine,omitempty"`
	IsDraw     bool   `json:"isDraw"`
	IsGameOver bool   `json:"isGameOver"`

	Mode     string `json:"mode"`
	IsPublic bool   `json:"isPublic"`

	PlayerPresence    map[string]Presence `json:"playerPresence"`
	PlayAgainRequests map[string]bool     `json:"playAgainRequests"`

	IsTerminated      bool   `json:"isTerminated"`
	TerminationReason string `json:"terminationReason,omitempty"`
	Quitter           string `json:"quitter,omitempty"`

	CreatedAt int64 `json:"createdAt"`
	LastMove  int64 `json:"lastMove"`
}

// NewSession - allocates a fresh record with the creator seated at a random
// symbol and X holding the first turn.
func NewSession(key, creatorName, mode string) *Session {
	now := time.Now().UnixMilli()

	creatorSeat, _ := RandomSeats()

	session := &Session{
		Key:           key,
		CurrentPlayer: PlayerX,
		Players: map[string]string{
			PlayerX: "",
			PlayerO: "",
		},
		Mode:     mode,
		IsPublic: mode == OnlineMode,
		PlayerPresence: map[string]Presence{
			creatorSeat: {IsOnline: true, LastSeen: now},
		},
		PlayAgainRequests: map[string]bool{
			PlayerX: false,
			PlayerO: false,
		},
		CreatedAt: now,
		LastMove:  now,
	}
	session.Players[creatorSeat] = creatorName

	return session
}

// RandomSeats - random seat assignment; intentionally weak randomness,
// this is not a security property.
func RandomSeats() (string, string) {
	if rand.Intn(2) == 0 { //nolint: gosec // it's ok
		return PlayerX, PlayerO
	}
	return PlayerO, PlayerX
}

// OpenSeat - returns the first unfilled seat, X before O.
func (that *Session) OpenSeat() (string, bool) {
	if that.Players[PlayerX] == "" {
		return PlayerX, true
	}
	if that.Players[PlayerO] == "" {
		return PlayerO, true
	}
	return "", false
}

// SeatOf - returns the seat occupied by the given name.
func (that *Session) SeatOf(name string) (string, bool) {
	if name == "" {
		return "", false
	}

	for _, seat := range []string{PlayerX, PlayerO} {
		if that.Players[seat] == name {
			return seat, true
		}
	}

	return "", false
}

func (that *Session) IsFull() bool {
	_, open := that.OpenSeat()
	return !open
}

func (that *Session) IsAwaitingOpponent() bool {
	return !that.IsFull() && !that.IsTerminated
}

// Touch - stamps LastMove, keeping it strictly non-decreasing.
func (that *Session) Touch(now int64) {
	if now > that.LastMove {
		that.LastMove = now
	}
}

// SetPresence - records a seat's liveness report.
func (that *Session) SetPresence(seat string, online bool, now int64) {
	if that.PlayerPresence == nil {
		that.PlayerPresence = make(map[string]Presence)
	}

	that.PlayerPresence[seat] = Presence{IsOnline: online, LastSeen: now}
}

// Reset - clears the round state for a rematch: fresh board, randomized
// first turn, both votes cleared, termination lifted.
func (that *Session) Reset(now int64) {
	that.Board = [9]string{}
	that.CurrentPlayer, _ = RandomSeats()
	that.Winner = ""
	that.WinLine = nil
	that.IsDraw = false
	that.IsGameOver = false
	that.PlayAgainRequests = map[string]bool{
		PlayerX: false,
		PlayerO: false,
	}
	that.IsTerminated = false
	that.TerminationReason = ""
	that.Quitter = ""
	that.SetPresence(that.CurrentPlayer, true, now)
	that.Touch(now)
}

// Terminate - moves the session into its absorbing terminal state.
func (that *Session) Terminate(quitter, reason string, now int64) {
	that.IsTerminated = true
	that.TerminationReason = reason
	that.Quitter = quitter
	that.Touch(now)
}

// IsOpenPublic - reports whether the session should appear in the public
// room listing: discoverable, still playable, and with a free seat.
func (that *Session) IsOpenPublic() bool {
	return that.Mode == OnlineMode && that.IsPublic && !that.IsGameOver && !that.IsTerminated && !that.IsFull()
}
