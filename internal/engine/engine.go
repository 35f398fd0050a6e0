package engine

import (
	"fmt"

	"github.com/rocketscienceinc/ticsync-backend/internal/apperror"
)

const (
	PlayerX = "X"
	PlayerO = "O"

	EmptyCell = ""

	boardSize = 9
)

// WinLines - the 8 canonical lines, checked in fixed order: rows, columns, diagonals.
var WinLines = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Result holds the outcome of evaluating a board.
type Result struct {
	Winner      string
	WinningLine []int
	IsDraw      bool
}

// IsValidMove - reports whether a move is legal: position in range, cell empty,
// and the requesting symbol actually holds the turn.
func IsValidMove(board [9]string, position int, currentPlayer, symbol string) bool {
	if position < 0 || position >= boardSize {
		return false
	}

	if board[position] != EmptyCell {
		return false
	}

	return currentPlayer == symbol
}

// ApplyMove - returns a new board with the symbol placed at position.
// Callers must validate with IsValidMove first; an occupied cell here is a
// contract violation, not a user error.
func ApplyMove(board [9]string, position int, symbol string) ([9]string, error) {
	if position < 0 || position >= boardSize {
		return board, fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, position)
	}

	if board[position] != EmptyCell {
		return board, fmt.Errorf("%w: cell %d", apperror.ErrCellOccupied, position)
	}

	board[position] = symbol

	return board, nil
}

// Evaluate - scans the canonical lines for three equal non-empty cells.
// If no line matches, the game is a draw iff every cell is occupied.
func Evaluate(board [9]string) Result {
	for _, line := range WinLines {
		a, b, c := board[line[0]], board[line[1]], board[line[2]]
		if a != EmptyCell && a == b && b == c {
			return Result{
				Winner:      a,
				WinningLine: []int{line[0], line[1], line[2]},
			}
		}
	}

	for _, cell := range board {
		if cell == EmptyCell {
			return Result{}
		}
	}

	return Result{IsDraw: true}
}

// NextPlayer - strict alternation, X and O.
func NextPlayer(symbol string) string {
	if symbol == PlayerX {
		return PlayerO
	}
	return PlayerX
}

// EmptyPositions - returns the indexes of all empty cells.
func EmptyPositions(board [9]string) []int {
	positions := make([]int, 0, boardSize)
	for i, cell := range board {
		if cell == EmptyCell {
			positions = append(positions, i)
		}
	}

	return positions
}

// ValidateState - checks the X-leads-by-0-or-1 invariant against the turn holder.
func ValidateState(board [9]string, currentPlayer string) bool {
	var xCount, oCount int
	for _, cell := range board {
		switch cell {
		case PlayerX:
			xCount++
		case PlayerO:
			oCount++
		}
	}

	if currentPlayer == PlayerX {
		return xCount == oCount
	}

	return xCount == oCount+1
}
