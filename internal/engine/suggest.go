package engine

import (
	"errors"
	"math/rand"
)

const (
	EasyDifficulty   = "easy"
	MediumDifficulty = "medium"
	HardDifficulty   = "hard"
)

var ErrNoAvailableMoves = errors.New("no available moves")

// cell preference for the hard difficulty: center, corners, edges.
var priorityCells = []int{4, 0, 2, 6, 8, 1, 3, 5, 7}

// SuggestMove - picks a cell for the given symbol. Kept as a standalone
// utility; the session state machine never calls it.
func SuggestMove(board [9]string, symbol, difficulty string) (int, error) {
	available := EmptyPositions(board)
	if len(available) == 0 {
		return 0, ErrNoAvailableMoves
	}

	switch difficulty {
	case MediumDifficulty:
		if cell, ok := winningCell(board, symbol); ok {
			return cell, nil
		}
		if cell, ok := winningCell(board, NextPlayer(symbol)); ok {
			return cell, nil
		}
	case HardDifficulty:
		for _, cell := range priorityCells {
			if board[cell] == EmptyCell {
				return cell, nil
			}
		}
	}

	return available[rand.Intn(len(available))], nil //nolint: gosec // it's ok
}

// winningCell - finds a cell that completes a line for the symbol, if any.
func winningCell(board [9]string, symbol string) (int, bool) {
	for _, cell := range EmptyPositions(board) {
		probe, err := ApplyMove(board, cell, symbol)
		if err != nil {
			continue
		}

		if Evaluate(probe).Winner == symbol {
			return cell, true
		}
	}

	return 0, false
}
