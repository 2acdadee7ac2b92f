package game

import "fmt"

const (
	symbolFirst  = 'X'
	symbolSecond = 'O'
	symbolEmpty  = '.'
)

func markSymbol(m Mark) byte {
	switch m {
	case First:
		return symbolFirst
	case Second:
		return symbolSecond
	}
	return symbolEmpty
}

// BoardFromMoves replays a sequence of columns, alternating marks and starting
// with First. Moves after the game has been decided are rejected.
func BoardFromMoves(columns []int) (*Board, error) {
	b := NewBoard()
	mark := First
	for i, col := range columns {
		if b.IsTerminal() {
			return nil, &InvalidMoveError{Column: col, Reason: fmt.Sprintf("move %d played after the game ended", i+1)}
		}
		if _, err := b.MakeMove(col, mark); err != nil {
			return nil, err
		}
		mark = mark.Opponent()
	}
	return b, nil
}

// ParseBoard builds a board from Rows strings of Columns characters, top row
// first. 'X' is First, 'O' is Second and '.' is empty. Any position that
// respects gravity is accepted, reachable or not.
func ParseBoard(rows []string) (*Board, error) {
	if len(rows) != Rows {
		return nil, fmt.Errorf("expected %d rows, got %d", Rows, len(rows))
	}
	b := NewBoard()
	for r, line := range rows {
		if len(line) != Columns {
			return nil, fmt.Errorf("row %d: expected %d cells, got %d", r, Columns, len(line))
		}
		for c := 0; c < Columns; c++ {
			switch line[c] {
			case symbolFirst:
				b.cells[r][c] = First
			case symbolSecond:
				b.cells[r][c] = Second
			case symbolEmpty:
				b.cells[r][c] = Empty
			default:
				return nil, fmt.Errorf("row %d col %d: unknown cell %q", r, c, line[c])
			}
		}
	}

	for c := 0; c < Columns; c++ {
		height := 0
		for r := Rows - 1; r >= 0 && b.cells[r][c] != Empty; r-- {
			height++
		}
		for r := Rows - 1 - height; r >= 0; r-- {
			if b.cells[r][c] != Empty {
				return nil, fmt.Errorf("column %d: disc at row %d floats above an empty cell", c, r)
			}
		}
		b.heights[c] = height
		b.moves += height
	}
	return b, nil
}
