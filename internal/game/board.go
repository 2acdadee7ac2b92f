package game

import "strings"

const (
	Rows          = 6
	Columns       = 7
	ConnectLength = 4
	CenterColumn  = Columns / 2
)

type point struct {
	row, col int
}

// lines holds the coordinates of every maximal row, column and diagonal that
// is long enough to contain a connect. Row 0 is the top of the board.
var lines = buildLines()

func buildLines() [][]point {
	directions := [][2]int{
		{0, 1},  // horizontal
		{1, 0},  // vertical
		{1, 1},  // diagonal down-right
		{1, -1}, // diagonal down-left
	}

	var out [][]point
	for _, d := range directions {
		for row := 0; row < Rows; row++ {
			for col := 0; col < Columns; col++ {
				// A maximal line starts where stepping back leaves the board.
				if inBounds(row-d[0], col-d[1]) {
					continue
				}
				var line []point
				for r, c := row, col; inBounds(r, c); r, c = r+d[0], c+d[1] {
					line = append(line, point{r, c})
				}
				if len(line) >= ConnectLength {
					out = append(out, line)
				}
			}
		}
	}
	return out
}

func inBounds(row, col int) bool {
	return row >= 0 && row < Rows && col >= 0 && col < Columns
}

// Board represents the game board.
//
// heights[c] is the number of discs in column c; the occupied cells of that
// column are exactly rows [Rows-heights[c], Rows). Board is not safe for
// concurrent use: one search or one game owns it at a time.
type Board struct {
	cells   [Rows][Columns]Mark
	heights [Columns]int
	moves   int

	// only maintained in c4debug builds
	history [Rows * Columns]int8
	histLen int
}

// NewBoard creates a new empty board
func NewBoard() *Board {
	return &Board{}
}

// Clone creates a deep copy of the board
func (b *Board) Clone() *Board {
	nb := *b
	return &nb
}

// Cell returns the mark at a specific position
func (b *Board) Cell(row, col int) Mark {
	return b.cells[row][col]
}

// Height returns the number of discs in a column
func (b *Board) Height(col int) int {
	return b.heights[col]
}

// MoveCount returns the number of discs on the board
func (b *Board) MoveCount() int {
	return b.moves
}

// SideToMove returns the mark that plays next assuming First opened the game.
func (b *Board) SideToMove() Mark {
	if b.moves%2 == 0 {
		return First
	}
	return Second
}

// IsColumnValid checks if a column can accept a disc
func (b *Board) IsColumnValid(column int) bool {
	return column >= 0 && column < Columns && b.heights[column] < Rows
}

// ValidMoves returns every column that can accept a disc, in ascending order.
func (b *Board) ValidMoves() []int {
	valid := make([]int, 0, Columns)
	for col := 0; col < Columns; col++ {
		if b.heights[col] < Rows {
			valid = append(valid, col)
		}
	}
	return valid
}

// MakeMove drops a disc of the given mark into column and returns the row
// where it landed.
func (b *Board) MakeMove(column int, mark Mark) (int, error) {
	if column < 0 || column >= Columns {
		return -1, &InvalidMoveError{Column: column, Reason: "column out of range"}
	}
	if !mark.IsPlayer() {
		return -1, &InvalidMoveError{Column: column, Reason: "mark must be first or second"}
	}
	if b.heights[column] >= Rows {
		return -1, &InvalidMoveError{Column: column, Reason: "column is full"}
	}
	return b.drop(column, mark), nil
}

// UndoMove removes the top disc from a column. Undos must mirror MakeMove
// calls in reverse order.
func (b *Board) UndoMove(column int) error {
	if column < 0 || column >= Columns {
		return &InvalidMoveError{Column: column, Reason: "column out of range"}
	}
	if b.heights[column] == 0 {
		return &InvalidMoveError{Column: column, Reason: "column is empty"}
	}
	b.lift(column)
	return nil
}

func (b *Board) drop(column int, mark Mark) int {
	row := Rows - 1 - b.heights[column]
	b.cells[row][column] = mark
	b.heights[column]++
	b.moves++
	if debugChecks {
		b.history[b.histLen] = int8(column)
		b.histLen++
	}
	return row
}

func (b *Board) lift(column int) {
	if debugChecks {
		assertLastMove(b, column)
	}
	b.heights[column]--
	b.cells[Rows-1-b.heights[column]][column] = Empty
	b.moves--
}

// scanLines calls fn with every maximal line until fn returns false. The
// slice passed to fn is reused between calls.
func (b *Board) scanLines(fn func(line []Mark) bool) {
	var buf [Columns]Mark
	for _, line := range lines {
		marks := buf[:len(line)]
		for i, p := range line {
			marks[i] = b.cells[p.row][p.col]
		}
		if !fn(marks) {
			return
		}
	}
}

// ExtractLines returns every maximal row, column and diagonal of length at
// least ConnectLength: 6 rows, 7 columns and 6 diagonals in each orientation.
func (b *Board) ExtractLines() [][]Mark {
	out := make([][]Mark, 0, len(lines))
	b.scanLines(func(line []Mark) bool {
		out = append(out, append([]Mark(nil), line...))
		return true
	})
	return out
}

// IsWon checks if the specified mark has four in a row anywhere on the board
func (b *Board) IsWon(mark Mark) bool {
	if !mark.IsPlayer() {
		return false
	}
	won := false
	b.scanLines(func(line []Mark) bool {
		won = HasRun(line, mark, ConnectLength)
		return !won
	})
	return won
}

// IsFull checks if the board is completely full (draw condition)
func (b *Board) IsFull() bool {
	return b.moves == Rows*Columns
}

// Winner returns the mark holding four in a row, if any.
func (b *Board) Winner() (Mark, bool) {
	if b.IsWon(First) {
		return First, true
	}
	if b.IsWon(Second) {
		return Second, true
	}
	return Empty, false
}

// IsTerminal reports whether the game on this board is over, checking for a
// win before checking for a full board.
func (b *Board) IsTerminal() bool {
	if _, won := b.Winner(); won {
		return true
	}
	return b.IsFull()
}

// ToSlice converts the board to a 2D slice for JSON serialization
func (b *Board) ToSlice() [][]int {
	result := make([][]int, Rows)
	for i := 0; i < Rows; i++ {
		result[i] = make([]int, Columns)
		for j := 0; j < Columns; j++ {
			result[i][j] = b.cells[i][j].PlayerNum()
		}
	}
	return result
}

// String renders the board in the notation accepted by ParseBoard.
func (b *Board) String() string {
	var sb strings.Builder
	for row := 0; row < Rows; row++ {
		if row > 0 {
			sb.WriteByte('\n')
		}
		for col := 0; col < Columns; col++ {
			sb.WriteByte(markSymbol(b.cells[row][col]))
		}
	}
	return sb.String()
}
