package console

import (
	"io"
	"strconv"
	"strings"

	"github.com/euan-turner/Connect4/internal/game"
)

const (
	symbolFirst  = "@"
	symbolSecond = "#"
	symbolEmpty  = " "
)

// Symbol returns the glyph drawn for a mark
func Symbol(m game.Mark) string {
	switch m {
	case game.First:
		return symbolFirst
	case game.Second:
		return symbolSecond
	}
	return symbolEmpty
}

// Render draws the board as a ruled grid, top row first, with 1-based
// column labels underneath.
func Render(w io.Writer, b *game.Board) error {
	rule := "+" + strings.Repeat("---+", game.Columns) + "\n"

	var sb strings.Builder
	sb.WriteString(rule)
	for row := 0; row < game.Rows; row++ {
		sb.WriteString("|")
		for col := 0; col < game.Columns; col++ {
			sb.WriteString(" " + Symbol(b.Cell(row, col)) + " |")
		}
		sb.WriteString("\n")
		sb.WriteString(rule)
	}
	for col := 0; col < game.Columns; col++ {
		sb.WriteString("  " + strconv.Itoa(col+1) + " ")
	}
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
