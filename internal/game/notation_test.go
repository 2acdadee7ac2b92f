package game

import (
	"errors"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestBoardFromMoves(t *testing.T) {
	is := is.New(t)
	b, err := BoardFromMoves([]int{3, 3, 4})
	is.NoErr(err)
	is.Equal(b.String(), strings.Join([]string{
		".......",
		".......",
		".......",
		".......",
		"...O...",
		"...XX..",
	}, "\n"))
	is.Equal(b.SideToMove(), Second)
}

func TestBoardFromMovesRejectsPlayAfterWin(t *testing.T) {
	is := is.New(t)
	_, err := BoardFromMoves([]int{0, 1, 0, 1, 0, 1, 0, 1})
	is.True(errors.Is(err, ErrInvalidMove))

	_, err = BoardFromMoves([]int{0, 1, 0, 1, 0, 1, 0})
	is.NoErr(err)
}

func TestBoardFromMovesRejectsFullColumn(t *testing.T) {
	is := is.New(t)
	_, err := BoardFromMoves([]int{5, 5, 5, 5, 5, 5, 5})
	is.True(errors.Is(err, ErrInvalidMove))
}

func TestParseBoardRoundTrip(t *testing.T) {
	is := is.New(t)
	b, err := BoardFromMoves([]int{3, 2, 3, 4, 4, 6, 0, 3})
	is.NoErr(err)

	parsed, err := ParseBoard(strings.Split(b.String(), "\n"))
	is.NoErr(err)
	is.True(sameBoard(b, parsed))
}

func TestParseBoardRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		rows []string
	}{
		{"too few rows", []string{".......", "......."}},
		{"short row", []string{".......", ".......", ".......", ".......", ".......", "......"}},
		{"unknown cell", []string{".......", ".......", ".......", ".......", ".......", "...Z..."}},
		{"floating disc", []string{".......", ".......", ".......", "...X...", ".......", "...O..."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBoard(tt.rows)
			if err == nil {
				t.Fatalf("expected an error for %v", tt.rows)
			}
		})
	}
}
