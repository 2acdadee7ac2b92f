package game

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/matryer/is"
)

// referenceNegamax is a plain negamax without pruning.
func referenceNegamax(b *Board, toMove Mark, depth, ply int, e *Evaluator) int {
	if b.IsWon(toMove.Opponent()) {
		return -(WinScore - ply)
	}
	if b.IsFull() {
		return 0
	}
	if depth == 0 {
		return e.Score(b, toMove)
	}
	best := -infinity
	for _, col := range b.ValidMoves() {
		b.drop(col, toMove)
		v := -referenceNegamax(b, toMove.Opponent(), depth-1, ply+1, e)
		b.lift(col)
		if v > best {
			best = v
		}
	}
	return best
}

// referenceRoot returns the score of every legal root move.
func referenceRoot(b *Board, mark Mark, depth int, e *Evaluator) map[int]int {
	scores := map[int]int{}
	for _, col := range b.ValidMoves() {
		b.drop(col, mark)
		scores[col] = -referenceNegamax(b, mark.Opponent(), depth-1, 1, e)
		b.lift(col)
	}
	return scores
}

func bestOf(scores map[int]int) (int, int) {
	bestCol, best := -1, -infinity
	for col := 0; col < Columns; col++ {
		if s, ok := scores[col]; ok && s > best {
			bestCol, best = col, s
		}
	}
	return bestCol, best
}

// randomPositions plays random games from the empty board and keeps
// positions that are still open.
func randomPositions(seed int64, n int) []*Board {
	r := rand.New(rand.NewSource(seed))
	var out []*Board
	for len(out) < n {
		b := NewBoard()
		plies := r.Intn(24)
		for i := 0; i < plies && !b.IsTerminal(); i++ {
			valid := b.ValidMoves()
			b.drop(valid[r.Intn(len(valid))], b.SideToMove())
		}
		if !b.IsTerminal() {
			out = append(out, b)
		}
	}
	return out
}

func TestAlphaBetaMatchesPlainNegamax(t *testing.T) {
	e := NewEvaluator(DefaultWeights)
	maxDepth := 4
	if testing.Short() {
		maxDepth = 3
	}
	for i, b := range randomPositions(42, 40) {
		mark := b.SideToMove()
		for depth := 1; depth <= maxDepth; depth++ {
			wantCol, wantScore := bestOf(referenceRoot(b.Clone(), mark, depth, e))

			res, err := NewSearcher().FindBestMove(t.Context(), b, mark, depth)
			if err != nil {
				t.Fatalf("position %d depth %d: %v", i, depth, err)
			}
			if res.Column != wantCol || res.Score != wantScore {
				t.Fatalf("position %d depth %d: got (%d, %d), want (%d, %d)\n%s",
					i, depth, res.Column, res.Score, wantCol, wantScore, b)
			}
			if !res.Complete || res.Depth != depth {
				t.Fatalf("position %d depth %d: unexpected result %+v", i, depth, res)
			}
		}
	}
}

func TestSearchLeavesBoardUntouched(t *testing.T) {
	for _, b := range randomPositions(3, 10) {
		before := b.Clone()
		if _, err := NewSearcher().FindBestMove(t.Context(), b, b.SideToMove(), 4); err != nil {
			t.Fatal(err)
		}
		if !sameBoard(before, b) {
			t.Fatalf("board changed by search:\n%s\nvs\n%s", before, b)
		}
	}
}

func TestSearchTakesImmediateWin(t *testing.T) {
	positions := []struct {
		name string
		rows []string
		col  int
	}{
		{"horizontal", []string{
			".......",
			".......",
			".......",
			".......",
			".....O.",
			"XXX..OO",
		}, 3},
		{"vertical", []string{
			".......",
			".......",
			".......",
			"..X....",
			"..X....",
			"OOX.O..",
		}, 2},
		{"diagonal", []string{
			".......",
			".......",
			".......",
			"..XO...",
			".XOO...",
			"XOXOX..",
		}, 3},
	}
	for _, p := range positions {
		for _, depth := range []int{1, 3, 5} {
			t.Run(p.name, func(t *testing.T) {
				is := is.New(t)
				b := mustParse(t, p.rows...)
				is.True(!b.IsTerminal())

				res, err := NewSearcher().FindBestMove(t.Context(), b, First, depth)
				is.NoErr(err)
				is.Equal(res.Column, p.col)
				is.Equal(res.Score, WinScore-1)
				is.True(res.Complete)
			})
		}
	}
}

// recordingScorer remembers every board handed to the evaluator that
// already holds four in a row or has no room left.
type recordingScorer struct {
	inner    *Evaluator
	calls    int
	terminal []string
}

func (r *recordingScorer) Score(b *Board, mark Mark) int {
	r.calls++
	if b.IsTerminal() {
		r.terminal = append(r.terminal, b.String())
	}
	return r.inner.Score(b, mark)
}

func TestEvaluatorNeverSeesTerminalBoards(t *testing.T) {
	boards := []*Board{
		mustParse(t,
			".......",
			".......",
			".......",
			".......",
			".....O.",
			"XXX..OO",
		),
		mustParse(t,
			".......",
			".......",
			".......",
			"..XO...",
			".XOO...",
			"XOXOX..",
		),
		mustParse(t,
			"XX.OXXO",
			"OOXXOOX",
			"XXOOXXO",
			"OOXXOOX",
			"XXOOXXO",
			"OOXXOOX",
		),
	}
	boards = append(boards, randomPositions(7, 20)...)

	for i, b := range boards {
		for _, depth := range []int{1, 2, 4} {
			is := is.New(t)
			rec := &recordingScorer{inner: NewEvaluator(DefaultWeights)}
			s := NewSearcher()
			s.eval = rec

			_, err := s.FindBestMove(t.Context(), b, b.SideToMove(), depth)
			is.NoErr(err)
			if len(rec.terminal) > 0 {
				t.Fatalf("board %d depth %d: evaluator saw %d terminal boards, first:\n%s", i, depth, len(rec.terminal), rec.terminal[0])
			}
		}
	}
}

// hopelessScorer rates every position as lost for the side to move, so
// each child it touches looks better to the parent than any real win.
type hopelessScorer struct{}

func (hopelessScorer) Score(*Board, Mark) int { return -2 * WinScore }

func TestTerminalChildScoredByResultNotEvaluator(t *testing.T) {
	is := is.New(t)
	b := mustParse(t,
		".......",
		".......",
		".......",
		".......",
		".....O.",
		"XXX..OO",
	)
	s := NewSearcher()
	s.eval = hopelessScorer{}

	for _, col := range b.ValidMoves() {
		b.drop(col, First)
		v, err := s.negamax(t.Context(), b, Second, 0, 1, -infinity, infinity)
		b.lift(col)
		is.NoErr(err)
		if col == 3 {
			is.Equal(-v, WinScore-1) // four in a row, never evaluated
		} else {
			is.Equal(-v, 2*WinScore)
		}
	}
}

func TestSearchBlocksOpenThree(t *testing.T) {
	b := mustParse(t,
		".......",
		".......",
		".......",
		".......",
		"OO.....",
		"XXX....",
	)
	for _, depth := range []int{1, 2, 4} {
		res, err := NewSearcher().FindBestMove(t.Context(), b, Second, depth)
		if err != nil {
			t.Fatal(err)
		}
		if res.Column != 3 {
			t.Fatalf("depth %d: played column %d, want 3 (score %d)", depth, res.Column, res.Score)
		}
	}
}

func TestSearchPrefersFasterWin(t *testing.T) {
	is := is.New(t)
	// Columns 0 and 3 both win at once. Slower wins must score lower.
	b := mustParse(t,
		".......",
		".......",
		".......",
		"X......",
		"X....O.",
		"XXX..OO",
	)
	res, err := NewSearcher().FindBestMove(t.Context(), b, First, 5)
	is.NoErr(err)
	is.True(res.Column == 0 || res.Column == 3)
	is.Equal(res.Score, WinScore-1)
}

// TestEngineSurvivesOpening checks every line of play where the engine moves
// second: the opponent never gets four in a row within its first four discs.
func TestEngineSurvivesOpening(t *testing.T) {
	if testing.Short() {
		t.Skip("exhaustive opening check")
	}
	s := NewSearcher()
	var walk func(b *Board, discs int)
	walk = func(b *Board, discs int) {
		for _, col := range b.ValidMoves() {
			b.drop(col, First)
			if b.IsWon(First) {
				t.Fatalf("opponent won with disc %d:\n%s", discs+1, b)
			}
			if discs+1 < 4 {
				res, err := s.FindBestMove(t.Context(), b, Second, 4)
				if err != nil {
					t.Fatal(err)
				}
				b.drop(res.Column, Second)
				walk(b, discs+1)
				b.lift(res.Column)
			}
			b.lift(col)
		}
	}
	walk(NewBoard(), 0)
}

func TestSearchPreconditions(t *testing.T) {
	won, err := BoardFromMoves([]int{0, 1, 0, 1, 0, 1, 0})
	if err != nil {
		t.Fatal(err)
	}
	full := mustParse(t, drawRows...)

	tests := []struct {
		name  string
		board *Board
		mark  Mark
		depth int
	}{
		{"already won", won, Second, 3},
		{"full board", full, First, 3},
		{"zero depth", NewBoard(), First, 0},
		{"negative depth", NewBoard(), First, -2},
		{"empty mark", NewBoard(), Empty, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			_, err := NewSearcher().FindBestMove(t.Context(), tt.board, tt.mark, tt.depth)
			is.True(errors.Is(err, ErrPrecondition))
			var pe *PreconditionError
			is.True(errors.As(err, &pe))
		})
	}
}

func TestSearchCancelledBeforeStart(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	b, err := BoardFromMoves([]int{0, 0, 0, 0, 0, 0})
	is.NoErr(err)
	res, err := NewSearcher().FindBestMove(ctx, b, First, 6)
	is.NoErr(err)
	is.True(!res.Complete)
	is.Equal(res.Column, 1)
}

func TestSearchDeadlineReturnsLegalMove(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Millisecond)
	defer cancel()

	b := NewBoard()
	res, err := NewSearcher().FindBestMove(ctx, b, First, 20)
	is.NoErr(err)
	is.True(!res.Complete)
	is.True(b.IsColumnValid(res.Column))
	is.True(sameBoard(b, NewBoard()))
}

func TestIterativeDeepeningMatchesFixedDepth(t *testing.T) {
	for i, b := range randomPositions(99, 15) {
		mark := b.SideToMove()
		fixed, err := NewSearcher().FindBestMove(t.Context(), b, mark, 4)
		if err != nil {
			t.Fatal(err)
		}
		iter, err := NewSearcher(WithIterativeDeepening(true)).FindBestMove(t.Context(), b, mark, 4)
		if err != nil {
			t.Fatal(err)
		}
		if fixed.Column != iter.Column || fixed.Score != iter.Score || iter.Depth != 4 || !iter.Complete {
			t.Fatalf("position %d: fixed %+v, iterative %+v", i, fixed, iter)
		}
	}
}

func TestIterativeDeepeningKeepsLastCompleteDepth(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	res, err := NewSearcher(WithIterativeDeepening(true)).FindBestMove(ctx, NewBoard(), First, 30)
	is.NoErr(err)
	is.True(!res.Complete)
	is.True(res.Depth < 30)
	is.True(NewBoard().IsColumnValid(res.Column))
}

type recordingTieBreaker struct {
	seen []int
}

func (r *recordingTieBreaker) Pick(candidates []int) int {
	r.seen = append([]int(nil), candidates...)
	return candidates[len(candidates)-1]
}

func TestTieBreakerSeesEveryBestColumn(t *testing.T) {
	e := NewEvaluator(DefaultWeights)
	for _, b := range append(randomPositions(5, 10), NewBoard()) {
		mark := b.SideToMove()
		scores := referenceRoot(b.Clone(), mark, 3, e)
		_, best := bestOf(scores)
		var want []int
		for col := 0; col < Columns; col++ {
			if s, ok := scores[col]; ok && s == best {
				want = append(want, col)
			}
		}

		rec := &recordingTieBreaker{}
		res, err := NewSearcher(WithTieBreaker(rec)).FindBestMove(t.Context(), b, mark, 3)
		if err != nil {
			t.Fatal(err)
		}
		is := is.New(t)
		is.Equal(rec.seen, want)
		is.Equal(res.Column, want[len(want)-1])
		is.Equal(res.Score, best)
	}
}

func TestRandomTieBreakerStaysAmongBest(t *testing.T) {
	e := NewEvaluator(DefaultWeights)
	b := NewBoard()
	scores := referenceRoot(b.Clone(), First, 2, e)
	_, best := bestOf(scores)

	s := NewSearcher(WithTieBreaker(RandomTieBreaker{}))
	for i := 0; i < 20; i++ {
		res, err := s.FindBestMove(t.Context(), b, First, 2)
		if err != nil {
			t.Fatal(err)
		}
		if scores[res.Column] != best {
			t.Fatalf("picked column %d with score %d, best is %d", res.Column, scores[res.Column], best)
		}
	}
}

func TestNodesAreCounted(t *testing.T) {
	is := is.New(t)
	res, err := NewSearcher().FindBestMove(t.Context(), NewBoard(), First, 1)
	is.NoErr(err)
	is.Equal(res.Nodes, uint64(Columns))
}
