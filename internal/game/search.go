package game

import (
	"context"

	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"
)

// WinScore is the value of a win on the very next ply. A win found n plies
// from the root scores WinScore-n and a loss scores -(WinScore-n), so faster
// wins and slower losses are preferred.
const WinScore = 1_000_000

const infinity = 1 << 30

// Result is the outcome of a search.
type Result struct {
	Column   int    `json:"column"`
	Score    int    `json:"score"`
	Depth    int    `json:"depth"`
	Nodes    uint64 `json:"nodes"`
	Complete bool   `json:"complete"`
}

// TieBreaker chooses among root columns that share the best score.
type TieBreaker interface {
	// Pick receives a non-empty list of columns in ascending order.
	Pick(candidates []int) int
}

// FirstTieBreaker picks the lowest column.
type FirstTieBreaker struct{}

func (FirstTieBreaker) Pick(candidates []int) int {
	return candidates[0]
}

// RandomTieBreaker picks uniformly at random.
type RandomTieBreaker struct{}

func (RandomTieBreaker) Pick(candidates []int) int {
	return candidates[frand.Intn(len(candidates))]
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithEvaluator sets the evaluator used at the depth cutoff.
func WithEvaluator(e *Evaluator) Option {
	return func(s *Searcher) {
		s.eval = e
	}
}

// WithTieBreaker sets the policy for equally scored root moves.
func WithTieBreaker(t TieBreaker) Option {
	return func(s *Searcher) {
		s.ties = t
	}
}

// WithIterativeDeepening makes the search run depths 1..N and return the
// deepest iteration that finished before the context ended.
func WithIterativeDeepening(on bool) Option {
	return func(s *Searcher) {
		s.iterative = on
	}
}

// scorer values a non-terminal position for the side to move.
type scorer interface {
	Score(board *Board, mark Mark) int
}

// Searcher runs depth-bounded negamax with alpha-beta pruning. Moves are
// applied to the board in place and undone in reverse order. A Searcher is
// not safe for concurrent use.
type Searcher struct {
	eval      scorer
	ties      TieBreaker
	iterative bool
	nodes     uint64
}

// NewSearcher creates a searcher with the default evaluator and
// lowest-column tie-breaking unless overridden.
func NewSearcher(opts ...Option) *Searcher {
	s := &Searcher{
		eval: NewEvaluator(DefaultWeights),
		ties: FirstTieBreaker{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindBestMove returns the column mark should play on board, searching depth
// plies. The board is left exactly as it was passed in.
//
// If ctx ends before the search finishes, the best root move completed so far
// is returned with Complete set to false; if no root move was completed the
// first legal column is returned.
func (s *Searcher) FindBestMove(ctx context.Context, board *Board, mark Mark, depth int) (Result, error) {
	if !mark.IsPlayer() {
		return Result{}, &PreconditionError{Reason: "mark must be first or second"}
	}
	if depth < 1 {
		return Result{}, &PreconditionError{Reason: "depth must be at least 1"}
	}
	if winner, won := board.Winner(); won {
		return Result{}, &PreconditionError{Reason: "board already won by " + winner.String()}
	}
	moves := board.ValidMoves()
	if len(moves) == 0 {
		return Result{}, &PreconditionError{Reason: "board has no valid moves"}
	}

	s.nodes = 0
	var res Result
	if s.iterative {
		for d := 1; d <= depth; d++ {
			iter := s.searchRoot(ctx, board, mark, d, moves)
			if !iter.Complete {
				if d == 1 {
					res = iter
				}
				res.Complete = false
				break
			}
			res = iter
		}
	} else {
		res = s.searchRoot(ctx, board, mark, depth, moves)
	}
	res.Nodes = s.nodes

	log.Debug().
		Str("mark", mark.String()).
		Int("depth", res.Depth).
		Int("column", res.Column).
		Int("score", res.Score).
		Uint64("nodes", res.Nodes).
		Bool("complete", res.Complete).
		Msg("search-finished")
	return res, nil
}

func (s *Searcher) searchRoot(ctx context.Context, b *Board, mark Mark, depth int, moves []int) Result {
	best := -infinity
	candidates := make([]int, 0, len(moves))

	for _, col := range moves {
		// Searching with alpha one below the best score keeps ties exact, so
		// the tie-breaker sees every column that matches the best.
		alpha := best - 1
		b.drop(col, mark)
		s.nodes++
		score, err := s.negamax(ctx, b, mark.Opponent(), depth-1, 1, -infinity, -alpha)
		b.lift(col)
		if err != nil {
			res := Result{Column: moves[0], Depth: depth}
			if len(candidates) > 0 {
				res.Column = s.ties.Pick(candidates)
				res.Score = best
			}
			return res
		}
		score = -score

		switch {
		case score > best:
			best = score
			candidates = append(candidates[:0], col)
		case score == best:
			candidates = append(candidates, col)
		}
	}

	return Result{
		Column:   s.ties.Pick(candidates),
		Score:    best,
		Depth:    depth,
		Complete: true,
	}
}

// negamax returns the value of the position for toMove. ply counts the moves
// made since the root.
func (s *Searcher) negamax(ctx context.Context, b *Board, toMove Mark, depth, ply, alpha, beta int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// Only the side that just moved can have completed a line.
	if b.IsWon(toMove.Opponent()) {
		return -(WinScore - ply), nil
	}
	if b.IsFull() {
		return 0, nil
	}
	if depth == 0 {
		return s.eval.Score(b, toMove), nil
	}

	best := -infinity
	for col := 0; col < Columns; col++ {
		if b.heights[col] >= Rows {
			continue
		}
		b.drop(col, toMove)
		s.nodes++
		score, err := s.negamax(ctx, b, toMove.Opponent(), depth-1, ply+1, -beta, -alpha)
		b.lift(col)
		if err != nil {
			return 0, err
		}
		score = -score

		if score > best {
			best = score
		}
		if best > alpha {
			alpha = best
		}
		if alpha >= beta {
			break // Alpha-beta pruning
		}
	}
	return best, nil
}
