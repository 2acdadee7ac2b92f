package game

// Weights are the heuristic coefficients used by the Evaluator.
type Weights struct {
	Center        int `mapstructure:"center" json:"center"`
	OpenThree     int `mapstructure:"open_three" json:"openThree"`
	OpenTwo       int `mapstructure:"open_two" json:"openTwo"`
	OpponentThree int `mapstructure:"opponent_three" json:"opponentThree"`
}

// DefaultWeights rewards center control and open threes and twos, and
// penalises an opponent three with a single gap left.
var DefaultWeights = Weights{
	Center:        3,
	OpenThree:     5,
	OpenTwo:       2,
	OpponentThree: -4,
}

// Evaluator scores non-terminal positions for one side. The score is a
// heuristic, not a proof: positions with four in a row are scored by the
// search before the evaluator is ever consulted.
type Evaluator struct {
	weights Weights
}

// NewEvaluator creates an evaluator with the given weights
func NewEvaluator(w Weights) *Evaluator {
	return &Evaluator{weights: w}
}

// Weights returns the coefficients in use
func (e *Evaluator) Weights() Weights {
	return e.weights
}

// Score evaluates the board from the point of view of mark.
func (e *Evaluator) Score(board *Board, mark Mark) int {
	score := 0

	// Score center column (strategic advantage)
	for row := 0; row < Rows; row++ {
		if board.cells[row][CenterColumn] == mark {
			score += e.weights.Center
		}
	}

	// Score all windows of 4
	board.scanLines(func(line []Mark) bool {
		ForEachWindow(line, ConnectLength, func(window []Mark) {
			score += e.scoreWindow(window, mark)
		})
		return true
	})

	return score
}

// scoreWindow evaluates a window of 4 cells
func (e *Evaluator) scoreWindow(window []Mark, mark Mark) int {
	own, opp, empty := 0, 0, 0
	for _, cell := range window {
		switch cell {
		case mark:
			own++
		case Empty:
			empty++
		default:
			opp++
		}
	}

	switch {
	case own == 3 && empty == 1:
		return e.weights.OpenThree
	case own == 2 && empty == 2:
		return e.weights.OpenTwo
	case opp == 3 && empty == 1:
		return e.weights.OpponentThree
	}
	// A full window of mark only exists on a won board, which is never
	// evaluated during search.
	return 0
}
