package game

// Mark is the content of a single board cell.
// First and Second are arithmetic negations of each other and Empty is zero,
// so negating a Mark swaps sides and leaves Empty unchanged.
type Mark int8

const (
	Second Mark = -1
	Empty  Mark = 0
	First  Mark = 1
)

// Opponent returns the other side. The opponent of Empty is Empty.
func (m Mark) Opponent() Mark {
	return -m
}

// IsPlayer reports whether m is First or Second.
func (m Mark) IsPlayer() bool {
	return m == First || m == Second
}

// PlayerNum returns the wire representation used in game state: 0 for Empty,
// 1 for First and 2 for Second.
func (m Mark) PlayerNum() int {
	switch m {
	case First:
		return 1
	case Second:
		return 2
	}
	return 0
}

// MarkFromPlayerNum is the inverse of PlayerNum.
func MarkFromPlayerNum(n int) Mark {
	switch n {
	case 1:
		return First
	case 2:
		return Second
	}
	return Empty
}

func (m Mark) String() string {
	switch m {
	case First:
		return "first"
	case Second:
		return "second"
	}
	return "empty"
}
