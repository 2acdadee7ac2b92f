//go:build c4debug

package game

import "fmt"

const debugChecks = true

func assertLastMove(b *Board, column int) {
	if b.histLen == 0 {
		// constructed boards carry no history
		return
	}
	last := int(b.history[b.histLen-1])
	if last != column {
		panic(fmt.Sprintf("undo of column %d out of order: last move was column %d", column, last))
	}
	b.histLen--
}
