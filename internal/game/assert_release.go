//go:build !c4debug

package game

const debugChecks = false

func assertLastMove(*Board, int) {}
