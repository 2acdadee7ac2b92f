package game

// HasRun reports whether line contains length consecutive cells equal to mark.
func HasRun(line []Mark, mark Mark, length int) bool {
	if length <= 0 {
		return false
	}
	run := 0
	for _, m := range line {
		if m != mark {
			run = 0
			continue
		}
		run++
		if run >= length {
			return true
		}
	}
	return false
}

// CountWindows counts the contiguous windows of the given length made up
// entirely of mark. Overlapping windows are counted separately.
func CountWindows(line []Mark, mark Mark, length int) int {
	if length <= 0 {
		return 0
	}
	total := 0
	run := 0
	for _, m := range line {
		if m != mark {
			run = 0
			continue
		}
		run++
		if run >= length {
			total++
		}
	}
	return total
}

// ForEachWindow calls fn with every contiguous window of the given length.
func ForEachWindow(line []Mark, length int, fn func(window []Mark)) {
	for i := 0; i+length <= len(line); i++ {
		fn(line[i : i+length])
	}
}
