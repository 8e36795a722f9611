package analysis

// run is a maximal stretch of identical samples.
type run struct {
	start  int
	length int
	value  float64
}

func (r run) end() int {
	return r.start + r.length
}

// valueRuns returns the maximal runs of samples equal to value that are at
// least minLen long.
func valueRuns(ch []float64, value float64, minLen int) []run {
	var runs []run
	start := -1
	for i, v := range ch {
		switch {
		case v == value && start < 0:
			start = i
		case v != value && start >= 0:
			if i-start >= minLen {
				runs = append(runs, run{start: start, length: i - start, value: value})
			}
			start = -1
		}
	}
	if start >= 0 && len(ch)-start >= minLen {
		runs = append(runs, run{start: start, length: len(ch) - start, value: value})
	}
	return runs
}

// constantRuns returns the maximal runs of any repeated value that are at
// least minLen samples long.
func constantRuns(ch []float64, minLen int) []run {
	var runs []run
	start := 0
	for i := 1; i <= len(ch); i++ {
		if i < len(ch) && ch[i] == ch[start] {
			continue
		}
		if i-start >= minLen {
			runs = append(runs, run{start: start, length: i - start, value: ch[start]})
		}
		start = i
	}
	return runs
}
