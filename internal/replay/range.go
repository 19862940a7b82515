package replay

import "fmt"

// StepRange is an inclusive range of step indexes.
type StepRange struct {
	From uint64
	To   uint64
}

// SplitRange splits a step range into batches of size batchSize.
func SplitRange(from, to, batchSize uint64) ([]StepRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to step must be >= from step")
	}

	ranges := make([]StepRange, 0, (to-from)/batchSize+1)
	start := from
	for start <= to {
		end := to
		if to-start+1 > batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, StepRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}
