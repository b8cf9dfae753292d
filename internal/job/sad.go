package job

import (
	"context"
	"math/rand"

	"edfoverlay/internal/sched"
)

// DataLen is the number of samples in each SAD input.
const DataLen = 10

// Pair is one pair of SAD inputs.
type Pair struct {
	A, B [DataLen]int
}

// Fill overwrites both inputs with 4-bit random samples.
func (p *Pair) Fill(r *rand.Rand) {
	for i := 0; i < DataLen; i++ {
		p.A[i] = r.Int() & 0xF
		p.B[i] = r.Int() & 0xF
	}
}

// SAD returns the sum of absolute differences of the two inputs.
func (p Pair) SAD() uint {
	var sum uint
	for i := 0; i < DataLen; i++ {
		diff := p.A[i] - p.B[i]
		if diff < 0 {
			diff = -diff
		}
		sum += uint(diff)
	}
	return sum
}

// SADWork returns a body computing the SAD of p and handing it to report.
func SADWork(p Pair, report func(*sched.TaskRecord, uint)) sched.Body {
	return func(_ context.Context, self *sched.TaskRecord) error {
		sum := p.SAD()
		if report != nil {
			report(self, sum)
		}
		return nil
	}
}
