package hash

import (
	"golang.org/x/sync/errgroup"
)

// Task asks for the digest of one file. Seq is the file's position in the
// canonical walk order; tasks must be submitted with dense sequence numbers
// starting at zero.
type Task struct {
	Seq  int
	Path string
}

// Result carries one completed digest. A failed hash is reported here, not
// propagated; the caller downgrades that entry and keeps going.
type Result struct {
	Seq    int
	Digest string
	Err    error
}

// Pool hashes files on a fixed set of workers while delivering results in
// submission order, so the snapshot built from them is identical to a
// sequential scan no matter how the workers are scheduled.
type Pool struct {
	provider Provider
	workers  int
}

func NewPool(provider Provider, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{provider: provider, workers: workers}
}

// Run consumes tasks until the channel closes. The returned channel yields
// one result per task in ascending Seq order and is closed when all workers
// have drained.
func (p *Pool) Run(tasks <-chan Task) <-chan Result {
	completions := make(chan Result, p.workers)
	ordered := make(chan Result, p.workers)

	var g errgroup.Group
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for t := range tasks {
				digest, err := p.provider.File(t.Path)
				completions <- Result{Seq: t.Seq, Digest: digest, Err: err}
			}
			return nil
		})
	}
	go func() {
		g.Wait()
		close(completions)
	}()

	// Reassembly buffer: hold out-of-order completions until their turn.
	go func() {
		defer close(ordered)
		next := 0
		pending := make(map[int]Result)
		for r := range completions {
			pending[r.Seq] = r
			for {
				buffered, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				ordered <- buffered
				next++
			}
		}
	}()

	return ordered
}
