package hash

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowFirstProvider stalls the first-submitted path so its completion
// arrives last; the pool must still deliver it first.
type slowFirstProvider struct {
	slow string
}

func (p slowFirstProvider) Name() string { return "fake" }

func (p slowFirstProvider) File(path string) (string, error) {
	if path == p.slow {
		time.Sleep(50 * time.Millisecond)
	}
	return "digest-of-" + path, nil
}

func TestPoolDeliversInSubmissionOrder(t *testing.T) {
	paths := []string{"f0", "f1", "f2", "f3", "f4", "f5", "f6", "f7"}
	pool := NewPool(slowFirstProvider{slow: "f0"}, 4)

	tasks := make(chan Task, len(paths))
	for i, p := range paths {
		tasks <- Task{Seq: i, Path: p}
	}
	close(tasks)

	var got []Result
	for r := range pool.Run(tasks) {
		got = append(got, r)
	}

	require.Len(t, got, len(paths))
	for i, r := range got {
		assert.Equal(t, i, r.Seq, "results must arrive in submission order")
		assert.Equal(t, "digest-of-"+paths[i], r.Digest)
		assert.NoError(t, r.Err)
	}
}

type failingProvider struct {
	bad string
}

func (p failingProvider) Name() string { return "fake" }

func (p failingProvider) File(path string) (string, error) {
	if path == p.bad {
		return "", errors.New("permission denied")
	}
	return "ok", nil
}

func TestPoolFailureIsLocal(t *testing.T) {
	pool := NewPool(failingProvider{bad: "f1"}, 2)

	tasks := make(chan Task, 3)
	for i, p := range []string{"f0", "f1", "f2"} {
		tasks <- Task{Seq: i, Path: p}
	}
	close(tasks)

	var got []Result
	for r := range pool.Run(tasks) {
		got = append(got, r)
	}

	require.Len(t, got, 3)
	assert.NoError(t, got[0].Err)
	assert.Error(t, got[1].Err, "one failed hash must not cancel its siblings")
	assert.NoError(t, got[2].Err)
}

func TestPoolSingleWorkerMatchesMany(t *testing.T) {
	paths := []string{"a", "b", "c", "d", "e"}

	run := func(workers int) []Result {
		pool := NewPool(slowFirstProvider{slow: "c"}, workers)
		tasks := make(chan Task, len(paths))
		for i, p := range paths {
			tasks <- Task{Seq: i, Path: p}
		}
		close(tasks)

		var out []Result
		for r := range pool.Run(tasks) {
			out = append(out, r)
		}
		return out
	}

	assert.Equal(t, run(1), run(8))
}

func TestPoolEmptyInput(t *testing.T) {
	pool := NewPool(slowFirstProvider{}, 2)
	tasks := make(chan Task)
	close(tasks)

	count := 0
	for range pool.Run(tasks) {
		count++
	}
	assert.Zero(t, count)
}
