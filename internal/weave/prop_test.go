package weave

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/prop"

	"github.com/keshon/surefile/internal/fs"
	"github.com/keshon/surefile/internal/snapshot"
)

// genSnapshotHistory produces a short random history: each snapshot picks a
// subset of a fixed path pool and assigns random digests, so consecutive
// versions share, drop and mutate entries.
func genSnapshotHistory() gopter.Gen {
	pool := []string{"a", "b", "c", "d/x", "d/y", "d/z/deep", "e", "f/g"}

	return func(genParams *gopter.GenParameters) *gopter.GenResult {
		rng := genParams.Rng
		count := 1 + rng.Intn(6)

		history := make([]*snapshot.Snapshot, count)
		for v := 0; v < count; v++ {
			var entries []snapshot.Entry
			for _, p := range pool {
				if rng.Intn(2) == 0 {
					continue
				}
				entries = append(entries, snapshot.Entry{
					Path:   p,
					Kind:   snapshot.KindFile,
					Size:   int64(rng.Intn(1 << 16)),
					MTime:  rng.Int63n(1 << 40),
					Mode:   0o644,
					Digest: fmt.Sprintf("%016x", rng.Uint64()),
				})
			}
			// Nested picks need their parent directories present.
			seen := make(map[string]bool, len(entries))
			for _, e := range entries {
				seen[e.Path] = true
			}
			for _, e := range entries {
				p := e.Path
				for {
					idx := strings.LastIndexByte(p, '/')
					if idx < 0 {
						break
					}
					p = p[:idx]
					if !seen[p] {
						seen[p] = true
						entries = append(entries, snapshot.Entry{Path: p, Kind: snapshot.KindDir, Mode: 0o755})
					}
				}
			}

			s := &snapshot.Snapshot{CapturedAt: time.Unix(1700000000+int64(v), 0), Entries: entries}
			s.Sort()
			history[v] = s
		}
		return gopter.NewGenResult(history, gopter.NoShrinker)
	}
}

func TestWeaveProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("every version renders back exactly, regardless of later appends", prop.ForAll(
		func(history []*snapshot.Snapshot) bool {
			s := Open("prop.weave", fs.NewMemoryFS())
			s.lockDelay = time.Millisecond

			for _, snap := range history {
				if _, err := s.Append(snap, nil); err != nil {
					return false
				}
			}
			for v, want := range history {
				got, err := s.Render(v + 1)
				if err != nil {
					return false
				}
				if got.Version != v+1 || !got.SameTree(want) {
					return false
				}
			}
			return true
		},
		genSnapshotHistory(),
	))

	properties.Property("appending an identical snapshot yields an empty delta", prop.ForAll(
		func(history []*snapshot.Snapshot) bool {
			s := Open("prop.weave", fs.NewMemoryFS())
			s.lockDelay = time.Millisecond

			last := history[len(history)-1]
			for _, snap := range history {
				if _, err := s.Append(snap, nil); err != nil {
					return false
				}
			}
			delta, err := s.Append(last, nil)
			if err != nil {
				return false
			}
			return delta.Inserted == 0 && delta.Deleted == 0 && delta.Version == len(history)+1
		},
		genSnapshotHistory(),
	))

	properties.TestingRun(t)
}
