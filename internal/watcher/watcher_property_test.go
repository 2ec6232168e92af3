//go:build property

package watcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDebouncerProperties checks that any burst of events collapses to one
// batch holding each path once.
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("a burst yields one deduplicated batch", prop.ForAll(
		func(paths []int) bool {
			if len(paths) == 0 {
				return true
			}

			debouncer := &Debouncer{
				delay:   50 * time.Millisecond,
				events:  make(chan ChangeEvent, len(paths)),
				output:  make(chan []ChangeEvent, 10),
				pending: make([]ChangeEvent, 0),
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go debouncer.start(ctx)

			unique := make(map[string]bool)
			for _, p := range paths {
				path := fmt.Sprintf("file-%d.yml", p)
				unique[path] = true
				debouncer.events <- ChangeEvent{Type: EventTypeModified, Path: path}
			}

			var batch []ChangeEvent
			select {
			case batch = <-debouncer.output:
			case <-time.After(time.Second):
				return false
			}
			if len(batch) != len(unique) {
				return false
			}
			for i := 1; i < len(batch); i++ {
				if batch[i-1].Path >= batch[i].Path {
					return false
				}
			}

			select {
			case <-debouncer.output:
				return false
			case <-time.After(150 * time.Millisecond):
				return true
			}
		},
		gen.SliceOfN(20, gen.IntRange(0, 5)),
	))

	properties.TestingRun(t)
}
