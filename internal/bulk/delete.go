// Package bulk runs multi-row operations: fan-out deletes and spreadsheet
// imports.
package bulk

import (
	"context"
	"fmt"
	"sync"
)

// DeleteError reports that some deletes of a batch failed. Which rows failed
// is not surfaced.
type DeleteError struct {
	Failed int
	Total  int
	first  error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("failed to delete %d of %d items", e.Failed, e.Total)
}

// Unwrap exposes the first failure so callers can detect expired sessions.
func (e *DeleteError) Unwrap() error { return e.first }

// Delete calls del once per id, all in parallel, and waits for every call.
// A failure does not cancel the others.
func Delete(ctx context.Context, ids []int, del func(ctx context.Context, id int) error) error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
		first  error
	)
	for _, id := range ids {
		wg.Add(1)
		id := id
		go func() {
			defer wg.Done()
			if err := del(ctx, id); err != nil {
				mu.Lock()
				failed++
				if first == nil {
					first = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if failed > 0 {
		return &DeleteError{Failed: failed, Total: len(ids), first: first}
	}
	return nil
}
