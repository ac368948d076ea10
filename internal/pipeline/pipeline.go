// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Item identifies one snippet in a batch.
type Item struct {
	ID   string
	Name string
}

// ItemResult records one item's outcome. Err is empty on success.
type ItemResult[T any] struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Outcome T      `json:"outcome,omitempty"`
	Err     string `json:"error,omitempty"`
}

// Report aggregates a whole batch. Succeeded+Failed always equals Total,
// and Items preserves the input order.
type Report[T any] struct {
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Items     []ItemResult[T] `json:"items"`
}

// Run applies fn to every item sequentially. An error or panic in one
// item is captured as that item's failed result; the batch never aborts
// and never reorders. The report is the only way failures surface.
func Run[T any](ctx context.Context, log *zap.SugaredLogger, items []Item, fn func(context.Context, Item) (T, error)) Report[T] {
	rep := Report[T]{Total: len(items), Items: make([]ItemResult[T], 0, len(items))}
	for _, it := range items {
		out, err := runOne(ctx, it, fn)
		res := ItemResult[T]{ID: it.ID, Name: it.Name}
		if err != nil {
			res.Err = err.Error()
			rep.Failed++
			log.Warnw("bulk item failed", "id", it.ID, "name", it.Name, "err", err)
		} else {
			res.Outcome = out
			rep.Succeeded++
		}
		rep.Items = append(rep.Items, res)
	}
	return rep
}

// runOne confines errors and panics to the item boundary.
func runOne[T any](ctx context.Context, it Item, fn func(context.Context, Item) (T, error)) (out T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx, it)
}
