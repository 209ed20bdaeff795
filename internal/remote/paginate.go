package remote

import (
	"context"
	"fmt"

	"github.com/gosuda/vibetodo/internal/domain"
)

// maxPages bounds pagination so a backend that keeps returning the same
// continuation token cannot loop forever.
const maxPages = 10_000

// PageFunc fetches the page at cursor ("" for the first page) and returns its
// items with the next cursor, or "" when there are no further pages.
type PageFunc[T any] func(ctx context.Context, cursor string) (items []T, next string, err error)

// Paginate follows cursors until the backend reports no further pages and
// returns all items in the order they were received.
func Paginate[T any](ctx context.Context, fetch PageFunc[T]) ([]T, error) {
	all := make([]T, 0)
	seen := make(map[string]struct{})
	cursor := ""

	for page := 0; page < maxPages; page++ {
		items, next, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)

		if next == "" {
			return all, nil
		}
		if _, dup := seen[next]; dup {
			return nil, fmt.Errorf("remote.Paginate: cursor %q repeated: %w", next, domain.ErrBackendUnavailable)
		}
		seen[next] = struct{}{}
		cursor = next
	}

	return nil, fmt.Errorf("remote.Paginate: more than %d pages: %w", maxPages, domain.ErrBackendUnavailable)
}
