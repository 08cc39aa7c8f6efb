package reconcile

import (
	"context"
	"iter"

	"ugc-marketplace/services/application"
)

// Pages yields pages from src until it reports Done. An error is yielded once
// and ends the sequence. The sequence restarts from the first page each time
// it is ranged over.
func Pages(ctx context.Context, src application.Source, size int) iter.Seq2[application.Page, error] {
	return func(yield func(application.Page, error) bool) {
		cursor := ""
		for {
			if err := ctx.Err(); err != nil {
				yield(application.Page{}, err)
				return
			}

			page, err := src.NextPage(ctx, cursor, size)
			if err != nil {
				yield(application.Page{}, err)
				return
			}
			if !yield(page, nil) || page.Done {
				return
			}
			cursor = page.NextCursor
		}
	}
}
