package harvest

import "context"

// Queue distributes tasks to workers. Dequeued tasks (sentinels included)
// must be acknowledged with Done; Join blocks until every enqueued task has
// been acknowledged.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Dequeue(ctx context.Context) (Task, error)
	Done()
	Join(ctx context.Context) error
}

// Fetcher performs one GET. Any status other than 200 is returned as an
// error so callers never have to inspect the response to detect failure.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// Strategy turns an item into fetch targets and persists fetched content.
type Strategy interface {
	// Resolve produces the targets to fetch for an item. It may itself
	// perform fetches (the image strategy loads a listing page).
	Resolve(ctx context.Context, item string) ([]Target, error)
	// Save persists one fetched body and returns the file path written.
	Save(item string, target Target, body []byte) (string, error)
}
