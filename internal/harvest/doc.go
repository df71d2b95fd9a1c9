// Package harvest defines the core types shared across the harvesting
// pipeline: tasks, status records, fetch requests and the interfaces the
// queue, fetcher and strategies implement.
package harvest
