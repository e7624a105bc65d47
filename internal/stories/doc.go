// Package stories is the fetch, cache and query pipeline in front of the
// Hacker News API.
//
// A Fetcher retrieves single items under a global ceiling of concurrent
// upstream calls and owns the per-item cache. A Service resolves the
// current id list (cached separately, with half the item TTL) and fans
// out over ids, returning live items in id-list order. An Engine filters
// and paginates that list.
//
// No failure crosses the Engine boundary: an unreachable upstream yields
// an empty page, a failed item is dropped from the result, and both are
// logged. Only the first MaxStories ids of the list are ever considered,
// so results never reflect older items.
package stories
