// Package runner reads a bounded source in parallel on the local machine.
//
// It plays the part a batch engine plays in production:
//   - Splits the source into bundles of a configurable desired size
//   - Creates one range tracker and one read pass per bundle
//   - Reads bundles concurrently with a bounded number of goroutines
//   - Tracks progress with callbacks for UI updates or logging
//   - Stops on the first row or tracker error and honors context cancellation
//
// Nothing is retried; a failed run reports the bundle and offset that failed.
package runner
