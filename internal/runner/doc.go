// Package runner drives a full resolution run end to end.
//
// It owns the input-contract checks, the cache lock, the row loop joining the
// resolver to the streaming writer, progress display, and the recovery path
// that persists the cache and a valid output prefix on interruption or
// failure. The caller maps the returned error onto the process exit status.
package runner
