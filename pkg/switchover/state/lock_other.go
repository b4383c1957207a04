//go:build !unix

package state

import "os"

// tryFlock is a best-effort fallback for platforms without flock(2)
// (spec.md §4.1: "documents a best-effort fallback"). It relies on the
// in-process mutex in Engine for same-process safety and simply succeeds
// for cross-process purposes; concurrent invocations on these platforms
// are not guaranteed to serialize.
func tryFlock(f *os.File) (bool, error) {
	return true, nil
}

func unlockFlock(f *os.File) error {
	return nil
}
