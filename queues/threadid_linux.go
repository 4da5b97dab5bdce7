//go:build linux

package queues

import "golang.org/x/sys/unix"

// hasThreadIDs reports whether threadID distinguishes OS threads.
const hasThreadIDs = true

// threadID returns the id of the calling OS thread.
func threadID() int {
	return unix.Gettid()
}
