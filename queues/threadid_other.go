//go:build !linux

package queues

// hasThreadIDs reports whether threadID distinguishes OS threads.
const hasThreadIDs = false

// threadID returns 0: thread ids are only available on linux, other systems share one stack.
func threadID() int {
	return 0
}
