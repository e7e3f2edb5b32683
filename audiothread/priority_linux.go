package audiothread

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// previous nice value per thread id, for threads whose priority was raised
var (
	mu       sync.Mutex
	previous = map[int]int{}
)

func raisePriority() error {
	tid := unix.Gettid()
	// The raw syscall reports 20-nice.
	prio, err := unix.Getpriority(unix.PRIO_PROCESS, tid)
	if err != nil {
		return fmt.Errorf("getpriority: %w", err)
	}
	if err := unix.Setpriority(unix.PRIO_PROCESS, tid, Nice); err != nil {
		return fmt.Errorf("setpriority %d: %w", Nice, err)
	}
	mu.Lock()
	previous[tid] = 20 - prio
	mu.Unlock()
	return nil
}

func restorePriority() error {
	tid := unix.Gettid()
	mu.Lock()
	nice, ok := previous[tid]
	delete(previous, tid)
	mu.Unlock()
	if !ok {
		return nil
	}
	if err := unix.Setpriority(unix.PRIO_PROCESS, tid, nice); err != nil {
		return fmt.Errorf("setpriority %d: %w", nice, err)
	}
	return nil
}
