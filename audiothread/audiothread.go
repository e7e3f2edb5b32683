// Package audiothread marks goroutines that drive rendering so the scheduler
// treats them as latency sensitive.
package audiothread

import (
	"log/slog"
	"runtime"
	"sync/atomic"
)

// Nice is the priority requested for audio threads where the platform has
// per-thread nice values.
const Nice = -10

var active atomic.Int32

// BecomeAudioThread locks the calling goroutine to its OS thread and raises
// the thread's priority. A priority failure is logged and otherwise ignored;
// the thread stays locked either way. Pair every call with
// UnbecomeAudioThread on the same goroutine.
func BecomeAudioThread(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	runtime.LockOSThread()
	active.Add(1)
	if err := raisePriority(); err != nil {
		logger.Warn("audio thread priority unchanged", "err", err)
	}
}

// UnbecomeAudioThread restores the thread's previous priority and unlocks it.
func UnbecomeAudioThread(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := restorePriority(); err != nil {
		logger.Warn("audio thread priority not restored", "err", err)
	}
	active.Add(-1)
	runtime.UnlockOSThread()
}

// Active returns the number of goroutines currently registered as audio
// threads.
func Active() int { return int(active.Load()) }
