//go:build !linux

package audiothread

func raisePriority() error   { return nil }
func restorePriority() error { return nil }
