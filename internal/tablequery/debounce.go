package tablequery

import (
	"sync"
	"time"
)

// Debounce returns a trigger that runs fn once the trigger has been idle for
// the given interval. Used for search input so the resolver is not hit once
// per keystroke; only the last call in a burst fires.
func Debounce(interval time.Duration, fn func()) (trigger func(), stop func()) {
	var mu sync.Mutex
	var timer *time.Timer

	trigger = func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(interval, fn)
	}
	stop = func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}
	return trigger, stop
}
