package hotkeys

// forwardKeyEvents turns one key's down and up notifications into Events
// until done is closed or either channel closes.
func forwardKeyEvents[T any](id ID, down, up <-chan T, done <-chan struct{}, emit func(Event)) {
	for {
		select {
		case <-done:
			return
		case _, ok := <-down:
			if !ok {
				return
			}
			emit(Event{ID: id, State: Pressed})
		case _, ok := <-up:
			if !ok {
				return
			}
			emit(Event{ID: id, State: Released})
		}
	}
}
