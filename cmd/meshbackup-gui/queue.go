package main

// uiQueue posts updates to the UI thread and drops them once the window is closing.
// closing is only touched on the UI thread.
type uiQueue struct {
	post    func(func())
	closing bool
}

func (q *uiQueue) do(f func()) {
	q.post(func() {
		if q.closing {
			return
		}
		f()
	})
}

// close is called from the window closing handler.
func (q *uiQueue) close() {
	q.closing = true
}
