package refresh

type slotState int

const (
	slotPending slotState = iota
	slotResolved
	slotRejected
)

func (s slotState) String() string {
	switch s {
	case slotResolved:
		return "resolved"
	case slotRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// waiter is one caller's result slot in a flight. It is settled exactly once,
// by the goroutine that owns the flight.
type waiter struct {
	seq   int // position in the queue
	order int // position in the settlement sequence, -1 while pending
	state slotState
	token string
	err   error
	done  chan struct{}
}

func newWaiter(seq int) *waiter {
	return &waiter{seq: seq, order: -1, done: make(chan struct{})}
}

// settle records the outcome and releases the caller. A second settle is refused.
func (w *waiter) settle(order int, token string, err error) bool {
	if w.state != slotPending {
		return false
	}
	w.order = order
	if err != nil {
		w.state = slotRejected
		w.err = err
	} else {
		w.state = slotResolved
		w.token = token
	}
	close(w.done)
	return true
}

// wait blocks until the flight settles. There is no way to withdraw.
func (w *waiter) wait() (string, error) {
	<-w.done
	return w.token, w.err
}
