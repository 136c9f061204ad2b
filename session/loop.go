package session

// loop serialises work onto the goroutine running run. Producers post
// closures; public methods use do to run a closure and wait for it.
type loop struct {
	calls chan func()
	done  chan struct{}
}

func newLoop() *loop {
	return &loop{
		calls: make(chan func(), 64),
		done:  make(chan struct{}),
	}
}

// post schedules fn. It never blocks once the loop has exited; fn is then
// dropped.
func (l *loop) post(fn func()) {
	select {
	case l.calls <- fn:
	case <-l.done:
	}
}

// do runs fn on the loop and waits for it. It reports false when the loop
// exited before fn ran.
func (l *loop) do(fn func()) bool {
	ran := make(chan struct{})
	select {
	case l.calls <- func() { fn(); close(ran) }:
	case <-l.done:
		return false
	}
	select {
	case <-ran:
		return true
	case <-l.done:
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

// run executes posted closures until stop is closed, then runs teardown
// on the same goroutine before releasing waiters.
func (l *loop) run(stop <-chan struct{}, teardown func()) {
	defer close(l.done)
	for {
		select {
		case <-stop:
			teardown()
			return
		case fn := <-l.calls:
			fn()
		}
	}
}
