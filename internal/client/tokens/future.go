package tokens

import "context"

// Future is the single-flight refresh slot: one pending refresh whose
// outcome every waiter observes.
type Future struct {
	done  chan struct{}
	token string
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(token string, err error) {
	f.token, f.err = token, err
	close(f.done)
}

// Done is closed once the refresh has settled.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the refresh settles or ctx ends. Cancelling ctx only
// stops this waiter; the refresh itself keeps going for the others.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.token, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
