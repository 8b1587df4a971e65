package brain

import "context"

// Await runs fn on its own goroutine and returns its value, or ctx.Err()
// once ctx is done. Provider calls are detached from ctx, so a caller that
// needs a hard deadline wraps the operation with Await; on expiry fn keeps
// running and its result is discarded.
func Await[T any](ctx context.Context, fn func(context.Context) T) (T, error) {
	done := make(chan T, 1)
	go func() { done <- fn(ctx) }()

	select {
	case v := <-done:
		return v, nil
	case <-ctx.Done():
		// Prefer a result that raced the deadline.
		select {
		case v := <-done:
			return v, nil
		default:
		}
		var zero T
		return zero, ctx.Err()
	}
}
