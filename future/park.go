package future

import "context"

// Parker is told when AwaitContext is about to block and when it resumes.
// Actor lanes install one on every item's context so another lane may run
// work for the same call chain while the item waits.
type Parker interface {
	Park()
	Unpark()
}

type parkerKey struct{}

// WithParker returns ctx carrying p. AwaitContext on the returned context, or
// on any context derived from it, parks p while it blocks.
func WithParker(ctx context.Context, p Parker) context.Context {
	return context.WithValue(ctx, parkerKey{}, p)
}

func parkerOf(ctx context.Context) Parker { //nolint:ireturn
	p, _ := ctx.Value(parkerKey{}).(Parker)

	return p
}
