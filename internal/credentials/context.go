package credentials

import "context"

type contextKey struct{}

// NewContext returns a context carrying the request's credential bag.
// Hooks read the bag back with FromContext; nothing else should.
func NewContext(ctx context.Context, bag *Bag) context.Context {
	return context.WithValue(ctx, contextKey{}, bag)
}

// FromContext extracts the credential bag from ctx. A context without a bag
// yields an empty Bag, so callers can skip the nil check and hooks naturally
// pass through.
func FromContext(ctx context.Context) *Bag {
	if bag, ok := ctx.Value(contextKey{}).(*Bag); ok && bag != nil {
		return bag
	}
	return &Bag{}
}
