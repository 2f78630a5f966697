package provider

import (
	"context"

	"github.com/kbukum/meetscribe/observability"
)

// WithTracing opens a "<service>.<provider>" span around every call and
// marks it failed when the call errors.
func WithTracing[I, O any](service string) Middleware[I, O] {
	return func(next RequestResponse[I, O]) RequestResponse[I, O] {
		return &traced[I, O]{next: next, service: service}
	}
}

type traced[I, O any] struct {
	next    RequestResponse[I, O]
	service string
}

func (t *traced[I, O]) Name() string                         { return t.next.Name() }
func (t *traced[I, O]) IsAvailable(ctx context.Context) bool { return t.next.IsAvailable(ctx) }

func (t *traced[I, O]) Execute(ctx context.Context, in I) (O, error) {
	name := t.next.Name()
	ctx, span := observability.StartSpan(ctx, t.service+"."+name)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrServiceName, t.service)
	observability.SetSpanAttribute(ctx, observability.AttrOperationName, name)

	out, err := t.next.Execute(ctx, in)
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	return out, err
}
