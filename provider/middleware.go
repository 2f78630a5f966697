package provider

import "slices"

// Middleware decorates a RequestResponse provider. WithLogging, WithMetrics
// and WithTracing are middlewares.
type Middleware[I, O any] func(RequestResponse[I, O]) RequestResponse[I, O]

// Chain folds middlewares into one with the first outermost:
// Chain(log, trace)(p) runs log, then trace, then p.
func Chain[I, O any](mws ...Middleware[I, O]) Middleware[I, O] {
	return func(p RequestResponse[I, O]) RequestResponse[I, O] {
		for _, mw := range slices.Backward(mws) {
			p = mw(p)
		}
		return p
	}
}
