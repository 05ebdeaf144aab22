package llm

import "context"

// CompleteFunc and StreamFunc let Middleware wrap either call without caring
// which provider adapter ultimately serves the request.
type CompleteFunc func(ctx context.Context, req Request) (Response, error)
type StreamFunc func(ctx context.Context, req Request) (Stream, error)

// Middleware wraps Client.Complete/Stream. Construction order is registration
// order for the request phase and reverse order for the response phase,
// matching standard http.Handler-style chaining.
type Middleware interface {
	WrapComplete(next CompleteFunc) CompleteFunc
	WrapStream(next StreamFunc) StreamFunc
}

func applyMiddlewareComplete(base CompleteFunc, mws []Middleware) CompleteFunc {
	h := base
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i].WrapComplete(h)
	}
	return h
}

func applyMiddlewareStream(base StreamFunc, mws []Middleware) StreamFunc {
	h := base
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i].WrapStream(h)
	}
	return h
}
