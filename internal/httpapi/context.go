package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// errShuttingDown is the cancel cause of stream contexts ended by shutdown.
var errShuttingDown = errors.New("server shutting down")

// processCtx ends when the process begins shutting down.
var processCtx = context.Background()

// SetBaseContext installs the process context observed by streaming
// handlers. nil resets it to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	processCtx = ctx
}

func shuttingDown() bool { return processCtx.Err() != nil }

// streamContext derives the context a streaming handler hands to the
// manager. It ends when the client goes away, when the process shuts down
// (cause errShuttingDown) or when the generate timeout elapses. Values of
// the request context, the request logger included, are kept.
func streamContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(r.Context())
	stop := context.AfterFunc(processCtx, func() { cancel(errShuttingDown) })
	release := func() {
		stop()
		cancel(context.Canceled)
	}
	if generateTimeout <= 0 {
		return ctx, release
	}
	tctx, tcancel := context.WithTimeout(ctx, time.Duration(generateTimeout)*time.Second)
	return tctx, func() {
		tcancel()
		release()
	}
}

// streamAbandoned reports whether nobody is left to read an error: the
// client disconnected or the server is shutting down.
func streamAbandoned(r *http.Request) bool {
	return r.Context().Err() != nil || shuttingDown()
}
