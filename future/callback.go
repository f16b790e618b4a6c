package future

import (
	"runtime/debug"

	coreErrors "github.com/amp-labs/amp-gamecore/errors"
	"github.com/amp-labs/amp-gamecore/logger"
)

// invokeCallback runs a user callback on its own goroutine so it can never
// block promise fulfillment. Nil callbacks are ignored; panics are recovered
// and logged with their stack.
func invokeCallback[T any](kind string, callback func(T), value T) {
	if callback == nil {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				if err := coreErrors.FromPanic(r, debug.Stack()); err != nil {
					logger.Get().Error("panic encountered in future."+kind+" callback", "error", err)
				}
			}
		}()

		callback(value)
	}()
}
