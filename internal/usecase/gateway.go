package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"subtrack-assistant/internal/domain"
)

const defaultModelTimeout = 25 * time.Second

// ModelInvoker issues a single request to the external model provider.
type ModelInvoker interface {
	Generate(ctx context.Context, req domain.ModelRequest) (domain.ModelResult, error)
}

// invokeWithTimeout races the provider call against a wall-clock timer.
// Whichever settles first wins; on timeout the in-flight call is abandoned
// (the buffered channel lets its goroutine finish and be discarded).
func invokeWithTimeout(ctx context.Context, invoker ModelInvoker, req domain.ModelRequest, timeout time.Duration) (domain.ModelResult, error) {
	type outcome struct {
		res domain.ModelResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := invoker.Generate(ctx, req)
		done <- outcome{res: res, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		if o.err != nil {
			return domain.ModelResult{}, classifyInvokeError(o.err)
		}
		return o.res, nil
	case <-timer.C:
		return domain.ModelResult{}, newError(ErrorTimeout, "model_call_timeout",
			fmt.Errorf("model call did not complete within %s", timeout))
	}
}

// classifyInvokeError folds any non-timeout provider failure into MODEL_ERROR,
// keeping the original cause when there is one.
func classifyInvokeError(err error) error {
	var ucErr *Error
	if errors.As(err, &ucErr) {
		return ucErr
	}
	if err.Error() == "" {
		return newError(ErrorModel, "model_call_failed", errors.New("model call failed"))
	}
	return newError(ErrorModel, "model_call_failed", err)
}
