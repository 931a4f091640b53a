package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"aligncall/internal/app"
)

type dialer interface {
	Dial(ctx context.Context, job app.DialJob) error
}

// DialHandler decodes dial jobs and places the calls.
func DialHandler(svc dialer) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var job app.DialJob
		if err := json.Unmarshal(body, &job); err != nil || job.CallID == 0 {
			return fmt.Errorf("%w: bad dial job %q", ErrDrop, body)
		}
		return svc.Dial(ctx, job)
	}
}

type completionHandler interface {
	HandleCompletion(ctx context.Context, payload []byte) (*app.EventOutcome, error)
}

// CallEventHandler processes queued end-of-call webhooks.
func CallEventHandler(svc completionHandler) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		_, err := svc.HandleCompletion(ctx, body)
		if errors.Is(err, app.ErrMissingCallID) || errors.Is(err, app.ErrCallNotFound) {
			return fmt.Errorf("%w: %v", ErrDrop, err)
		}
		return err
	}
}
