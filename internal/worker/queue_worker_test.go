package worker

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/time/rate"

	"aligncall/internal/app"
)

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error {
	f.acked = true
	return nil
}

func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func workerFor(handle HandlerFunc) *QueueWorker {
	return NewQueueWorker(nil, "test", handle, rate.NewLimiter(rate.Inf, 1), nil)
}

func TestProcessAcksAndRequeuesOnce(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name        string
		err         error
		redelivered bool
		want        fakeAck
	}{
		{"success", nil, false, fakeAck{acked: true}},
		{"drop", ErrDrop, false, fakeAck{acked: true}},
		{"first failure", boom, false, fakeAck{nacked: true, requeued: true}},
		{"second failure", boom, true, fakeAck{nacked: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ack := &fakeAck{}
			workerFor(func(context.Context, []byte) error { return tc.err }).
				process(context.Background(), nil, tc.redelivered, ack)
			if *ack != tc.want {
				t.Errorf("ack = %+v, want %+v", *ack, tc.want)
			}
		})
	}
}

type fakeDialService struct {
	jobs []app.DialJob
}

func (f *fakeDialService) Dial(_ context.Context, job app.DialJob) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func TestDialHandler(t *testing.T) {
	svc := &fakeDialService{}
	handle := DialHandler(svc)

	if err := handle(context.Background(), []byte(`{"call_id":7}`)); err != nil {
		t.Fatal(err)
	}
	if len(svc.jobs) != 1 || svc.jobs[0].CallID != 7 {
		t.Errorf("jobs = %+v", svc.jobs)
	}
	if err := handle(context.Background(), []byte(`not json`)); !errors.Is(err, ErrDrop) {
		t.Errorf("err = %v", err)
	}
}

type fakeCompletion struct {
	err error
}

func (f fakeCompletion) HandleCompletion(context.Context, []byte) (*app.EventOutcome, error) {
	return &app.EventOutcome{Status: "success"}, f.err
}

func TestCallEventHandlerDropsUnknownCalls(t *testing.T) {
	if err := CallEventHandler(fakeCompletion{err: app.ErrCallNotFound})(context.Background(), nil); !errors.Is(err, ErrDrop) {
		t.Errorf("err = %v", err)
	}
	transient := errors.New("db down")
	if err := CallEventHandler(fakeCompletion{err: transient})(context.Background(), nil); !errors.Is(err, transient) {
		t.Errorf("err = %v", err)
	}
}
