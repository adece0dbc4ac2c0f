package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

var errTransient = errors.New("transient")

func TestCron_Schedule(t *testing.T) {
	Convey("Given a cron trigger", t, func() {
		tr := NewCron()

		Convey("When the spec is invalid", func() {
			err := tr.Schedule("every now and then", "bad", func(context.Context) error { return nil })
			So(errors.Is(err, ErrInvalidSpec), ShouldBeTrue)
		})

		Convey("When a job is scheduled every second", func() {
			var runs atomic.Int32
			So(tr.Schedule("@every 1s", "tick", func(context.Context) error {
				runs.Add(1)
				return nil
			}), ShouldBeNil)
			ctx := context.Background()
			tr.Start(ctx)
			tr.Start(ctx)

			Convey("Then it fires and stops cleanly", func() {
				deadline := time.Now().Add(5 * time.Second)
				for runs.Load() == 0 && time.Now().Before(deadline) {
					time.Sleep(50 * time.Millisecond)
				}
				So(runs.Load(), ShouldBeGreaterThan, 0)
				So(tr.Stop(ctx), ShouldBeNil)
				So(tr.Stop(ctx), ShouldBeNil)
			})
		})
	})
}

func TestCron_Retry(t *testing.T) {
	Convey("Given a trigger that retries transient failures", t, func() {
		tr := NewCron(WithRetry(2, time.Millisecond, func(err error) bool { return errors.Is(err, errTransient) }))
		ctx := context.Background()

		Convey("When the job recovers on the second attempt", func() {
			var calls atomic.Int32
			err := tr.RunNow(ctx, "flaky", func(context.Context) error {
				if calls.Add(1) < 2 {
					return errTransient
				}
				return nil
			})

			Convey("Then the run succeeds", func() {
				So(err, ShouldBeNil)
				So(calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the job keeps failing", func() {
			var calls atomic.Int32
			err := tr.RunNow(ctx, "broken", func(context.Context) error {
				calls.Add(1)
				return errTransient
			})

			Convey("Then it gives up after the retry budget", func() {
				So(errors.Is(err, errTransient), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 3)
			})
		})

		Convey("When the error is not retryable", func() {
			var calls atomic.Int32
			permanent := errors.New("bad input")
			err := tr.RunNow(ctx, "fatal", func(context.Context) error {
				calls.Add(1)
				return permanent
			})

			Convey("Then it runs once", func() {
				So(errors.Is(err, permanent), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 1)
			})
		})
	})
}
