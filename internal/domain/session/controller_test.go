package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	model "github.com/okian/rollbook/internal/domain/model"
	session "github.com/okian/rollbook/internal/domain/session"
	"github.com/okian/rollbook/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakePersister records committed batches and can be told to fail.
type fakePersister struct {
	mu      sync.Mutex
	calls   int
	classID int64
	date    string
	events  []model.DetectionEvent
	err     error
}

func (p *fakePersister) SaveSession(_ context.Context, classID int64, date string, events []model.DetectionEvent) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.classID = classID
	p.date = date
	p.events = events
	if p.err != nil {
		return 0, p.err
	}
	return len(events), nil
}

func (p *fakePersister) committed() []model.DetectionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events
}

func (p *fakePersister) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

const testFlush = 20 * time.Millisecond

// settle waits past a couple of flush intervals so pushed events drain.
func settle() { time.Sleep(3 * testFlush) }

func TestControllerLifecycle(t *testing.T) {
	Convey("Given an idle controller", t, func() {
		ctx := context.Background()
		p := &fakePersister{}
		c := session.New(p, session.WithFlushInterval(testFlush))

		Convey("When starting without a class", func() {
			_, err := c.Start(ctx, 0)

			Convey("Then it should be rejected", func() {
				So(err, ShouldEqual, session.ErrInvalidSession)
				So(c.State(), ShouldEqual, session.StateIdle)
			})
		})

		Convey("When starting with a class", func() {
			id, err := c.Start(ctx, 5)

			Convey("Then the controller becomes active with a fresh session id", func() {
				So(err, ShouldBeNil)
				So(id, ShouldNotBeEmpty)
				So(c.State(), ShouldEqual, session.StateActive)

				st := c.Status()
				So(st.ClassID, ShouldEqual, 5)
				So(st.StartedAt, ShouldNotBeNil)
				So(st.UniqueSubjects, ShouldEqual, 0)
			})

			Convey("And starting again while active is rejected", func() {
				_, err := c.Start(ctx, 6)
				So(err, ShouldEqual, session.ErrAlreadyActive)
			})

			Convey("And a second session gets a different id", func() {
				_, err := c.Stop(ctx)
				So(err, ShouldBeNil)
				id2, err := c.Start(ctx, 5)
				So(err, ShouldBeNil)
				So(id2, ShouldNotEqual, id)
				_, _ = c.Stop(ctx)
			})
		})

		Convey("When ingesting while idle", func() {
			_, err := c.Ingest(ctx, []model.Observation{{SubjectID: 1, Confidence: 0.9}})

			Convey("Then the batch is rejected, not buffered", func() {
				So(err, ShouldEqual, session.ErrNotActive)
			})
		})

		Convey("When marking manually while idle", func() {
			err := c.Manual(ctx, 1, "Ada")

			Convey("Then it should fail", func() {
				So(err, ShouldEqual, session.ErrNotActive)
			})
		})

		Convey("When stopping while idle", func() {
			_, err := c.Stop(ctx)

			Convey("Then it should fail", func() {
				So(err, ShouldEqual, session.ErrNotActive)
			})
		})
	})
}

func TestControllerCommit(t *testing.T) {
	Convey("Given an active session", t, func() {
		ctx := context.Background()
		p := &fakePersister{}
		c := session.New(p, session.WithFlushInterval(testFlush))
		_, err := c.Start(ctx, 3)
		So(err, ShouldBeNil)

		Convey("When a subject is seen at several confidences plus another subject", func() {
			_, err := c.Ingest(ctx, []model.Observation{
				{SubjectID: 1, DisplayName: "Ada", Confidence: 0.7},
				{SubjectID: 2, DisplayName: "Grace", Confidence: 0.8},
			})
			So(err, ShouldBeNil)
			settle()
			_, err = c.Ingest(ctx, []model.Observation{
				{SubjectID: 1, DisplayName: "Ada", Confidence: 0.9},
			})
			So(err, ShouldBeNil)
			settle()

			inserted, err := c.Stop(ctx)

			Convey("Then exactly one row per subject is committed", func() {
				So(err, ShouldBeNil)
				So(inserted, ShouldEqual, 2)
				So(p.classID, ShouldEqual, 3)
				So(p.date, ShouldEqual, time.Now().Format("2006-01-02"))

				byID := map[int64]model.DetectionEvent{}
				for _, ev := range p.committed() {
					byID[ev.SubjectID] = ev
				}
				So(len(byID), ShouldEqual, 2)
				So(byID[1].Confidence, ShouldEqual, 0.9)
				So(byID[2].Confidence, ShouldEqual, 0.8)
			})

			Convey("And the controller returns to a clean idle state", func() {
				So(c.State(), ShouldEqual, session.StateIdle)
				st := c.Status()
				So(st.SessionID, ShouldBeEmpty)
				So(st.UniqueSubjects, ShouldEqual, 0)
				So(st.TotalObservations, ShouldEqual, 0)
			})
		})

		Convey("When malformed observations are mixed into a batch", func() {
			accepted, err := c.Ingest(ctx, []model.Observation{
				{SubjectID: 0, Confidence: 0.9},
				{SubjectID: 4, Confidence: 0.6},
			})
			So(err, ShouldBeNil)
			settle()

			Convey("Then only the well-formed ones count", func() {
				So(accepted, ShouldEqual, 1)
				So(c.Status().UniqueSubjects, ShouldEqual, 1)
				_, _ = c.Stop(ctx)
			})
		})

		Convey("When a manual mark overrides an automatic detection", func() {
			_, err := c.Ingest(ctx, []model.Observation{{SubjectID: 9, DisplayName: "Alan", Confidence: 0.95}})
			So(err, ShouldBeNil)
			settle()
			So(c.Manual(ctx, 9, "Alan"), ShouldBeNil)
			settle()

			_, err = c.Stop(ctx)

			Convey("Then the committed record carries the manual source", func() {
				So(err, ShouldBeNil)
				events := p.committed()
				So(len(events), ShouldEqual, 1)
				So(events[0].Source, ShouldEqual, model.SourceManual)
			})
		})

		Convey("When stopping with nothing observed", func() {
			inserted, err := c.Stop(ctx)

			Convey("Then no persistence call is made", func() {
				So(err, ShouldBeNil)
				So(inserted, ShouldEqual, 0)
				So(p.callCount(), ShouldEqual, 0)
				So(c.State(), ShouldEqual, session.StateIdle)
			})
		})

		Convey("When the commit fails", func() {
			p.err = errors.New("disk on fire")
			_, err := c.Ingest(ctx, []model.Observation{{SubjectID: 1, Confidence: 0.5}})
			So(err, ShouldBeNil)
			settle()

			_, err = c.Stop(ctx)

			Convey("Then the error surfaces and the controller still resets", func() {
				So(err, ShouldNotBeNil)
				So(c.State(), ShouldEqual, session.StateIdle)

				_, startErr := c.Start(ctx, 3)
				So(startErr, ShouldBeNil)
				_, _ = c.Stop(ctx)
			})
		})

		Convey("When events are pushed but the throttle has not drained yet", func() {
			slow := session.New(p, session.WithFlushInterval(time.Hour))
			_, err := slow.Start(ctx, 3)
			So(err, ShouldBeNil)
			_, err = slow.Ingest(ctx, []model.Observation{{SubjectID: 8, Confidence: 0.5}})
			So(err, ShouldBeNil)

			inserted, err := slow.Stop(ctx)

			Convey("Then undrained events are discarded with the session", func() {
				So(err, ShouldBeNil)
				So(inserted, ShouldEqual, 0)
				_, _ = c.Stop(ctx)
			})
		})
	})
}

func TestControllerClock(t *testing.T) {
	Convey("Given an active session", t, func() {
		ctx := context.Background()
		c := session.New(&fakePersister{}, session.WithFlushInterval(testFlush))
		_, err := c.Start(ctx, 1)
		So(err, ShouldBeNil)

		Convey("When waiting past a tick", func() {
			time.Sleep(1100 * time.Millisecond)

			Convey("Then elapsed time advances", func() {
				So(c.Status().ElapsedSeconds, ShouldBeGreaterThanOrEqualTo, 1)
				_, _ = c.Stop(ctx)
			})
		})

		Convey("When the session stops", func() {
			_, err := c.Stop(ctx)
			So(err, ShouldBeNil)
			time.Sleep(1100 * time.Millisecond)

			Convey("Then the clock no longer ticks", func() {
				So(c.Status().ElapsedSeconds, ShouldEqual, 0)
			})
		})
	})
}
