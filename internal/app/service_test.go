package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	repository "github.com/okian/rollbook/internal/adapters/repository"
	app "github.com/okian/rollbook/internal/app"
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

func ptr(s string) *string { return &s }

// startService opens a seeded temp store and a started service around it.
func startService(t *testing.T, opts ...app.Option) (*app.Service, *repository.SQLite, int64, []int64) {
	t.Helper()
	ctx := context.Background()

	store, err := repository.Open(filepath.Join(t.TempDir(), "attendance.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	classID, err := store.AddClass(ctx, "Physics 101", ptr("A"), nil)
	if err != nil {
		t.Fatalf("add class: %v", err)
	}
	var students []int64
	for _, name := range []string{"Ada Lovelace", "Grace Hopper"} {
		id, err := store.AddStudent(ctx, name, nil, nil)
		if err != nil {
			t.Fatalf("add student: %v", err)
		}
		if err := store.Enroll(ctx, classID, id); err != nil {
			t.Fatalf("enroll: %v", err)
		}
		students = append(students, id)
	}

	svc := app.New(append([]app.Option{
		app.WithStore(store),
		app.WithFlushInterval(20 * time.Millisecond),
	}, opts...)...)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc, store, classID, students
}

func TestServiceSessionFlow(t *testing.T) {
	Convey("Given a started service with a seeded roster", t, func() {
		ctx := context.Background()
		svc, store, classID, students := startService(t)

		Convey("When a full session runs end to end", func() {
			id, err := svc.StartSession(ctx, classID)
			So(err, ShouldBeNil)
			So(id, ShouldNotBeEmpty)

			_, err = svc.IngestObservations(ctx, []model.Observation{
				{SubjectID: students[0], DisplayName: "Ada Lovelace", Confidence: 0.7},
				{SubjectID: students[1], DisplayName: "Grace Hopper", Confidence: 0.8},
			})
			So(err, ShouldBeNil)
			time.Sleep(60 * time.Millisecond)

			_, err = svc.IngestObservations(ctx, []model.Observation{
				{SubjectID: students[0], DisplayName: "Ada Lovelace", Confidence: 0.9},
			})
			So(err, ShouldBeNil)
			time.Sleep(60 * time.Millisecond)

			st := svc.SessionStatus()
			So(st.State, ShouldEqual, session.StateActive)
			So(st.UniqueSubjects, ShouldEqual, 2)
			So(st.TotalObservations, ShouldEqual, 3)

			inserted, err := svc.StopSession(ctx)

			Convey("Then one facial row per subject is committed", func() {
				So(err, ShouldBeNil)
				So(inserted, ShouldEqual, 2)

				page, err := store.History(ctx, model.HistoryFilter{ClassID: classID})
				So(err, ShouldBeNil)
				So(page.Total, ShouldEqual, 2)
				for _, rec := range page.Records {
					So(rec.Source, ShouldEqual, model.SourceFacial)
					So(rec.Status, ShouldEqual, model.StatusPresent)
					So(rec.Time, ShouldNotBeNil)
					So(rec.Date, ShouldEqual, time.Now().Format("2006-01-02"))
				}
			})
		})

		Convey("When a manual mark joins the session", func() {
			_, err := svc.StartSession(ctx, classID)
			So(err, ShouldBeNil)

			So(svc.MarkManual(ctx, students[0], "Ada Lovelace"), ShouldBeNil)
			time.Sleep(60 * time.Millisecond)

			inserted, err := svc.StopSession(ctx)

			Convey("Then the mark is committed with a recognized name", func() {
				So(err, ShouldBeNil)
				So(inserted, ShouldEqual, 1)

				page, err := store.History(ctx, model.HistoryFilter{ClassID: classID})
				So(err, ShouldBeNil)
				So(*page.Records[0].RecognizedName, ShouldEqual, "Ada Lovelace")
			})
		})

		Convey("When an unenrolled subject is detected during the session", func() {
			outsider, err := store.AddStudent(ctx, "Katherine Johnson", nil, nil)
			So(err, ShouldBeNil)

			_, err = svc.StartSession(ctx, classID)
			So(err, ShouldBeNil)
			_, err = svc.IngestObservations(ctx, []model.Observation{
				{SubjectID: students[0], Confidence: 0.9},
				{SubjectID: outsider, Confidence: 0.9},
			})
			So(err, ShouldBeNil)
			time.Sleep(60 * time.Millisecond)

			_, err = svc.StopSession(ctx)

			Convey("Then the whole commit is aborted and nothing is stored", func() {
				So(errors.Is(err, repository.ErrNotEnrolled), ShouldBeTrue)

				page, qerr := store.History(ctx, model.HistoryFilter{ClassID: classID})
				So(qerr, ShouldBeNil)
				So(page.Total, ShouldEqual, 0)

				Convey("And the controller is ready for a fresh session", func() {
					So(svc.SessionStatus().State, ShouldEqual, session.StateIdle)
					_, err := svc.StartSession(ctx, classID)
					So(err, ShouldBeNil)
					_, _ = svc.StopSession(ctx)
				})
			})
		})
	})
}

func TestServiceAttendance(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()

		Convey("When saving a batch under the collapse-late policy", func() {
			svc, store, classID, students := startService(t)

			inserted, err := svc.SaveAttendance(ctx, model.WriteBatch{
				ClassID: classID,
				Date:    "2026-03-09",
				Items: []model.WriteItem{
					{SubjectID: students[0], Status: "late"},
					{SubjectID: students[1], Status: "absent"},
				},
			})

			Convey("Then late collapses to present and the source defaults to manual", func() {
				So(err, ShouldBeNil)
				So(inserted, ShouldEqual, 2)

				page, err := store.History(ctx, model.HistoryFilter{ClassID: classID})
				So(err, ShouldBeNil)
				statuses := map[int64]model.Status{}
				for _, rec := range page.Records {
					statuses[rec.StudentID] = rec.Status
					So(rec.Source, ShouldEqual, model.SourceManual)
				}
				So(statuses[students[0]], ShouldEqual, model.StatusPresent)
				So(statuses[students[1]], ShouldEqual, model.StatusAbsent)
			})
		})

		Convey("When saving a batch under the keep-late policy", func() {
			svc, store, classID, students := startService(t, app.WithStatusPolicy(model.StatusPolicyKeepLate))

			_, err := svc.SaveAttendance(ctx, model.WriteBatch{
				ClassID: classID,
				Date:    "2026-03-09",
				Items:   []model.WriteItem{{SubjectID: students[0], Status: "late"}},
			})

			Convey("Then late survives", func() {
				So(err, ShouldBeNil)
				page, err := store.History(ctx, model.HistoryFilter{ClassID: classID})
				So(err, ShouldBeNil)
				So(page.Records[0].Status, ShouldEqual, model.StatusLate)
			})
		})

		Convey("When reading history through the service", func() {
			svc, _, classID, students := startService(t)

			_, err := svc.SaveAttendance(ctx, model.WriteBatch{
				ClassID: classID,
				Date:    "2026-03-09",
				Items:   []model.WriteItem{{SubjectID: students[0], Status: "present"}},
			})
			So(err, ShouldBeNil)

			page, err := svc.AttendanceHistory(ctx, model.HistoryFilter{ClassID: classID})

			Convey("Then the committed rows come back with identity joined in", func() {
				So(err, ShouldBeNil)
				So(page.Total, ShouldEqual, 1)
				So(page.Records[0].StudentName, ShouldEqual, "Ada Lovelace")
				So(page.Records[0].ClassName, ShouldEqual, "Physics 101")
			})
		})
	})
}

func TestServiceRoster(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc, _, classID, _ := startService(t)

		Convey("When listing classes", func() {
			classes, err := svc.ListClasses(ctx)

			Convey("Then the seeded class is present", func() {
				So(err, ShouldBeNil)
				So(len(classes), ShouldEqual, 1)
				So(classes[0].ID, ShouldEqual, classID)
			})
		})

		Convey("When listing a class's students", func() {
			cls, students, err := svc.ClassStudents(ctx, classID)

			Convey("Then enrolled students are returned", func() {
				So(err, ShouldBeNil)
				So(cls.Name, ShouldEqual, "Physics 101")
				So(len(students), ShouldEqual, 2)
			})
		})
	})
}

func TestServiceStats(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc, _, classID, _ := startService(t)

		Convey("When no session is running", func() {
			stats := svc.GetStats()

			Convey("Then the state reads idle", func() {
				So(stats["started"], ShouldEqual, true)
				So(stats["sessionState"], ShouldEqual, "idle")
			})
		})

		Convey("When a session is active", func() {
			_, err := svc.StartSession(ctx, classID)
			So(err, ShouldBeNil)
			stats := svc.GetStats()

			Convey("Then the session shows up in the stats", func() {
				So(stats["sessionState"], ShouldEqual, "active")
				So(stats["classID"], ShouldEqual, classID)
				_, _ = svc.StopSession(ctx)
			})
		})
	})
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()

		Convey("When starting twice", func() {
			svc, _, _, _ := startService(t)

			Convey("Then the second start is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})

		Convey("When stopping twice", func() {
			svc, _, _, _ := startService(t)
			svc.Stop()

			Convey("Then the second stop is a no-op", func() {
				So(svc.Stop, ShouldNotPanic)
			})
		})

		Convey("When session operations run before start", func() {
			svc := app.New()

			Convey("Then they are rejected instead of panicking", func() {
				_, err := svc.StartSession(ctx, 1)
				So(errors.Is(err, app.ErrNotStarted), ShouldBeTrue)

				_, err = svc.StopSession(ctx)
				So(errors.Is(err, app.ErrNotStarted), ShouldBeTrue)

				So(errors.Is(svc.MarkManual(ctx, 1, "Ada"), app.ErrNotStarted), ShouldBeTrue)

				_, err = svc.IngestObservations(ctx, []model.Observation{{SubjectID: 1}})
				So(errors.Is(err, app.ErrNotStarted), ShouldBeTrue)

				So(svc.SessionStatus().State, ShouldEqual, session.StateIdle)
			})
		})
	})
}
