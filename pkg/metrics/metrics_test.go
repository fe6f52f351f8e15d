package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the package-level metrics helpers", t, func() {
		Convey("When recording ingestion metrics", func() {
			So(func() {
				RecordObservationsIngested(5)
				RecordObservationMalformed()
				UpdatePendingObservations(3)
				UpdatePendingObservations(0)
			}, ShouldNotPanic)
		})

		Convey("When recording resolver metrics", func() {
			So(func() {
				RecordBufferFlush(12)
				UpdateUniqueSubjects(4)
			}, ShouldNotPanic)
		})

		Convey("When recording session metrics", func() {
			So(func() {
				RecordSessionStarted()
				RecordSessionCommitted(7)
				RecordSessionCommitFailure()
				ObserveSessionDuration(42)
			}, ShouldNotPanic)
		})

		Convey("When recording storage metrics", func() {
			So(func() {
				RecordRowsInserted(3)
				RecordEnrollmentViolation()
				RecordHistoryQuery()
				RecordHistoryQueryLatency(1.5)
			}, ShouldNotPanic)
		})

		Convey("When recording HTTP metrics", func() {
			So(func() {
				RecordHTTPRequest("attendance", "GET", "200")
				RecordHTTPRequestDuration("attendance", "GET", "200", 2.5)
				RecordErrorByComponent("api", "conflict")
			}, ShouldNotPanic)
		})

		Convey("When updating system metrics", func() {
			So(func() {
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(10)
			}, ShouldNotPanic)
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given the global registry", t, func() {
		Convey("When gathering after recording", func() {
			RecordSessionStarted()
			families, err := GetRegistry().Gather()

			Convey("Then the attendance metrics are exported", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)

				found := false
				for _, fam := range families {
					if fam.GetName() == "rollbook_attendance_sessions_started_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}
