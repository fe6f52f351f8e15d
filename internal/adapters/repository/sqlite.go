package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/okian/rollbook/internal/domain/model"
	"github.com/okian/rollbook/pkg/metrics"
)

// Default history pagination bounds.
const (
	defaultPageSizeMin     = 10
	defaultPageSizeMax     = 100
	defaultPageSizeDefault = 20
)

var dateRe = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}$`)

// schemaSQL is the canonical attendance schema. Legacy table layouts are an
// external mapping concern; the store assumes exactly this shape.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS classes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    class_name TEXT NOT NULL,
    section TEXT,
    subject TEXT,
    schedule_info TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS students (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    roll_no TEXT,
    email TEXT
);
CREATE TABLE IF NOT EXISTS enrollments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    class_id INTEGER NOT NULL,
    student_id INTEGER NOT NULL,
    enrolled_at TEXT DEFAULT (datetime('now')),
    UNIQUE(class_id, student_id)
);
CREATE TABLE IF NOT EXISTS attendance (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    student_id INTEGER NOT NULL,
    class_id INTEGER NOT NULL,
    date TEXT NOT NULL,
    time TEXT,
    status TEXT NOT NULL,
    recognized_name TEXT,
    source TEXT DEFAULT 'manual'
);
CREATE INDEX IF NOT EXISTS idx_attendance_class_date ON attendance(class_id, date);
CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance(date);
CREATE INDEX IF NOT EXISTS idx_enrollments_class ON enrollments(class_id, student_id);
`

// SQLite persists attendance state in a SQLite database.
type SQLite struct {
	db *sql.DB

	pageSizeMin     int
	pageSizeMax     int
	pageSizeDefault int
}

// Open opens a SQLite attendance store and bootstraps the schema.
func Open(path string, opts ...Option) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	s := &SQLite{
		db:              db,
		pageSizeMin:     defaultPageSizeMin,
		pageSizeMax:     defaultPageSizeMax,
		pageSizeDefault: defaultPageSizeDefault,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the SQLite handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveBatch inserts the whole batch in one transaction. Every item is first
// checked against enrollment membership; the first missing enrollment
// aborts the transaction with no rows inserted.
func (s *SQLite) SaveBatch(ctx context.Context, batch model.WriteBatch) (int, error) {
	if batch.ClassID <= 0 {
		return 0, fmt.Errorf("%w: class id must be positive", ErrInvalidBatch)
	}
	if !dateRe.MatchString(batch.Date) {
		return 0, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidBatch)
	}
	if len(batch.Items) == 0 {
		return 0, fmt.Errorf("%w: items must include at least one record", ErrInvalidBatch)
	}
	source := model.SourceManual
	if batch.Source == model.SourceFacial {
		source = model.SourceFacial
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	count := 0
	for _, item := range batch.Items {
		if item.SubjectID <= 0 {
			return 0, fmt.Errorf("%w: student id must be positive", ErrInvalidBatch)
		}
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM enrollments WHERE class_id = ? AND student_id = ?`,
			batch.ClassID, item.SubjectID,
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			metrics.RecordEnrollmentViolation()
			return 0, &NotEnrolledError{ClassID: batch.ClassID, SubjectID: item.SubjectID}
		}
		if err != nil {
			return 0, fmt.Errorf("%w: check enrollment: %v", ErrStorage, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attendance (student_id, class_id, date, time, status, recognized_name, source)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.SubjectID, batch.ClassID, batch.Date, item.Time, string(item.Status), item.RecognizedName, string(source),
		); err != nil {
			return 0, fmt.Errorf("%w: insert attendance: %v", ErrStorage, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrStorage, err)
	}
	metrics.RecordRowsInserted(count)
	return count, nil
}

// History runs the filtered, paginated read over committed records joined
// with subject and class identity. Page sizes are clamped to the configured
// bounds; a page past the end yields an empty page, not an error.
func (s *SQLite) History(ctx context.Context, filter model.HistoryFilter) (model.HistoryPage, error) {
	start := time.Now()
	defer func() {
		metrics.RecordHistoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize == 0 {
		pageSize = s.pageSizeDefault
	}
	if pageSize < s.pageSizeMin {
		pageSize = s.pageSizeMin
	}
	if pageSize > s.pageSizeMax {
		pageSize = s.pageSizeMax
	}

	var where []string
	var args []any
	if filter.ClassID > 0 {
		where = append(where, "a.class_id = ?")
		args = append(args, filter.ClassID)
	}
	if filter.StartDate != "" {
		where = append(where, "date(a.date) >= date(?)")
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		where = append(where, "date(a.date) <= date(?)")
		args = append(args, filter.EndDate)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		where = append(where, "(s.name LIKE ? OR s.roll_no LIKE ?)")
		pattern := "%" + q + "%"
		args = append(args, pattern, pattern)
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countSQL := fmt.Sprintf(`
SELECT COUNT(*)
FROM attendance a
JOIN students s ON s.id = a.student_id
JOIN classes c ON c.id = a.class_id
%s`, whereSQL)
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return model.HistoryPage{}, fmt.Errorf("%w: count history: %v", ErrStorage, err)
	}

	rowsSQL := fmt.Sprintf(`
SELECT a.id, a.date, a.time, a.status, a.recognized_name, a.source,
       s.id, s.name, s.roll_no,
       c.id, c.class_name, c.section
FROM attendance a
JOIN students s ON s.id = a.student_id
JOIN classes c ON c.id = a.class_id
%s
ORDER BY date(a.date) DESC, a.time DESC, a.id DESC
LIMIT ? OFFSET ?`, whereSQL)
	rows, err := s.db.QueryContext(ctx, rowsSQL, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return model.HistoryPage{}, fmt.Errorf("%w: query history: %v", ErrStorage, err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]model.AttendanceRecord, 0, pageSize)
	for rows.Next() {
		var (
			rec         model.AttendanceRecord
			recTime     sql.NullString
			recognized  sql.NullString
			rollNo      sql.NullString
			section     sql.NullString
			status, src string
		)
		if err := rows.Scan(
			&rec.ID, &rec.Date, &recTime, &status, &recognized, &src,
			&rec.StudentID, &rec.StudentName, &rollNo,
			&rec.ClassID, &rec.ClassName, &section,
		); err != nil {
			return model.HistoryPage{}, fmt.Errorf("%w: scan history row: %v", ErrStorage, err)
		}
		rec.Status = model.Status(status)
		rec.Source = model.Source(src)
		rec.Time = nullable(recTime)
		rec.RecognizedName = nullable(recognized)
		rec.RollNo = nullable(rollNo)
		rec.Section = nullable(section)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return model.HistoryPage{}, fmt.Errorf("%w: iterate history rows: %v", ErrStorage, err)
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	metrics.RecordHistoryQuery()
	return model.HistoryPage{
		Records:    records,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// IsEnrolled reports whether the (class, subject) membership exists.
func (s *SQLite) IsEnrolled(ctx context.Context, classID, subjectID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM enrollments WHERE class_id = ? AND student_id = ?`,
		classID, subjectID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: check enrollment: %v", ErrStorage, err)
	}
	return true, nil
}

// ListClasses returns all roster targets ordered by name.
func (s *SQLite) ListClasses(ctx context.Context) ([]model.Class, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, class_name, section, subject FROM classes ORDER BY class_name COLLATE NOCASE ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list classes: %v", ErrStorage, err)
	}
	defer func() { _ = rows.Close() }()

	var classes []model.Class
	for rows.Next() {
		var (
			cls              model.Class
			section, subject sql.NullString
		)
		if err := rows.Scan(&cls.ID, &cls.Name, &section, &subject); err != nil {
			return nil, fmt.Errorf("%w: scan class: %v", ErrStorage, err)
		}
		cls.Section = nullable(section)
		cls.Subject = nullable(subject)
		classes = append(classes, cls)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate classes: %v", ErrStorage, err)
	}
	return classes, nil
}

// ListClassStudents returns a class and its enrolled students ordered by name.
func (s *SQLite) ListClassStudents(ctx context.Context, classID int64) (model.Class, []model.Student, error) {
	var (
		cls              model.Class
		section, subject sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, class_name, section, subject FROM classes WHERE id = ?`, classID,
	).Scan(&cls.ID, &cls.Name, &section, &subject)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Class{}, nil, ErrClassNotFound
	}
	if err != nil {
		return model.Class{}, nil, fmt.Errorf("%w: load class: %v", ErrStorage, err)
	}
	cls.Section = nullable(section)
	cls.Subject = nullable(subject)

	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.name, s.roll_no, s.email
		 FROM students s
		 JOIN enrollments e ON e.student_id = s.id
		 WHERE e.class_id = ?
		 ORDER BY s.name COLLATE NOCASE ASC`, classID)
	if err != nil {
		return model.Class{}, nil, fmt.Errorf("%w: list students: %v", ErrStorage, err)
	}
	defer func() { _ = rows.Close() }()

	var students []model.Student
	for rows.Next() {
		var (
			st            model.Student
			rollNo, email sql.NullString
		)
		if err := rows.Scan(&st.ID, &st.Name, &rollNo, &email); err != nil {
			return model.Class{}, nil, fmt.Errorf("%w: scan student: %v", ErrStorage, err)
		}
		st.RollNo = nullable(rollNo)
		st.Email = nullable(email)
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return model.Class{}, nil, fmt.Errorf("%w: iterate students: %v", ErrStorage, err)
	}
	return cls, students, nil
}

// AddClass inserts a roster target. Roster ownership sits with the class
// administration collaborator; this surface exists for bootstrap tooling and
// tests.
func (s *SQLite) AddClass(ctx context.Context, name string, section, subject *string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO classes (class_name, section, subject) VALUES (?, ?, ?)`,
		name, section, subject)
	if err != nil {
		return 0, fmt.Errorf("%w: add class: %v", ErrStorage, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: class id: %v", ErrStorage, err)
	}
	return id, nil
}

// AddStudent inserts a subject.
func (s *SQLite) AddStudent(ctx context.Context, name string, rollNo, email *string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO students (name, roll_no, email) VALUES (?, ?, ?)`,
		name, rollNo, email)
	if err != nil {
		return 0, fmt.Errorf("%w: add student: %v", ErrStorage, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: student id: %v", ErrStorage, err)
	}
	return id, nil
}

// Enroll records a (class, student) membership.
func (s *SQLite) Enroll(ctx context.Context, classID, studentID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO enrollments (class_id, student_id) VALUES (?, ?)`,
		classID, studentID); err != nil {
		return fmt.Errorf("%w: enroll: %v", ErrStorage, err)
	}
	return nil
}

func nullable(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
