// Package memory provides an in-memory store.Store implementation for tests.
// Error injection fields let tests simulate backend failures.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kozaktomas/rollcall/internal/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	students   map[int64]*store.Student
	samples    map[int64]*store.FaceSample
	records    map[int64]*store.AttendanceRecord
	pending    map[int64]*store.PendingReview
	timetable  map[int64]*store.TimetableEntry
	sessions   map[string]*store.Session
	settings   *store.Settings
	nextID     int64
	recordKeys map[string]bool // student|day|subject uniqueness

	// AllSamplesCalls counts snapshot loads, used by cache tests
	AllSamplesCalls int

	// Error injection
	CreateStudentError   error
	GetStudentError      error
	ListStudentsError    error
	DeleteStudentError   error
	AddSampleError       error
	ListSamplesError     error
	AllSamplesError      error
	DeleteSamplesError   error
	AddRecordError       error
	IsMarkedError        error
	ListRecordsError     error
	CreatePendingError   error
	GetPendingError      error
	ListPendingError     error
	DeletePendingError   error
	AddEntryError        error
	ListEntriesError     error
	GetSettingsError     error
	SaveSettingsError    error
	SaveSessionError     error
	GetSessionError      error
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		students:   make(map[int64]*store.Student),
		samples:    make(map[int64]*store.FaceSample),
		records:    make(map[int64]*store.AttendanceRecord),
		pending:    make(map[int64]*store.PendingReview),
		timetable:  make(map[int64]*store.TimetableEntry),
		sessions:   make(map[string]*store.Session),
		recordKeys: make(map[string]bool),
	}
}

func (m *Store) nextIDLocked() int64 {
	m.nextID++
	return m.nextID
}

func recordKey(studentID int64, day, subject string) string {
	return strconv.FormatInt(studentID, 10) + "|" + day + "|" + subject
}

// CreateStudent stores a new student and fills in its ID.
func (m *Store) CreateStudent(ctx context.Context, student *store.Student) error {
	if m.CreateStudentError != nil {
		return m.CreateStudentError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.students {
		if existing.RollNumber == student.RollNumber {
			return store.ErrRollNumberTaken
		}
	}

	student.ID = m.nextIDLocked()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = time.Now()
	}
	clone := *student
	m.students[student.ID] = &clone
	return nil
}

// GetStudent retrieves a student by ID, returns nil if not found.
func (m *Store) GetStudent(ctx context.Context, id int64) (*store.Student, error) {
	if m.GetStudentError != nil {
		return nil, m.GetStudentError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.students[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, nil
}

// GetStudentByRoll retrieves a student by roll number, returns nil if not found.
func (m *Store) GetStudentByRoll(ctx context.Context, rollNumber string) (*store.Student, error) {
	if m.GetStudentError != nil {
		return nil, m.GetStudentError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.students {
		if s.RollNumber == rollNumber {
			clone := *s
			return &clone, nil
		}
	}
	return nil, nil
}

// ListStudents returns all students ordered by name.
func (m *Store) ListStudents(ctx context.Context) ([]store.Student, error) {
	if m.ListStudentsError != nil {
		return nil, m.ListStudentsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	students := make([]store.Student, 0, len(m.students))
	for _, s := range m.students {
		students = append(students, *s)
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].Name != students[j].Name {
			return students[i].Name < students[j].Name
		}
		return students[i].ID < students[j].ID
	})
	return students, nil
}

// CountStudents returns the number of enrolled students.
func (m *Store) CountStudents(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.students), nil
}

// DeleteStudent removes a student and cascades samples, records and pending reviews.
func (m *Store) DeleteStudent(ctx context.Context, id int64) error {
	if m.DeleteStudentError != nil {
		return m.DeleteStudentError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.students, id)
	for sid, sample := range m.samples {
		if sample.StudentID == id {
			delete(m.samples, sid)
		}
	}
	for rid, rec := range m.records {
		if rec.StudentID == id {
			delete(m.recordKeys, recordKey(rec.StudentID, rec.Day, rec.Subject))
			delete(m.records, rid)
		}
	}
	for pid, p := range m.pending {
		if p.StudentID == id {
			delete(m.pending, pid)
		}
	}
	return nil
}

// AddSample stores a new face sample and fills in its ID.
func (m *Store) AddSample(ctx context.Context, sample *store.FaceSample) error {
	if m.AddSampleError != nil {
		return m.AddSampleError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sample.ID = m.nextIDLocked()
	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = time.Now()
	}
	clone := *sample
	clone.Embedding = append([]float32(nil), sample.Embedding...)
	m.samples[sample.ID] = &clone
	return nil
}

// ListSamples returns a student's samples in creation order.
func (m *Store) ListSamples(ctx context.Context, studentID int64) ([]store.FaceSample, error) {
	if m.ListSamplesError != nil {
		return nil, m.ListSamplesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var samples []store.FaceSample
	for _, s := range m.samples {
		if s.StudentID == studentID {
			samples = append(samples, *s)
		}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].ID < samples[j].ID })
	return samples, nil
}

// AllSamples returns every sample ordered by student ID, then creation order.
func (m *Store) AllSamples(ctx context.Context) ([]store.FaceSample, error) {
	m.mu.Lock()
	m.AllSamplesCalls++
	m.mu.Unlock()

	if m.AllSamplesError != nil {
		return nil, m.AllSamplesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	samples := make([]store.FaceSample, 0, len(m.samples))
	for _, s := range m.samples {
		samples = append(samples, *s)
	}
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].StudentID != samples[j].StudentID {
			return samples[i].StudentID < samples[j].StudentID
		}
		return samples[i].ID < samples[j].ID
	})
	return samples, nil
}

// CountSamplesBySource returns sample counts grouped by provenance.
func (m *Store) CountSamplesBySource(ctx context.Context) (map[store.SampleSource]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[store.SampleSource]int)
	for _, s := range m.samples {
		counts[s.Source]++
	}
	return counts, nil
}

// DeleteSamples removes samples by ID.
func (m *Store) DeleteSamples(ctx context.Context, ids []int64) error {
	if m.DeleteSamplesError != nil {
		return m.DeleteSamplesError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.samples, id)
	}
	return nil
}

// AddRecord stores a new attendance record, enforcing (student, day, subject)
// uniqueness like the SQL backends do.
func (m *Store) AddRecord(ctx context.Context, record *store.AttendanceRecord) error {
	if m.AddRecordError != nil {
		return m.AddRecordError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := recordKey(record.StudentID, record.Day, record.Subject)
	if m.recordKeys[key] {
		return store.ErrDuplicateAttendance
	}

	record.ID = m.nextIDLocked()
	clone := *record
	m.records[record.ID] = &clone
	m.recordKeys[key] = true
	return nil
}

// IsMarked checks whether a record exists for (student, day, subject).
func (m *Store) IsMarked(ctx context.Context, studentID int64, day, subject string) (bool, error) {
	if m.IsMarkedError != nil {
		return false, m.IsMarkedError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recordKeys[recordKey(studentID, day, subject)], nil
}

// ListRecords returns attendance rows for a day joined with student info.
func (m *Store) ListRecords(ctx context.Context, day, className string, limit int) ([]store.ReportRow, error) {
	if m.ListRecordsError != nil {
		return nil, m.ListRecordsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []store.ReportRow
	for _, rec := range m.records {
		if rec.Day != day {
			continue
		}
		student := m.students[rec.StudentID]
		if student == nil {
			continue
		}
		if className != "" && student.ClassName != className {
			continue
		}
		rows = append(rows, store.ReportRow{
			AttendanceRecord: *rec,
			StudentName:      student.Name,
			RollNumber:       student.RollNumber,
			ClassName:        student.ClassName,
			Department:       student.Department,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// CountRecordsForDay returns the number of records for a day.
func (m *Store) CountRecordsForDay(ctx context.Context, day string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, rec := range m.records {
		if rec.Day == day {
			count++
		}
	}
	return count, nil
}

// RecentConfidences returns the confidence values of the most recent records.
func (m *Store) RecentConfidences(ctx context.Context, limit int) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := make([]*store.AttendanceRecord, 0, len(m.records))
	for _, rec := range m.records {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID > recs[j].ID })

	var confidences []float64
	for _, rec := range recs {
		confidences = append(confidences, rec.Confidence)
		if len(confidences) >= limit {
			break
		}
	}
	return confidences, nil
}

// CreatePending stores a new pending review and fills in its ID.
func (m *Store) CreatePending(ctx context.Context, pending *store.PendingReview) error {
	if m.CreatePendingError != nil {
		return m.CreatePendingError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	pending.ID = m.nextIDLocked()
	if pending.CreatedAt.IsZero() {
		pending.CreatedAt = time.Now()
	}
	clone := *pending
	clone.Embedding = append([]float32(nil), pending.Embedding...)
	m.pending[pending.ID] = &clone
	return nil
}

// GetPending retrieves a pending review by ID, returns nil if not found.
func (m *Store) GetPending(ctx context.Context, id int64) (*store.PendingReview, error) {
	if m.GetPendingError != nil {
		return nil, m.GetPendingError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.pending[id]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, nil
}

// ListPending returns pending reviews joined with student info, oldest first.
func (m *Store) ListPending(ctx context.Context, limit int) ([]store.PendingWithStudent, error) {
	if m.ListPendingError != nil {
		return nil, m.ListPendingError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []store.PendingWithStudent
	for _, p := range m.pending {
		row := store.PendingWithStudent{PendingReview: *p}
		if student := m.students[p.StudentID]; student != nil {
			row.StudentName = student.Name
			row.RollNumber = student.RollNumber
			row.ClassName = student.ClassName
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// DeletePending removes a pending review.
func (m *Store) DeletePending(ctx context.Context, id int64) error {
	if m.DeletePendingError != nil {
		return m.DeletePendingError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, id)
	return nil
}

// CountPending returns the number of pending reviews.
func (m *Store) CountPending(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pending), nil
}

// AddEntry stores a new timetable entry and fills in its ID.
func (m *Store) AddEntry(ctx context.Context, entry *store.TimetableEntry) error {
	if m.AddEntryError != nil {
		return m.AddEntryError
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.ID = m.nextIDLocked()
	clone := *entry
	m.timetable[entry.ID] = &clone
	return nil
}

// ListEntries returns all entries ordered by weekday, start time, class.
func (m *Store) ListEntries(ctx context.Context) ([]store.TimetableEntry, error) {
	if m.ListEntriesError != nil {
		return nil, m.ListEntriesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]store.TimetableEntry, 0, len(m.timetable))
	for _, e := range m.timetable {
		entries = append(entries, *e)
	}
	sortEntries(entries)
	return entries, nil
}

// EntriesForWeekday returns entries for one weekday ordered by start time, class.
func (m *Store) EntriesForWeekday(ctx context.Context, weekday int) ([]store.TimetableEntry, error) {
	if m.ListEntriesError != nil {
		return nil, m.ListEntriesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []store.TimetableEntry
	for _, e := range m.timetable {
		if e.Weekday == weekday {
			entries = append(entries, *e)
		}
	}
	sortEntries(entries)
	return entries, nil
}

func sortEntries(entries []store.TimetableEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Weekday != entries[j].Weekday {
			return entries[i].Weekday < entries[j].Weekday
		}
		if entries[i].Start != entries[j].Start {
			return entries[i].Start < entries[j].Start
		}
		if entries[i].ClassName != entries[j].ClassName {
			return entries[i].ClassName < entries[j].ClassName
		}
		return entries[i].ID < entries[j].ID
	})
}

// DeleteEntry removes a timetable entry.
func (m *Store) DeleteEntry(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.timetable, id)
	return nil
}

// GetSettings returns the stored settings, or defaults when never saved.
func (m *Store) GetSettings(ctx context.Context) (store.Settings, error) {
	if m.GetSettingsError != nil {
		return store.Settings{}, m.GetSettingsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return store.DefaultSettings(), nil
	}
	return *m.settings, nil
}

// SaveSettings validates and stores the settings.
func (m *Store) SaveSettings(ctx context.Context, settings store.Settings) error {
	if m.SaveSettingsError != nil {
		return m.SaveSettingsError
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	settings.UpdatedAt = time.Now()
	m.settings = &settings
	return nil
}

// SaveSession inserts or refreshes a session.
func (m *Store) SaveSession(ctx context.Context, session *store.Session) error {
	if m.SaveSessionError != nil {
		return m.SaveSessionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *session
	m.sessions[session.ID] = &clone
	return nil
}

// GetSession retrieves a session by ID, returns nil if missing or expired.
func (m *Store) GetSession(ctx context.Context, id string) (*store.Session, error) {
	if m.GetSessionError != nil {
		return nil, m.GetSessionError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok || time.Now().After(s.ExpiresAt) {
		return nil, nil
	}
	clone := *s
	return &clone, nil
}

// DeleteSession removes a session.
func (m *Store) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// DeleteExpiredSessions removes expired sessions and returns the count.
func (m *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	now := time.Now()
	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, id)
			count++
		}
	}
	return count, nil
}

// Close is a no-op for the in-memory store.
func (m *Store) Close() error {
	return nil
}

// Verify interface compliance.
var _ store.Store = (*Store)(nil)
