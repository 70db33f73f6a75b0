package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sjawhar/callwatch/internal/report"
	"github.com/sjawhar/callwatch/internal/transcript"
)

const (
	CallActive = "active"
	CallEnded  = "ended"
)

type Call struct {
	ID           string     `json:"id"`
	CallerID     string     `json:"caller_id"`
	Source       string     `json:"source"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Status       string     `json:"status"`
	EndReason    string     `json:"end_reason"`
	OverallScore *float64   `json:"overall_score,omitempty"`
}

// CallDetail is a call with its transcript and latest report.
type CallDetail struct {
	Call
	Transcript []transcript.Line     `json:"transcript"`
	Report     *report.QualityReport `json:"report,omitempty"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "callwatch.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS calls (
			id TEXT PRIMARY KEY,
			caller_id TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL,
			end_reason TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		return fmt.Errorf("create calls table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcript_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			call_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			FOREIGN KEY(call_id) REFERENCES calls(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create transcript_lines table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS reports (
			call_id TEXT PRIMARY KEY,
			raw_text TEXT NOT NULL,
			overall_score REAL,
			received_at TEXT NOT NULL,
			FOREIGN KEY(call_id) REFERENCES calls(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create reports table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_calls_started_at ON calls(started_at)"); err != nil {
		return fmt.Errorf("create calls index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_lines_call_id ON transcript_lines(call_id, id)"); err != nil {
		return fmt.Errorf("create transcript_lines index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) CreateCall(id, callerID, source string, startedAt time.Time) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("call id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO calls(id, caller_id, source, started_at, status) VALUES(?, ?, ?, ?, ?)`,
		id,
		callerID,
		source,
		startedAt.UTC().Format(time.RFC3339Nano),
		CallActive,
	)
	if err != nil {
		return fmt.Errorf("create call %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) EndCall(id string, endedAt time.Time, reason string) error {
	res, err := s.db.Exec(
		`UPDATE calls SET ended_at = ?, status = ?, end_reason = ? WHERE id = ?`,
		endedAt.UTC().Format(time.RFC3339Nano),
		CallEnded,
		reason,
		id,
	)
	if err != nil {
		return fmt.Errorf("end call %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end call rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) AppendLine(callID string, line transcript.Line) error {
	_, err := s.db.Exec(
		`INSERT INTO transcript_lines(call_id, role, text, timestamp) VALUES(?, ?, ?, ?)`,
		callID,
		string(line.Role),
		strings.TrimSpace(line.Text),
		line.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append line for call %s: %w", callID, err)
	}
	return nil
}

// SaveReport stores the latest report for a call, replacing any earlier one.
func (s *SQLiteStore) SaveReport(callID string, r *report.QualityReport, receivedAt time.Time) error {
	if r == nil {
		return errors.New("report is required")
	}

	var score sql.NullFloat64
	if v, ok := r.OverallScore(); ok {
		score = sql.NullFloat64{Float64: v, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO reports(call_id, raw_text, overall_score, received_at) VALUES(?, ?, ?, ?)
		 ON CONFLICT(call_id) DO UPDATE SET
			raw_text = excluded.raw_text,
			overall_score = excluded.overall_score,
			received_at = excluded.received_at`,
		callID,
		r.RawText,
		score,
		receivedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save report for call %s: %w", callID, err)
	}
	return nil
}

const callColumns = `c.id, c.caller_id, c.source, c.started_at, c.ended_at, c.status, c.end_reason, r.overall_score`

func (s *SQLiteStore) GetCallsByDate(date string) ([]Call, error) {
	rows, err := s.db.Query(
		`SELECT `+callColumns+`
		 FROM calls c LEFT JOIN reports r ON r.call_id = c.id
		 WHERE substr(c.started_at, 1, 10) = ?
		 ORDER BY c.started_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query calls by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	calls := make([]Call, 0, 16)
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls rows: %w", err)
	}

	return calls, nil
}

func (s *SQLiteStore) GetDates() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT substr(started_at, 1, 10) AS date FROM calls ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

func (s *SQLiteStore) GetCall(id string) (CallDetail, error) {
	row := s.db.QueryRow(
		`SELECT `+callColumns+` FROM calls c LEFT JOIN reports r ON r.call_id = c.id WHERE c.id = ?`,
		id,
	)
	call, err := scanCall(row)
	if err != nil {
		return CallDetail{}, fmt.Errorf("query call %s: %w", id, err)
	}

	lines, err := s.GetLines(id)
	if err != nil {
		return CallDetail{}, err
	}
	rep, err := s.GetReport(id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return CallDetail{}, err
	}

	return CallDetail{Call: call, Transcript: lines, Report: rep}, nil
}

func (s *SQLiteStore) GetLines(callID string) ([]transcript.Line, error) {
	rows, err := s.db.Query(
		`SELECT role, text, timestamp FROM transcript_lines WHERE call_id = ? ORDER BY id ASC`,
		callID,
	)
	if err != nil {
		return nil, fmt.Errorf("query lines for call %s: %w", callID, err)
	}
	defer func() { _ = rows.Close() }()

	lines := make([]transcript.Line, 0, 32)
	for rows.Next() {
		var line transcript.Line
		var role, ts string
		if err := rows.Scan(&role, &line.Text, &ts); err != nil {
			return nil, fmt.Errorf("scan line for call %s: %w", callID, err)
		}
		line.Role = transcript.Role(role)

		parsedTS, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse line timestamp for call %s: %w", callID, err)
		}
		line.Timestamp = parsedTS

		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line rows for call %s: %w", callID, err)
	}

	return lines, nil
}

// GetReport rebuilds the stored report from its raw text. Normalization is
// deterministic, so the result matches what was shown live.
func (s *SQLiteStore) GetReport(callID string) (*report.QualityReport, error) {
	var raw string
	err := s.db.QueryRow(`SELECT raw_text FROM reports WHERE call_id = ?`, callID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("query report for call %s: %w", callID, err)
	}
	return report.Normalize(raw), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(row scanner) (Call, error) {
	var call Call
	var startedAt string
	var endedAt sql.NullString
	var score sql.NullFloat64
	if err := row.Scan(&call.ID, &call.CallerID, &call.Source, &startedAt, &endedAt, &call.Status, &call.EndReason, &score); err != nil {
		return Call{}, fmt.Errorf("scan call: %w", err)
	}

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Call{}, fmt.Errorf("parse started_at: %w", err)
	}
	call.StartedAt = parsedStart

	if endedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Call{}, fmt.Errorf("parse ended_at: %w", err)
		}
		call.EndedAt = &parsedEnd
	}
	if score.Valid {
		v := score.Float64
		call.OverallScore = &v
	}

	return call, nil
}
