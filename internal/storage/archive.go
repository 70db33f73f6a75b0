package storage

import (
	"fmt"
	"time"

	"github.com/sjawhar/callwatch/internal/report"
	"github.com/sjawhar/callwatch/internal/transcript"
)

// Archive persists calls to sqlite and mirrors transcripts and reports into
// the daily markdown journal. The journal is optional.
type Archive struct {
	store  *SQLiteStore
	writer *Writer
}

func NewArchive(store *SQLiteStore, writer *Writer) *Archive {
	return &Archive{store: store, writer: writer}
}

func (a *Archive) CreateCall(id, callerID, source string, startedAt time.Time) error {
	return a.store.CreateCall(id, callerID, source, startedAt)
}

func (a *Archive) EndCall(id string, endedAt time.Time, reason string) error {
	return a.store.EndCall(id, endedAt, reason)
}

func (a *Archive) AppendLine(callID string, line transcript.Line) error {
	if err := a.store.AppendLine(callID, line); err != nil {
		return err
	}
	if a.writer != nil {
		if err := a.writer.AppendLine(line); err != nil {
			return fmt.Errorf("journal line: %w", err)
		}
	}
	return nil
}

func (a *Archive) SaveReport(callID string, r *report.QualityReport, receivedAt time.Time) error {
	if err := a.store.SaveReport(callID, r, receivedAt); err != nil {
		return err
	}
	if a.writer != nil {
		if err := a.writer.AppendReport(callID, r, receivedAt); err != nil {
			return fmt.Errorf("journal report: %w", err)
		}
	}
	return nil
}
