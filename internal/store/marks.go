package store

import (
	"context"
	"fmt"
)

// PassedMark is one passed_marks row.
type PassedMark struct {
	FilePath string
	MarkName string
	Seq      int64
}

// PassMark records markName as passed in filePath.
// Uses ON CONFLICT DO NOTHING: passing an already passed mark is a no-op and
// keeps its original seq.
func (s *Store) PassMark(ctx context.Context, filePath, markName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO passed_marks (file_path, mark_name, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM passed_marks))
		ON CONFLICT(file_path, mark_name) DO NOTHING
	`, filePath, markName)
	if err != nil {
		return fmt.Errorf("pass mark: %w", err)
	}
	return nil
}

// IsPassed reports whether markName was passed in filePath.
func (s *Store) IsPassed(ctx context.Context, filePath, markName string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM passed_marks WHERE file_path = ? AND mark_name = ?
	`, filePath, markName).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("is passed: %w", err)
	}
	return n > 0, nil
}

// PassedMarks returns passed marks in pass order. An empty filePath returns
// the marks of every file.
//
// Returns an empty slice (not nil) if nothing was passed.
func (s *Store) PassedMarks(ctx context.Context, filePath string) ([]PassedMark, error) {
	query := `SELECT file_path, mark_name, seq FROM passed_marks`
	var args []any
	if filePath != "" {
		query += ` WHERE file_path = ?`
		args = append(args, filePath)
	}
	query += ` ORDER BY seq ASC, file_path COLLATE BINARY ASC, mark_name COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query passed marks: %w", err)
	}
	defer rows.Close()

	marks := []PassedMark{}
	for rows.Next() {
		var m PassedMark
		if err := rows.Scan(&m.FilePath, &m.MarkName, &m.Seq); err != nil {
			return nil, fmt.Errorf("scan passed mark: %w", err)
		}
		marks = append(marks, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passed marks: %w", err)
	}
	return marks, nil
}

// ResetMarks deletes passed marks for filePath, or all marks when filePath
// is empty. Returns the number of rows removed.
func (s *Store) ResetMarks(ctx context.Context, filePath string) (int64, error) {
	query := `DELETE FROM passed_marks`
	var args []any
	if filePath != "" {
		query += ` WHERE file_path = ?`
		args = append(args, filePath)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset marks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset marks: %w", err)
	}
	return n, nil
}
