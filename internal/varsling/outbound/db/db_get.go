package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
)

func (s *DB) GetSending(ctx context.Context, sendingID string) (_ *entity.Sending, err error) {
	ctx, span := s.startSpan(ctx, "GetSending")
	defer func() { s.endSpan(span, err) }()

	return s.one(ctx, `SELECT `+sendingColumns+` FROM ekstern_varsling WHERE sendingsid = $1`, sendingID)
}

// FindOpenBatch returns the batch still collecting notifications for the
// recipient. A batch whose window has passed at now is due and takes no more.
func (s *DB) FindOpenBatch(ctx context.Context, recipient string, now time.Time) (_ *entity.Sending, err error) {
	ctx, span := s.startSpan(ctx, "FindOpenBatch")
	defer func() { s.endSpan(span, err) }()

	return s.one(ctx, `
		SELECT `+sendingColumns+`
		FROM ekstern_varsling
		WHERE ident = $1
			AND erbatch
			AND NOT erutsattvarsel
			AND ferdigstilt IS NULL
			AND status = 'Venter'
			AND utsending > $2
		ORDER BY utsending DESC
		LIMIT 1`, recipient, now)
}

// FindSendingByNotification returns the sending holding the notification. With
// activeOnly the notification must still be active in that sending.
func (s *DB) FindSendingByNotification(ctx context.Context, notificationID string, activeOnly bool) (_ *entity.Sending, err error) {
	ctx, span := s.startSpan(ctx, "FindSendingByNotification")
	defer func() { s.endSpan(span, err) }()

	probe, err := membership(notificationID, activeOnly)
	if err != nil {
		return nil, err
	}

	return s.one(ctx, `
		SELECT `+sendingColumns+`
		FROM ekstern_varsling
		WHERE varsler @> $1::jsonb
		LIMIT 1`, probe)
}

func (s *DB) NotificationExists(ctx context.Context, notificationID string) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "NotificationExists")
	defer func() { s.endSpan(span, err) }()

	probe, err := membership(notificationID, false)
	if err != nil {
		return false, err
	}

	var exists bool
	err = s.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ekstern_varsling WHERE varsler @> $1::jsonb)`, probe,
	).Scan(&exists)
	if err != nil {
		return false, s.mapError(err)
	}

	return exists, nil
}

// NextInQueue returns up to limit waiting sendings that are due at now.
func (s *DB) NextInQueue(ctx context.Context, now time.Time, limit int) (_ []entity.Sending, err error) {
	ctx, span := s.startSpan(ctx, "NextInQueue")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT `+sendingColumns+`
		FROM ekstern_varsling
		WHERE status = 'Venter'
			AND (utsending IS NULL OR utsending <= $1)
		ORDER BY opprettet
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, s.mapError(err)
	}

	sendings, err := pgx.CollectRows(rows, scanSending)
	if err != nil {
		return nil, s.mapError(err)
	}

	return sendings, nil
}

func (s *DB) one(ctx context.Context, sql string, args ...any) (*entity.Sending, error) {
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, s.mapError(err)
	}

	sending, err := pgx.CollectExactlyOneRow(rows, scanSending)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &sending, nil
}
