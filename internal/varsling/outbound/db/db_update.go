package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/goerror"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
)

// AppendNotification adds the notification to the end of an open batch.
// A batch that has been completed or become due in the meantime yields
// goerror.ErrConflict.
func (s *DB) AppendNotification(ctx context.Context, sendingID string, n entity.Notification, now time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "AppendNotification")
	defer func() { s.endSpan(span, err) }()

	item, err := json.Marshal([]entity.Notification{n})
	if err != nil {
		return err
	}

	tag, err := s.conn.Exec(ctx, `
		UPDATE ekstern_varsling
		SET varsler = varsler || $2::jsonb, versjon = versjon + 1
		WHERE sendingsid = $1
			AND ferdigstilt IS NULL
			AND status = 'Venter'
			AND utsending > $3`, sendingID, item, now)

	return s.affected(tag, err)
}

// UpdateNotifications replaces the notification list if the sending is still
// at version.
func (s *DB) UpdateNotifications(ctx context.Context, sendingID string, version int64, list []entity.Notification) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateNotifications")
	defer func() { s.endSpan(span, err) }()

	varsler, err := json.Marshal(list)
	if err != nil {
		return err
	}

	tag, err := s.conn.Exec(ctx, `
		UPDATE ekstern_varsling
		SET varsler = $3::jsonb, versjon = versjon + 1
		WHERE sendingsid = $1 AND versjon = $2`, sendingID, version, varsler)

	return s.affected(tag, err)
}

// UpdateStatusOverview replaces the status overview if the sending is still at version.
func (s *DB) UpdateStatusOverview(ctx context.Context, sendingID string, version int64, overview entity.StatusOverview) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateStatusOverview")
	defer func() { s.endSpan(span, err) }()

	status, err := json.Marshal(overview)
	if err != nil {
		return err
	}

	tag, err := s.conn.Exec(ctx, `
		UPDATE ekstern_varsling
		SET eksternstatus = $3::jsonb, versjon = versjon + 1
		WHERE sendingsid = $1 AND versjon = $2`, sendingID, version, status)

	return s.affected(tag, err)
}

// MarkSent records the dispatch outcome of a waiting sending that is still at
// version.
func (s *DB) MarkSent(ctx context.Context, sendingID string, version int64, completedAt time.Time, order entity.Order) (err error) {
	ctx, span := s.startSpan(ctx, "MarkSent")
	defer func() { s.endSpan(span, err) }()

	bestilling, err := json.Marshal(order)
	if err != nil {
		return err
	}

	tag, err := s.conn.Exec(ctx, `
		UPDATE ekstern_varsling
		SET status = $3, ferdigstilt = $4, bestilling = $5::jsonb, versjon = versjon + 1
		WHERE sendingsid = $1 AND versjon = $2 AND status = 'Venter'`,
		sendingID, version, entity.SendingStatusSent.String(), completedAt, bestilling)

	return s.affected(tag, err)
}

func (s *DB) MarkCancelled(ctx context.Context, sendingID string, version int64, completedAt time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "MarkCancelled")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `
		UPDATE ekstern_varsling
		SET status = $3, ferdigstilt = $4, versjon = versjon + 1
		WHERE sendingsid = $1 AND versjon = $2 AND status = 'Venter'`,
		sendingID, version, entity.SendingStatusCancelled.String(), completedAt)

	return s.affected(tag, err)
}

// affected turns a write that matched no row into goerror.ErrConflict.
func (s *DB) affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrConflict
	}
	return nil
}
