package db

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
)

// CreateSending inserts a new sending. A second open batch for the same
// recipient, or a reused sending id, yields goerror.ErrConflict.
func (s *DB) CreateSending(ctx context.Context, in entity.Sending) (err error) {
	ctx, span := s.startSpan(ctx, "CreateSending")
	defer func() { s.endSpan(span, err) }()

	varsler, err := json.Marshal(in.Notifications)
	if err != nil {
		return err
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO ekstern_varsling (
			sendingsid,
			ident,
			erbatch,
			erutsattvarsel,
			varsler,
			utsending,
			ferdigstilt,
			status,
			opprettet,
			versjon
		) VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, 1)`,
		in.ID,
		in.Recipient,
		in.IsBatch,
		in.IsDeferred,
		varsler,
		in.NotBefore,
		in.CompletedAt,
		in.Status.String(),
		in.CreatedAt,
	)

	return s.mapError(err)
}
