package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/goerror"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/instrument"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const sendingColumns = `
	sendingsid,
	ident,
	erbatch,
	erutsattvarsel,
	varsler,
	utsending,
	ferdigstilt,
	status,
	bestilling,
	eksternstatus,
	opprettet,
	versjon`

type DB struct {
	conn *pgxpool.Pool
	ins  instrument.Instrumentation
}

func NewDB(conn *pgxpool.Pool, ins instrument.Instrumentation) *DB {
	return &DB{
		conn: conn,
		ins:  ins,
	}
}

// - 23505 unique violation → goerror.ErrConflict (duplicate id or a second open batch)
// - 40001 serialization_failure → retryable error
// - 40P01 deadlock_detected → retryable error
func (s *DB) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return goerror.ErrConflict
		}
	}

	return err
}

func (s *DB) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("varsling.outbound.db").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Ping reports whether the database answers.
func (s *DB) Ping(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "Ping")
	defer func() { s.endSpan(span, err) }()

	return s.conn.Ping(ctx)
}

func scanSending(row pgx.CollectableRow) (entity.Sending, error) {
	var (
		out        entity.Sending
		varsler    []byte
		bestilling []byte
		status     []byte
		sendingSt  string
	)

	err := row.Scan(
		&out.ID,
		&out.Recipient,
		&out.IsBatch,
		&out.IsDeferred,
		&varsler,
		&out.NotBefore,
		&out.CompletedAt,
		&sendingSt,
		&bestilling,
		&status,
		&out.CreatedAt,
		&out.Version,
	)
	if err != nil {
		return entity.Sending{}, err
	}

	out.Status = entity.SendingStatus(sendingSt)

	if err := json.Unmarshal(varsler, &out.Notifications); err != nil {
		return entity.Sending{}, fmt.Errorf("decode varsler of %s: %w", out.ID, err)
	}
	if len(bestilling) > 0 {
		out.Order = &entity.Order{}
		if err := json.Unmarshal(bestilling, out.Order); err != nil {
			return entity.Sending{}, fmt.Errorf("decode bestilling of %s: %w", out.ID, err)
		}
	}
	if len(status) > 0 {
		out.StatusOverview = &entity.StatusOverview{}
		if err := json.Unmarshal(status, out.StatusOverview); err != nil {
			return entity.Sending{}, fmt.Errorf("decode eksternstatus of %s: %w", out.ID, err)
		}
	}

	return out, nil
}

// membership builds the containment parameter for the GIN indexed varsler column.
func membership(notificationID string, activeOnly bool) ([]byte, error) {
	probe := map[string]any{"varselId": notificationID}
	if activeOnly {
		probe["aktiv"] = true
	}
	return json.Marshal([]map[string]any{probe})
}
