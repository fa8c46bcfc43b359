package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ClosedTicket is the archived record of a closed ticket. The live registry
// only holds open tickets, so the archive is the durable history of what the
// bot has handled.
type ClosedTicket struct {
	ID             int64
	TicketID       string
	ChannelID      string
	OwnerUserID    string
	TicketType     string
	CreatedAt      time.Time
	ClosedAt       time.Time
	ClosedBy       string
	CloseReason    string
	MessageCount   int
	TranscriptPath *string
}

// ArchiveRepository persists closed-ticket records.
type ArchiveRepository interface {
	Insert(ctx context.Context, record *ClosedTicket) error
	ListRecent(ctx context.Context, limit int) ([]ClosedTicket, error)
}

type archiveRepository struct {
	pool *pgxpool.Pool
}

// NewArchiveRepository instantiates the repository.
func NewArchiveRepository(pool *pgxpool.Pool) ArchiveRepository {
	return &archiveRepository{pool: pool}
}

func (r *archiveRepository) Insert(ctx context.Context, record *ClosedTicket) error {
	const query = `
        INSERT INTO closed_tickets (ticket_id, channel_id, owner_user_id, ticket_type, created_at, closed_at, closed_by, close_reason, message_count, transcript_path)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		record.TicketID,
		record.ChannelID,
		record.OwnerUserID,
		record.TicketType,
		record.CreatedAt,
		record.ClosedAt,
		record.ClosedBy,
		record.CloseReason,
		record.MessageCount,
		record.TranscriptPath,
	).Scan(&record.ID)
}

func (r *archiveRepository) ListRecent(ctx context.Context, limit int) ([]ClosedTicket, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
        SELECT id, ticket_id, channel_id, owner_user_id, ticket_type, created_at, closed_at, closed_by, close_reason, message_count, transcript_path
        FROM closed_tickets ORDER BY closed_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ClosedTicket
	for rows.Next() {
		var record ClosedTicket
		if err := rows.Scan(
			&record.ID,
			&record.TicketID,
			&record.ChannelID,
			&record.OwnerUserID,
			&record.TicketType,
			&record.CreatedAt,
			&record.ClosedAt,
			&record.ClosedBy,
			&record.CloseReason,
			&record.MessageCount,
			&record.TranscriptPath,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
