package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx,
// letting repositories run against the pool or inside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles all repositories behind one handle. WithinTx yields a Store
// bound to a single transaction so that assignment resolution, state
// transition and outbox append commit together or not at all.
type Store interface {
	Tickets() TicketRepository
	Categories() CategoryRepository
	EscalationRules() EscalationRuleRepository
	Escalations() EscalationRepository
	Statuses() StatusRepository
	Outbox() OutboxRepository
	Comments() CommentRepository
	History() TicketHistoryRepository
	Users() UserRepository

	WithinTx(ctx context.Context, fn func(Store) error) error
}

type pgStore struct {
	q    Querier
	pool *pgxpool.Pool
}

// NewStore builds the pgx-backed Store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{q: pool, pool: pool}
}

func (s *pgStore) Tickets() TicketRepository      { return &ticketRepository{q: s.q} }
func (s *pgStore) Categories() CategoryRepository { return &categoryRepository{q: s.q} }
func (s *pgStore) EscalationRules() EscalationRuleRepository {
	return &escalationRuleRepository{q: s.q}
}
func (s *pgStore) Escalations() EscalationRepository { return &escalationRepository{q: s.q} }
func (s *pgStore) Statuses() StatusRepository        { return &statusRepository{q: s.q} }
func (s *pgStore) Outbox() OutboxRepository          { return &outboxRepository{q: s.q} }
func (s *pgStore) Comments() CommentRepository       { return &commentRepository{q: s.q} }
func (s *pgStore) History() TicketHistoryRepository  { return &ticketHistoryRepository{q: s.q} }
func (s *pgStore) Users() UserRepository             { return &userRepository{q: s.q} }

func (s *pgStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		// already inside a transaction; reuse it
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&pgStore{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
