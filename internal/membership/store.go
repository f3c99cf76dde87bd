package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger errors.
var (
	ErrAlreadyMember = errors.New("user is already a member of this project")
	ErrNotMember     = errors.New("user is not a member of this project")
	ErrNotLoggedIn   = errors.New("user is not logged in to this project")
	ErrRoleInvalid   = errors.New("role must be one of: manager, developer, tester")
)

const uniqueViolation = "23505"

const membershipColumns = `id, project_id, user_id, role, contribution_minutes, login_at, logout_at, created_at`

// Store is the membership ledger: who belongs to which project, with what
// role, and the per-membership session time tracking.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time // injectable clock for testing
}

// NewStore creates a membership store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

func scanMembership(row pgx.Row) (*Membership, error) {
	m := &Membership{}
	err := row.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.ContributionMinutes,
		&m.LoginAt, &m.LogoutAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// AddMember attaches a user to a project with the given role. A second call
// for the same (project, user) pair fails with ErrAlreadyMember.
func (s *Store) AddMember(ctx context.Context, projectID, userID string, role Role) (*Membership, error) {
	if !ValidRole(role) {
		return nil, ErrRoleInvalid
	}

	query := fmt.Sprintf(`INSERT INTO memberships (project_id, user_id, role)
		 VALUES ($1, $2, $3)
		 RETURNING %s`, membershipColumns)

	m, err := scanMembership(s.pool.QueryRow(ctx, query, projectID, userID, role))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("adding member: %w", err)
	}
	return m, nil
}

// Get retrieves the membership for a (project, user) pair, or ErrNotMember.
func (s *Store) Get(ctx context.Context, projectID, userID string) (*Membership, error) {
	query := fmt.Sprintf(`SELECT %s FROM memberships
		 WHERE project_id = $1 AND user_id = $2`, membershipColumns)

	m, err := scanMembership(s.pool.QueryRow(ctx, query, projectID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotMember
		}
		return nil, fmt.Errorf("getting membership: %w", err)
	}
	return m, nil
}

// FindRole looks up the actor's role in a project. The second return value
// is false when no membership exists. No side effects.
func (s *Store) FindRole(ctx context.Context, projectID, userID string) (Role, bool, error) {
	var role Role
	err := s.pool.QueryRow(ctx,
		`SELECT role FROM memberships WHERE project_id = $1 AND user_id = $2`,
		projectID, userID,
	).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("finding role: %w", err)
	}
	return role, true, nil
}

// RecordLogin starts a project session: sets login_at to now and clears
// logout_at. Calling while already logged in overwrites login_at, restarting
// the session clock; time since the previous login is discarded.
func (s *Store) RecordLogin(ctx context.Context, projectID, userID string) (*Membership, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning login tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx,
		`SELECT id FROM memberships WHERE project_id = $1 AND user_id = $2 FOR UPDATE`,
		projectID, userID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotMember
		}
		return nil, fmt.Errorf("locking membership: %w", err)
	}

	query := fmt.Sprintf(`UPDATE memberships
		 SET login_at = $2, logout_at = NULL
		 WHERE id = $1
		 RETURNING %s`, membershipColumns)

	m, err := scanMembership(tx.QueryRow(ctx, query, id, s.now()))
	if err != nil {
		return nil, fmt.Errorf("recording login: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing login: %w", err)
	}
	return m, nil
}

// RecordLogout ends a project session: accrues the elapsed whole minutes
// into contribution_minutes, stamps logout_at and clears login_at. Fails
// with ErrNotLoggedIn when no session is active. The accrued minutes are
// returned alongside the updated membership.
func (s *Store) RecordLogout(ctx context.Context, projectID, userID string) (*Membership, int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("beginning logout tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id string
	var loginAt *time.Time
	err = tx.QueryRow(ctx,
		`SELECT id, login_at FROM memberships WHERE project_id = $1 AND user_id = $2 FOR UPDATE`,
		projectID, userID,
	).Scan(&id, &loginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrNotMember
		}
		return nil, 0, fmt.Errorf("locking membership: %w", err)
	}
	if loginAt == nil {
		return nil, 0, ErrNotLoggedIn
	}

	now := s.now()
	minutes := MinutesBetween(*loginAt, now)

	query := fmt.Sprintf(`UPDATE memberships
		 SET contribution_minutes = contribution_minutes + $2,
		     logout_at = $3,
		     login_at = NULL
		 WHERE id = $1
		 RETURNING %s`, membershipColumns)

	m, err := scanMembership(tx.QueryRow(ctx, query, id, minutes, now))
	if err != nil {
		return nil, 0, fmt.Errorf("recording logout: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("committing logout: %w", err)
	}
	return m, minutes, nil
}

// Remove detaches a user from a project.
func (s *Store) Remove(ctx context.Context, projectID, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM memberships WHERE project_id = $1 AND user_id = $2`,
		projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("removing member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotMember
	}
	return nil
}

// ListByProject returns all memberships of a project ordered by join time.
func (s *Store) ListByProject(ctx context.Context, projectID string) ([]*Membership, error) {
	query := fmt.Sprintf(`SELECT %s FROM memberships
		 WHERE project_id = $1 ORDER BY created_at`, membershipColumns)
	return s.list(ctx, query, projectID)
}

func (s *Store) list(ctx context.Context, query string, arg any) ([]*Membership, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("listing memberships: %w", err)
	}
	defer rows.Close()

	var members []*Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning membership row: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// MinutesBetween returns the whole minutes elapsed from loginAt to now,
// truncated. Never negative.
func MinutesBetween(loginAt, now time.Time) int64 {
	d := now.Sub(loginAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Minute)
}
