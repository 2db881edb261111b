package watch

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/example/vigil/errors"
)

// watchColumns is the canonical column list shared by all SELECTs.
const watchColumns = `id, trigger_name, params, prompt_template, working_dir,
       status, interval_seconds, created_at, expires_at, last_checked_at, fired_at`

// Store handles persistence of watches. All mutations are single atomic
// statements; no multi-step transactions span callers.
type Store struct {
	db *sql.DB
}

// NewStore creates a new watch store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert creates a new watch record
func (s *Store) Insert(w *Watch) error {
	query := `
		INSERT INTO watches (
			id, trigger_name, params, prompt_template, working_dir,
			status, interval_seconds, created_at, expires_at,
			last_checked_at, fired_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	params, err := json.Marshal(w.Params)
	if err != nil {
		return errors.Wrapf(err, "failed to encode params for watch %s", w.ID)
	}

	var workingDir interface{}
	if w.WorkingDir != "" {
		workingDir = w.WorkingDir
	}

	var lastCheckedAt, firedAt interface{}
	if w.LastCheckedAt != nil {
		lastCheckedAt = w.LastCheckedAt.UTC().Format(time.RFC3339)
	}
	if w.FiredAt != nil {
		firedAt = w.FiredAt.UTC().Format(time.RFC3339)
	}

	_, err = s.db.Exec(query,
		w.ID,
		w.Trigger,
		string(params),
		w.PromptTemplate,
		workingDir,
		w.Status,
		w.IntervalSeconds,
		w.CreatedAt.UTC().Format(time.RFC3339),
		w.ExpiresAt.UTC().Format(time.RFC3339),
		lastCheckedAt,
		firedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to insert watch %s", w.ID)
	}

	return nil
}

// GetByID retrieves a watch by ID. Returns errors.ErrNotFound if no watch
// with that ID exists.
func (s *Store) GetByID(id string) (*Watch, error) {
	query := `SELECT ` + watchColumns + ` FROM watches WHERE id = ?`

	w, err := scanWatch(s.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("watch not found: %s", id)
		}
		return nil, errors.Wrapf(err, "failed to get watch %s", id)
	}

	return w, nil
}

// List returns watches ordered newest-first. statusFilter narrows to a single
// status; "all" or "" returns everything.
func (s *Store) List(statusFilter string) ([]*Watch, error) {
	query := `SELECT ` + watchColumns + ` FROM watches ORDER BY created_at DESC, id DESC`
	args := []interface{}{}

	if statusFilter != "" && statusFilter != "all" {
		query = `SELECT ` + watchColumns + ` FROM watches WHERE status = ? ORDER BY created_at DESC, id DESC`
		args = append(args, statusFilter)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list watches")
	}
	defer rows.Close()

	var watches []*Watch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan watch row")
		}
		watches = append(watches, w)
	}

	return watches, rows.Err()
}

// ListActive returns all active watches in creation order. This is the
// scheduler's per-tick working set.
func (s *Store) ListActive() ([]*Watch, error) {
	query := `SELECT ` + watchColumns + ` FROM watches WHERE status = ? ORDER BY created_at ASC, id ASC`

	rows, err := s.db.Query(query, StatusActive)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active watches")
	}
	defer rows.Close()

	var watches []*Watch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan watch row")
		}
		watches = append(watches, w)
	}

	return watches, rows.Err()
}

// UpdateStatus sets the status of a watch
func (s *Store) UpdateStatus(id string, status string) error {
	result, err := s.db.Exec(`UPDATE watches SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return errors.Wrapf(err, "failed to update status for watch %s", id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFoundError("watch not found: %s", id)
	}

	return nil
}

// UpdateLastChecked records a poll timestamp. The scheduler calls this before
// invoking the trigger, so a crash mid-poll does not cause a tight retry loop.
func (s *Store) UpdateLastChecked(id string, ts time.Time) error {
	result, err := s.db.Exec(
		`UPDATE watches SET last_checked_at = ? WHERE id = ?`,
		ts.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update last_checked_at for watch %s", id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFoundError("watch not found: %s", id)
	}

	return nil
}

// MarkFired atomically sets status=fired and fired_at in one conditional
// update. Only an active watch can fire; firing a watch in any other state
// returns ErrConflict.
func (s *Store) MarkFired(id string, ts time.Time) error {
	result, err := s.db.Exec(
		`UPDATE watches SET status = ?, fired_at = ? WHERE id = ? AND status = ?`,
		StatusFired, ts.UTC().Format(time.RFC3339), id, StatusActive,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to mark watch %s fired", id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		// Either missing or already terminal; distinguish for the caller
		if _, err := s.GetByID(id); err != nil {
			return err
		}
		return errors.Wrap(errors.ErrConflict, "watch is not active")
	}

	return nil
}

// Cancel atomically sets status=cancelled in one conditional update. Only an
// active watch can be cancelled; a watch already in a terminal state returns
// ErrConflict. Conditional for the same reason MarkFired is: the daemon may
// fire or expire the watch from another process between a caller's read and
// this write, and a terminal state must never be overwritten.
func (s *Store) Cancel(id string) error {
	result, err := s.db.Exec(
		`UPDATE watches SET status = ? WHERE id = ? AND status = ?`,
		StatusCancelled, id, StatusActive,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to cancel watch %s", id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		// Either missing or already terminal; distinguish for the caller
		w, err := s.GetByID(id)
		if err != nil {
			return err
		}
		return errors.Wrapf(errors.ErrConflict, "cannot cancel watch %s: status is %s", id, w.Status)
	}

	return nil
}

// ExpireActivePastDeadline expires all active watches whose deadline has
// passed, as a single bulk conditional update so it cannot race a concurrent
// MarkFired. Returns the number of watches expired.
func (s *Store) ExpireActivePastDeadline(now time.Time) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE watches SET status = ? WHERE status = ? AND expires_at < ?`,
		StatusExpired, StatusActive, now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to expire watches")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	return rows, nil
}

// Delete removes a watch record. Returns whether a row was deleted.
func (s *Store) Delete(id string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM watches WHERE id = ?`, id)
	if err != nil {
		return false, errors.Wrapf(err, "failed to delete watch %s", id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}

	return rows > 0, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanWatch.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanWatch(row scanner) (*Watch, error) {
	var w Watch
	var params, createdAt, expiresAt string
	var workingDir, lastCheckedAt, firedAt sql.NullString

	err := row.Scan(
		&w.ID,
		&w.Trigger,
		&params,
		&w.PromptTemplate,
		&workingDir,
		&w.Status,
		&w.IntervalSeconds,
		&createdAt,
		&expiresAt,
		&lastCheckedAt,
		&firedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(params), &w.Params); err != nil {
		return nil, errors.Wrapf(err, "failed to decode params for watch %s", w.ID)
	}

	// Parse timestamps (return error if parsing fails - indicates data corruption or schema mismatch)
	w.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for watch %s", w.ID)
	}

	w.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse expires_at for watch %s", w.ID)
	}

	if workingDir.Valid {
		w.WorkingDir = workingDir.String
	}
	if lastCheckedAt.Valid {
		t, err := time.Parse(time.RFC3339, lastCheckedAt.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse last_checked_at for watch %s", w.ID)
		}
		w.LastCheckedAt = &t
	}
	if firedAt.Valid {
		t, err := time.Parse(time.RFC3339, firedAt.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse fired_at for watch %s", w.ID)
		}
		w.FiredAt = &t
	}

	return &w, nil
}
