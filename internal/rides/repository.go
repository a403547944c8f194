package rides

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medtransit/nemt-scheduler/pkg/database"
	"github.com/medtransit/nemt-scheduler/pkg/models"
)

// Repository handles database operations for rides
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new rides repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const rideColumns = `
	id, trip_code, member_id, provider_id, driver_id,
	status, super_admin_status, provider_status,
	pickup_address, dropoff_address, pharmacy_stop,
	scheduled_pickup_time, appointment_time, notes,
	payment_method, payment_status, cost, provider_fee, driver_earnings,
	insurance_claim_amount, is_return_trip, return_pickup_tba,
	return_pickup_time, decline_reason, cancel_reason,
	assigned_at, started_at, picked_up_at, completed_at, cancelled_at,
	recurrence_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRide(row rowScanner) (*models.Ride, error) {
	ride := &models.Ride{}
	err := row.Scan(
		&ride.ID,
		&ride.TripCode,
		&ride.MemberID,
		&ride.ProviderID,
		&ride.DriverID,
		&ride.Status,
		&ride.SuperAdminStatus,
		&ride.ProviderStatus,
		&ride.PickupAddress,
		&ride.DropoffAddress,
		&ride.PharmacyStop,
		&ride.ScheduledPickupTime,
		&ride.AppointmentTime,
		&ride.Notes,
		&ride.PaymentMethod,
		&ride.PaymentStatus,
		&ride.Cost,
		&ride.ProviderFee,
		&ride.DriverEarnings,
		&ride.InsuranceClaimAmount,
		&ride.IsReturnTrip,
		&ride.ReturnPickupTBA,
		&ride.ReturnPickupTime,
		&ride.DeclineReason,
		&ride.CancelReason,
		&ride.AssignedAt,
		&ride.StartedAt,
		&ride.PickedUpAt,
		&ride.CompletedAt,
		&ride.CancelledAt,
		&ride.RecurrenceID,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return ride, nil
}

// CreateRide inserts a single ride with a fresh pending/pending/pending triad.
func (r *Repository) CreateRide(ctx context.Context, ride *models.Ride) error {
	query := `
		INSERT INTO rides (
			id, trip_code, member_id, status, super_admin_status, provider_status,
			pickup_address, dropoff_address, pharmacy_stop,
			scheduled_pickup_time, appointment_time, notes,
			payment_method, payment_status, cost,
			is_return_trip, return_pickup_tba, return_pickup_time, recurrence_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		ride.ID,
		ride.TripCode,
		ride.MemberID,
		ride.Status,
		ride.SuperAdminStatus,
		ride.ProviderStatus,
		ride.PickupAddress,
		ride.DropoffAddress,
		ride.PharmacyStop,
		ride.ScheduledPickupTime,
		ride.AppointmentTime,
		ride.Notes,
		ride.PaymentMethod,
		ride.PaymentStatus,
		ride.Cost,
		ride.IsReturnTrip,
		ride.ReturnPickupTBA,
		ride.ReturnPickupTime,
		ride.RecurrenceID,
	).Scan(&ride.CreatedAt, &ride.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}

	return nil
}

// CreateRides inserts a recurrence descriptor and its expanded instances in
// one transaction. Either everything lands or nothing does.
func (r *Repository) CreateRides(ctx context.Context, rec *models.Recurrence, rides []*models.Ride) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var recurrenceID *uuid.UUID
	if rec != nil {
		id := uuid.New()
		recurrenceID = &id

		weekdays := make([]int32, 0, len(rec.Weekdays))
		for _, w := range rec.Weekdays {
			weekdays = append(weekdays, int32(w))
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO ride_recurrences (id, frequency, weekdays, start_date, end_date, total_days)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, rec.Frequency, weekdays, rec.StartDate, rec.EndDate, rec.TotalDays)
		if err != nil {
			return fmt.Errorf("failed to create recurrence: %w", err)
		}
	}

	for _, ride := range rides {
		ride.RecurrenceID = recurrenceID
		err := tx.QueryRow(ctx, `
			INSERT INTO rides (
				id, trip_code, member_id, status, super_admin_status, provider_status,
				pickup_address, dropoff_address, pharmacy_stop,
				scheduled_pickup_time, appointment_time, notes,
				payment_method, payment_status, cost,
				is_return_trip, return_pickup_tba, return_pickup_time, recurrence_id
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			RETURNING created_at, updated_at
		`,
			ride.ID,
			ride.TripCode,
			ride.MemberID,
			ride.Status,
			ride.SuperAdminStatus,
			ride.ProviderStatus,
			ride.PickupAddress,
			ride.DropoffAddress,
			ride.PharmacyStop,
			ride.ScheduledPickupTime,
			ride.AppointmentTime,
			ride.Notes,
			ride.PaymentMethod,
			ride.PaymentStatus,
			ride.Cost,
			ride.IsReturnTrip,
			ride.ReturnPickupTBA,
			ride.ReturnPickupTime,
			ride.RecurrenceID,
		).Scan(&ride.CreatedAt, &ride.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create ride instance: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit ride batch: %w", err)
	}

	return nil
}

// GetRideByID retrieves a ride by ID
func (r *Repository) GetRideByID(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := database.RetryableQueryRow(ctx, r.db, query, []interface{}{id}, func(row pgx.Row) (*models.Ride, error) {
		return scanRide(row)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRideNotFound
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}

	return ride, nil
}

// ListRides retrieves rides matching the filter, newest first, with total count.
func (r *Repository) ListRides(ctx context.Context, filter *models.RideFilter, limit, offset int) ([]*models.Ride, int64, error) {
	baseQuery := `SELECT ` + rideColumns + ` FROM rides WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM rides WHERE 1=1`

	args := []interface{}{}
	argCount := 1

	addFilter := func(clause string, value interface{}) {
		baseQuery += fmt.Sprintf(" AND "+clause, argCount)
		countQuery += fmt.Sprintf(" AND "+clause, argCount)
		args = append(args, value)
		argCount++
	}

	if filter != nil {
		if filter.Status != nil {
			addFilter("status = $%d", *filter.Status)
		}
		if filter.SuperAdminStatus != nil {
			addFilter("super_admin_status = $%d", *filter.SuperAdminStatus)
		}
		if filter.ProviderStatus != nil {
			addFilter("provider_status = $%d", *filter.ProviderStatus)
		}
		if filter.MemberID != nil {
			addFilter("member_id = $%d", *filter.MemberID)
		}
		if filter.ProviderID != nil {
			addFilter("provider_id = $%d", *filter.ProviderID)
		}
		if filter.DriverID != nil {
			addFilter("driver_id = $%d", *filter.DriverID)
		}
		if filter.From != nil {
			addFilter("scheduled_pickup_time >= $%d", *filter.From)
		}
		if filter.To != nil {
			addFilter("scheduled_pickup_time <= $%d", *filter.To)
		}
	}

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rides: %w", err)
	}

	baseQuery += fmt.Sprintf(" ORDER BY scheduled_pickup_time DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, baseQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rides: %w", err)
	}
	defer rows.Close()

	rides := make([]*models.Ride, 0)
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan ride: %w", err)
		}
		rides = append(rides, ride)
	}

	return rides, total, nil
}

// GetHistory returns the full status history ledger for a ride in append order.
func (r *Repository) GetHistory(ctx context.Context, rideID uuid.UUID) ([]models.HistoryEntry, error) {
	query := `
		SELECT id, ride_id, seq,
			   from_status, from_super_admin_status, from_provider_status,
			   to_status, to_super_admin_status, to_provider_status,
			   actor_id, actor_role, reason, created_at
		FROM ride_status_history
		WHERE ride_id = $1
		ORDER BY seq ASC
	`

	entries, err := database.RetryableQuery(ctx, r.db, query, []interface{}{rideID}, func(rows pgx.Rows) ([]models.HistoryEntry, error) {
		entries := make([]models.HistoryEntry, 0)
		for rows.Next() {
			var e models.HistoryEntry
			err := rows.Scan(
				&e.ID,
				&e.RideID,
				&e.Seq,
				&e.FromTriad.Status,
				&e.FromTriad.SuperAdminStatus,
				&e.FromTriad.ProviderStatus,
				&e.ToTriad.Status,
				&e.ToTriad.SuperAdminStatus,
				&e.ToTriad.ProviderStatus,
				&e.ActorID,
				&e.ActorRole,
				&e.Reason,
				&e.CreatedAt,
			)
			if err != nil {
				return nil, fmt.Errorf("failed to scan history entry: %w", err)
			}
			entries = append(entries, e)
		}

		return entries, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	return entries, nil
}

// appendHistory inserts one ledger entry inside the caller's transaction.
// Seq is assigned monotonically per ride; the updated ride row is locked by
// this point, so the max+1 read cannot race.
func appendHistory(ctx context.Context, tx pgx.Tx, rideID uuid.UUID, from, to models.StatusTriad, actorID uuid.UUID, actorRole models.UserRole, reason string) error {
	var reasonArg *string
	if reason != "" {
		reasonArg = &reason
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO ride_status_history (
			id, ride_id, seq,
			from_status, from_super_admin_status, from_provider_status,
			to_status, to_super_admin_status, to_provider_status,
			actor_id, actor_role, reason
		)
		VALUES (
			$1, $2,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM ride_status_history WHERE ride_id = $2),
			$3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`,
		uuid.New(), rideID,
		from.Status, from.SuperAdminStatus, from.ProviderStatus,
		to.Status, to.SuperAdminStatus, to.ProviderStatus,
		actorID, actorRole, reasonArg,
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	return nil
}

// ApplyTransition commits the new triad with a WHERE guard on the expected
// prior triad, and appends the history entry in the same transaction.
// Zero rows matched means a concurrent writer got there first.
func (r *Repository) ApplyTransition(ctx context.Context, params TransitionParams) (*models.Ride, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stamp := params.StampAt
	if stamp.IsZero() {
		stamp = time.Now()
	}

	setClauses := "status = $1, super_admin_status = $2, provider_status = $3, updated_at = $4"
	args := []interface{}{params.Next.Status, params.Next.SuperAdminStatus, params.Next.ProviderStatus, stamp}
	argCount := 5

	addSet := func(clause string, value interface{}) {
		setClauses += fmt.Sprintf(", "+clause, argCount)
		args = append(args, value)
		argCount++
	}

	if params.Next.Status != params.Expected.Status {
		switch params.Next.Status {
		case models.RideStatusStarted:
			addSet("started_at = $%d", stamp)
		case models.RideStatusPickedUp:
			addSet("picked_up_at = $%d", stamp)
		case models.RideStatusCompleted:
			addSet("completed_at = $%d", stamp)
		case models.RideStatusCancelled, models.RideStatusNoShow:
			addSet("cancelled_at = $%d", stamp)
		}
	}

	if params.DeclineReason != nil {
		addSet("decline_reason = $%d", *params.DeclineReason)
	}
	if params.CancelReason != nil {
		addSet("cancel_reason = $%d", *params.CancelReason)
	}
	if params.ReturnPickupTBA != nil {
		addSet("return_pickup_tba = $%d", *params.ReturnPickupTBA)
	}
	if params.ReturnPickupTime != nil {
		addSet("return_pickup_time = $%d", *params.ReturnPickupTime)
	}
	if params.ProviderFee != nil {
		addSet("provider_fee = $%d", *params.ProviderFee)
	}
	if params.DriverEarnings != nil {
		addSet("driver_earnings = $%d", *params.DriverEarnings)
	}
	if params.InsuranceClaim != nil {
		addSet("insurance_claim_amount = $%d", *params.InsuranceClaim)
	}
	if params.PaymentStatus != nil {
		addSet("payment_status = $%d", *params.PaymentStatus)
	}

	query := fmt.Sprintf(`
		UPDATE rides
		SET %s
		WHERE id = $%d AND status = $%d AND super_admin_status = $%d AND provider_status = $%d
		RETURNING %s
	`, setClauses, argCount, argCount+1, argCount+2, argCount+3, rideColumns)
	args = append(args, params.RideID, params.Expected.Status, params.Expected.SuperAdminStatus, params.Expected.ProviderStatus)

	ride, err := scanRide(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaleState
		}
		return nil, fmt.Errorf("failed to apply transition: %w", err)
	}

	if err := appendHistory(ctx, tx, params.RideID, params.Expected, params.Next, params.ActorID, params.ActorRole, params.Reason); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	return ride, nil
}

// ClaimProvider atomically approves a pending ride and attaches the
// provider. The WHERE guard is what guarantees at-most-one winner when
// several super admins race on the same ride; guarding status also
// blocks a claim from landing on a ride cancelled after the read.
func (r *Repository) ClaimProvider(ctx context.Context, params ClaimProviderParams) (*models.Ride, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		UPDATE rides
		SET super_admin_status = $1, provider_id = $2, provider_status = $3, updated_at = $4
		WHERE id = $5 AND status = $6 AND super_admin_status = $7 AND provider_id IS NULL
		RETURNING %s
	`, rideColumns)

	ride, err := scanRide(tx.QueryRow(ctx, query,
		models.ApprovalApproved, params.ProviderID, models.ProviderPending, time.Now(),
		params.RideID, models.RideStatusPending, models.ApprovalPending,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim provider assignment: %w", err)
	}

	from := models.StatusTriad{
		Status:           ride.Status,
		SuperAdminStatus: models.ApprovalPending,
		ProviderStatus:   models.ProviderPending,
	}
	if err := appendHistory(ctx, tx, params.RideID, from, ride.Triad(), params.ActorID, models.RoleSuperAdmin, ""); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit provider claim: %w", err)
	}

	return ride, nil
}

// ClaimDriver atomically accepts on behalf of the assigned provider and
// attaches the driver, moving the ride to assigned.
func (r *Repository) ClaimDriver(ctx context.Context, params ClaimDriverParams) (*models.Ride, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	query := fmt.Sprintf(`
		UPDATE rides
		SET provider_status = $1, driver_id = $2, status = $3, assigned_at = $4, updated_at = $4
		WHERE id = $5 AND status = $6 AND provider_id = $7 AND provider_status = $8
			AND super_admin_status = $9 AND driver_id IS NULL
		RETURNING %s
	`, rideColumns)

	ride, err := scanRide(tx.QueryRow(ctx, query,
		models.ProviderAccepted, params.DriverID, models.RideStatusAssigned, now,
		params.RideID, models.RideStatusPending, params.ProviderID, models.ProviderPending, models.ApprovalApproved,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim driver assignment: %w", err)
	}

	from := models.StatusTriad{
		Status:           models.RideStatusPending,
		SuperAdminStatus: models.ApprovalApproved,
		ProviderStatus:   models.ProviderPending,
	}
	if err := appendHistory(ctx, tx, params.RideID, from, ride.Triad(), params.ActorID, models.RoleProviderAdmin, ""); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit driver claim: %w", err)
	}

	return ride, nil
}
