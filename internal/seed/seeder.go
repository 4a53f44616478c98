// Package seed fills a matcha datastore with synthetic, login-ready test users.
// It is intended for development and demo environments only.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"time"

	"matcha/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// Atomicity selects what a failed user discards.
type Atomicity string

const (
	// AtomicityUser wraps each user in a savepoint; a failure discards only that user.
	AtomicityUser Atomicity = "user"
	// AtomicityBatch rolls back the whole open batch on any failure.
	AtomicityBatch Atomicity = "batch"
)

// Options configuration for the seeder
type Options struct {
	NumUsers     int
	BatchSize    int
	Atomicity    Atomicity
	TestPassword string
	EmailDomain  string
	BcryptCost   int
	// DryRun generates users and assigns synthetic ids without writing anything.
	DryRun bool
}

// DefaultOptions mirrors the fixed volume and credentials of the test dataset.
func DefaultOptions() Options {
	return Options{
		NumUsers:     500,
		BatchSize:    50,
		Atomicity:    AtomicityUser,
		TestPassword: "Password123!",
		EmailDomain:  "matcha-test.com",
		BcryptCost:   10,
	}
}

// Outcome is the final state of one user index.
type Outcome string

// Possible outcomes.
const (
	OutcomeCreated    Outcome = "created"
	OutcomeFailed     Outcome = "failed"
	OutcomeRolledBack Outcome = "rolled_back"
)

// FailureReason classifies why a user was not created.
type FailureReason string

// Failure reasons.
const (
	ReasonNone       FailureReason = ""
	ReasonGenerate   FailureReason = "generate"
	ReasonDuplicate  FailureReason = "duplicate"
	ReasonForeignKey FailureReason = "foreign_key"
	ReasonStore      FailureReason = "store"
	// ReasonBatchRollback marks a user discarded because a later user in the
	// same batch failed under AtomicityBatch.
	ReasonBatchRollback FailureReason = "batch_rollback"
)

// Result reports what happened to one user index.
type Result struct {
	Index    int
	UserID   uint
	Username string
	Outcome  Outcome
	Reason   FailureReason
	Err      error
}

// Seeder orchestrates tag seeding followed by user generation and insertion.
type Seeder struct {
	store Store
	gen   *Generator
	opts  Options
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewSeeder creates a Seeder writing to store with profiles from gen.
func NewSeeder(store Store, gen *Generator, opts Options) *Seeder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	if opts.Atomicity == "" {
		opts.Atomicity = AtomicityUser
	}
	return &Seeder{store: store, gen: gen, opts: opts}
}

// Run seeds the tag catalog, then opts.NumUsers users in increasing index order.
// Per-user failures are recorded in the summary; the returned error is fatal.
func (s *Seeder) Run(ctx context.Context) (summary *Summary, err error) {
	if s.opts.NumUsers < 1 {
		return nil, ErrInvalidCount
	}

	span, ctx := observability.NewSpan(ctx, "seed.run",
		attribute.Int("seed.users_requested", s.opts.NumUsers),
		attribute.String("seed.atomicity", string(s.opts.Atomicity)),
		attribute.Bool("seed.dry_run", s.opts.DryRun),
	)
	defer func() {
		span.SetError(err)
		span.End()
	}()

	summary = &Summary{
		Requested:   s.opts.NumUsers,
		EmailDomain: s.opts.EmailDomain,
		Password:    s.opts.TestPassword,
		DryRun:      s.opts.DryRun,
		Results:     make([]Result, 0, s.opts.NumUsers),
	}
	start := time.Now()
	defer func() {
		// A fatal error before any user was attempted returns no summary.
		if summary != nil {
			summary.Duration = time.Since(start)
		}
		observability.SeedLastRunTimestamp.SetToCurrentTime()
	}()

	if s.opts.DryRun {
		s.dryRun(ctx, summary)
		return summary, nil
	}

	tagIDs, err := s.ensureTags(ctx)
	if err != nil {
		return nil, err
	}

	log.Printf("👥 Creating %d users...", s.opts.NumUsers)
	if err := s.seedUsers(ctx, tagIDs, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *Seeder) ensureTags(ctx context.Context) (map[string]uint, error) {
	span, ctx := observability.NewSpan(ctx, "seed.ensure_tags")
	defer span.End()

	tags := s.gen.Catalog().Tags
	log.Println("🏷️  Creating tags...")
	ids, err := s.store.EnsureTags(ctx, tags)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to seed tags: %w", err)
	}
	log.Printf("✅ %d tags created/verified", len(tags))
	return ids, nil
}

func (s *Seeder) seedUsers(ctx context.Context, tagIDs map[string]uint, summary *Summary) (err error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	// pending indexes into summary.Results for users not yet committed
	var pending []int

	// Anything still pending when we leave was never committed.
	defer func() {
		if tx != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				observability.Logger.ErrorContext(ctx, "rollback of open batch failed", slog.String("error", rbErr.Error()))
			}
		}
		summary.discard(pending)
	}()

	for i := 1; i <= s.opts.NumUsers; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("seeding interrupted before user %d: %w", i, err)
		}

		res, err := s.seedOne(ctx, tx, i, tagIDs)
		if err != nil {
			return err
		}
		summary.Results = append(summary.Results, res)

		switch res.Outcome {
		case OutcomeCreated:
			summary.Succeeded++
			pending = append(pending, len(summary.Results)-1)
		case OutcomeFailed:
			summary.Failed++
			if s.opts.Atomicity == AtomicityBatch {
				rbErr := tx.Rollback()
				tx = nil
				if rbErr != nil {
					return fmt.Errorf("rollback batch after user %d: %w", i, rbErr)
				}
				if n := summary.discard(pending); n > 0 {
					log.Printf("   ↩️  Rolled back %d users from the open batch", n)
				}
				pending = nil
				if tx, err = s.store.Begin(ctx); err != nil {
					return err
				}
			}
		}

		if len(pending) >= s.opts.BatchSize {
			if err := tx.Commit(); err != nil {
				tx = nil
				return fmt.Errorf("commit batch at user %d: %w", i, err)
			}
			observability.SeedBatchCommitsTotal.Inc()
			pending = nil
			log.Printf("   ✓ %d users created...", summary.Succeeded)
			if tx, err = s.store.Begin(ctx); err != nil {
				return err
			}
		}
	}

	commitErr := tx.Commit()
	tx = nil
	if commitErr != nil {
		return fmt.Errorf("final commit: %w", commitErr)
	}
	if len(pending) > 0 {
		observability.SeedBatchCommitsTotal.Inc()
		pending = nil
	}
	return nil
}

// seedOne generates and inserts a single user. A non-nil error means the open
// transaction can no longer be trusted and the run must stop.
func (s *Seeder) seedOne(ctx context.Context, tx Tx, index int, tagIDs map[string]uint) (Result, error) {
	ctx = observability.WithUserIndex(ctx, index)
	span, ctx := observability.NewSpan(ctx, "seed.user", attribute.Int("seed.index", index))
	defer span.End()

	res := Result{Index: index}

	p, err := s.gen.Generate(index)
	if err != nil {
		span.SetError(err)
		return s.fail(ctx, res, ReasonGenerate, err), nil
	}
	res.Username = p.User.Username

	savepoint := fmt.Sprintf("seed_user_%d", index)
	if s.opts.Atomicity == AtomicityUser {
		if err := tx.SavePoint(savepoint); err != nil {
			return res, fmt.Errorf("savepoint for user %d: %w", index, err)
		}
	}

	done := observability.TrackInsert()
	err = tx.InsertProfile(ctx, p, tagIDs)
	done()
	if err != nil {
		span.SetError(err)
		if s.opts.Atomicity == AtomicityUser {
			if rbErr := tx.RollbackTo(savepoint); rbErr != nil {
				return res, fmt.Errorf("rollback user %d: %w", index, rbErr)
			}
		}
		return s.fail(ctx, res, classify(err), err), nil
	}

	res.UserID = p.User.ID
	res.Outcome = OutcomeCreated
	span.AddAttributes(attribute.Int64("seed.user_id", int64(p.User.ID)), attribute.String("seed.city", p.City))
	observability.SeedUsersTotal.WithLabelValues(string(OutcomeCreated)).Inc()
	return res, nil
}

func (s *Seeder) fail(ctx context.Context, res Result, reason FailureReason, err error) Result {
	res.Outcome = OutcomeFailed
	res.Reason = reason
	res.Err = err

	attrs := []any{
		slog.Int("index", res.Index),
		slog.String("username", res.Username),
		slog.String("reason", string(reason)),
		slog.String("error", err.Error()),
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		attrs = append(attrs, slog.String("sqlstate", pgErr.Code), slog.String("constraint", pgErr.ConstraintName))
	}
	observability.Logger.WarnContext(ctx, "⚠️  user seeding failed", attrs...)

	observability.SeedUsersTotal.WithLabelValues(string(OutcomeFailed)).Inc()
	observability.SeedFailuresTotal.WithLabelValues(string(reason)).Inc()
	return res
}

// classify maps a store error to a FailureReason. Constraint errors are
// translated by GORM when the handle is opened with TranslateError.
func classify(err error) FailureReason {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ReasonDuplicate
	case errors.Is(err, gorm.ErrForeignKeyViolated), errors.Is(err, ErrUnknownTag):
		return ReasonForeignKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ReasonDuplicate
		case "23503":
			return ReasonForeignKey
		}
	}
	return ReasonStore
}

func (s *Seeder) dryRun(ctx context.Context, summary *Summary) {
	s.nextID = 1000
	for i := 1; i <= s.opts.NumUsers; i++ {
		p, err := s.gen.Generate(i)
		if err != nil {
			summary.Results = append(summary.Results, s.fail(ctx, Result{Index: i}, ReasonGenerate, err))
			summary.Failed++
			continue
		}
		s.nextID++
		p.User.ID = s.nextID
		observability.Logger.DebugContext(ctx, "[dry-run] generated user",
			slog.Int("index", i),
			slog.String("username", p.User.Username),
			slog.String("city", p.City),
			slog.Any("tags", p.Tags),
		)
		summary.Results = append(summary.Results, Result{
			Index:    i,
			UserID:   p.User.ID,
			Username: p.User.Username,
			Outcome:  OutcomeCreated,
		})
		summary.Succeeded++
	}
	log.Printf("[dry-run] generated %d users (no DB write)", summary.Succeeded)
}
