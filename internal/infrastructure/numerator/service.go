// Package numerator provides the PostgreSQL implementation of document
// auto-numbering. It implements core/numerator.Generator.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "warelog/internal/core/numerator"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type cachedRange struct {
	current int64
	max     int64
}

// Service provides document numbering backed by the sys_sequences table.
// One row per (sequence_type, year, month); the counter restarts every month.
type Service struct {
	querier Querier

	// cacheMu protects ranges
	cacheMu sync.Mutex
	// ranges stores active ranges per key for the Cached strategy
	ranges map[string]*cachedRange
}

// Ensure compile-time interface compliance.
var _ corenumerator.Generator = (*Service)(nil)

// New creates a new numerator service.
func New(querier Querier) *Service {
	return &Service{
		querier: querier,
		ranges:  make(map[string]*cachedRange),
	}
}

// GetNextNumber generates the next document number for the period.
// Pattern: PREFIX-YYYY-MM-NNNNN (e.g., PZ-2026-03-00001).
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, opts *corenumerator.Options, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	if opts == nil {
		opts = corenumerator.DefaultOptions()
	}

	var num int64
	var err error

	switch opts.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.getNextCached(ctx, cfg.Prefix, period, opts)
	case corenumerator.StrategyStrict:
		fallthrough
	default:
		num, err = s.getNextStrict(ctx, cfg.Prefix, period)
	}

	if err != nil {
		return "", err
	}

	return formatNumber(cfg, period, num), nil
}

// getNextStrict fetches the next number directly from DB using UPSERT + RETURNING.
// Row update atomicity makes this race-safe across concurrent callers.
func (s *Service) getNextStrict(ctx context.Context, prefix string, period time.Time) (int64, error) {
	var num int64

	err := s.querier.QueryRow(ctx, `
        INSERT INTO sys_sequences (sequence_type, year, month, current_val)
        VALUES ($1, $2, $3, 1)
        ON CONFLICT (sequence_type, year, month)
        DO UPDATE SET current_val = sys_sequences.current_val + 1
        RETURNING current_val
	`, prefix, period.Year(), int(period.Month())).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("strict next: %w", err)
	}

	return num, nil
}

// getNextCached fetches the next number from memory, refilling from DB when
// the allocated range runs out. Gaps appear on restart; not used for
// warehouse documents.
func (s *Service) getNextCached(ctx context.Context, prefix string, period time.Time, opts *corenumerator.Options) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	key := fmt.Sprintf("%s_%s", prefix, period.Format("2006_01"))

	rng, exists := s.ranges[key]
	if !exists {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		size := opts.RangeSize
		if size <= 0 {
			size = 50 // default
		}

		var newMax int64
		err := s.querier.QueryRow(ctx, `
            INSERT INTO sys_sequences (sequence_type, year, month, current_val)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (sequence_type, year, month)
            DO UPDATE SET current_val = sys_sequences.current_val + $4
            RETURNING current_val
		`, prefix, period.Year(), int(period.Month()), size).Scan(&newMax)
		if err != nil {
			return 0, fmt.Errorf("reserve range: %w", err)
		}

		// newMax is the end of our range; the start is newMax - size + 1.
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber sets the current counter value (for migration purposes).
func (s *Service) SetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	var result int64
	err := s.querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (sequence_type, year, month, current_val)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sequence_type, year, month)
		DO UPDATE SET current_val = $4
		RETURNING current_val
	`, cfg.Prefix, period.Year(), int(period.Month()), value).Scan(&result)

	s.cacheMu.Lock()
	delete(s.ranges, fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006_01")))
	s.cacheMu.Unlock()

	return err
}

// formatNumber creates the final number string.
func formatNumber(cfg corenumerator.Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}

	return fmt.Sprintf("%s-%d-%02d-%0*d", cfg.Prefix, period.Year(), int(period.Month()), padWidth, num)
}

// ParseNumber extracts the numeric part from a formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	var num int64
	if _, err := fmt.Sscanf(formatted, "%*[^-]-%*d-%*d-%d", &num); err == nil {
		return num
	}
	return -1
}
