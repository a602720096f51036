package recommend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/s100fed/fedroute/internal/logging"
)

// AccessRecord aggregates a user's accesses to one product/service pair.
type AccessRecord struct {
	ProductType string    `yaml:"product_type" json:"productType"`
	ServiceType string    `yaml:"service_type" json:"serviceType"`
	AccessCount int       `yaml:"access_count" json:"accessCount"`
	LastAccess  time.Time `yaml:"last_access,omitempty" json:"lastAccess,omitempty"`
}

// HistoryProvider returns the access history of a user. Unknown users have an empty history.
type HistoryProvider interface {
	History(ctx context.Context, userID string) ([]AccessRecord, error)
}

// HistoryFunc adapts a function to HistoryProvider.
type HistoryFunc func(ctx context.Context, userID string) ([]AccessRecord, error)

// History calls f.
func (f HistoryFunc) History(ctx context.Context, userID string) ([]AccessRecord, error) {
	return f(ctx, userID)
}

// NoHistory is a HistoryProvider that knows no users.
//
//nolint:gochecknoglobals // stateless provider value
var NoHistory HistoryProvider = HistoryFunc(func(context.Context, string) ([]AccessRecord, error) {
	return nil, nil
})

// Recorder appends accesses to a user's history.
type Recorder interface {
	Record(ctx context.Context, userID, productType, serviceType string, at time.Time) error
}

// MemoryHistory serves access histories held in memory.
type MemoryHistory struct {
	mu    sync.RWMutex
	users map[string][]AccessRecord
}

// NewMemoryHistory returns a MemoryHistory over users keyed by user id.
func NewMemoryHistory(users map[string][]AccessRecord) *MemoryHistory {
	h := &MemoryHistory{users: make(map[string][]AccessRecord, len(users))}
	for id, recs := range users {
		h.users[id] = append([]AccessRecord(nil), recs...)
	}
	return h
}

// LoadMemoryHistory reads a YAML file mapping user ids to access records.
func LoadMemoryHistory(path string) (*MemoryHistory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading history %s: %w", path, err)
	}
	var users map[string][]AccessRecord
	if err = yaml.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parsing history %s: %w", path, err)
	}
	for id, recs := range users {
		for i, r := range recs {
			if r.AccessCount < 0 {
				return nil, fmt.Errorf("history %s: user %q record %d: negative access_count", path, id, i)
			}
		}
	}
	return NewMemoryHistory(users), nil
}

// History returns a copy of the user's records.
func (h *MemoryHistory) History(ctx context.Context, userID string) ([]AccessRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]AccessRecord(nil), h.users[userID]...), nil
}

// Record adds one access for the user.
func (h *MemoryHistory) Record(ctx context.Context, userID, productType, serviceType string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	recs := h.users[userID]
	for i := range recs {
		if recs[i].ProductType == productType && recs[i].ServiceType == serviceType {
			recs[i].AccessCount++
			if at.After(recs[i].LastAccess) {
				recs[i].LastAccess = at
			}
			return nil
		}
	}
	h.users[userID] = append(recs, AccessRecord{
		ProductType: productType, ServiceType: serviceType, AccessCount: 1, LastAccess: at,
	})
	return nil
}

const historyQuery = `
SELECT product_type, service_type, COUNT(*) AS access_count, MAX(accessed_at) AS last_access
FROM service_access_log
WHERE user_id = $1
GROUP BY product_type, service_type
ORDER BY access_count DESC, product_type, service_type`

const recordQuery = `
INSERT INTO service_access_log (user_id, product_type, service_type, accessed_at)
VALUES ($1, $2, $3, $4)`

// PostgresHistory aggregates the service access log.
type PostgresHistory struct {
	db *sql.DB
}

// NewPostgresHistory wraps an open database holding the service_access_log table.
func NewPostgresHistory(db *sql.DB) (*PostgresHistory, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &PostgresHistory{db: db}, nil
}

// History returns one aggregated record per product/service pair the user accessed.
func (h *PostgresHistory) History(ctx context.Context, userID string) ([]AccessRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	rows, err := h.db.QueryContext(ctx, historyQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("querying access history: %w", err)
	}
	defer rows.Close()

	var out []AccessRecord
	for rows.Next() {
		var rec AccessRecord
		var last sql.NullTime
		if err = rows.Scan(&rec.ProductType, &rec.ServiceType, &rec.AccessCount, &last); err != nil {
			return nil, fmt.Errorf("scanning access history: %w", err)
		}
		if last.Valid {
			rec.LastAccess = last.Time
		}
		out = append(out, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("reading access history: %w", err)
	}

	logging.FromContext(ctx).Debug().
		Ctx(ctx).
		Str("component", "recommend").
		Str("operation", "history").
		Str("user_id", userID).
		Int("records", len(out)).
		Msg("loaded access history")
	return out, nil
}

// Record appends an access to the log.
func (h *PostgresHistory) Record(ctx context.Context, userID, productType, serviceType string, at time.Time) error {
	if _, err := h.db.ExecContext(ctx, recordQuery, userID, productType, serviceType, at); err != nil {
		return fmt.Errorf("recording access: %w", err)
	}
	return nil
}
