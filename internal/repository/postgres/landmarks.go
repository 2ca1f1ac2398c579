package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/location-microservice/internal/domain"
	apperr "github.com/location-microservice/internal/pkg/errors"
	"github.com/location-microservice/internal/pkg/validator"
)

// hostRow mirrors the hosts(ipv4, label, longitude, latitude, country,
// asn) table of §6.
type hostRow struct {
	IPv4      string  `db:"ipv4"`
	Label     string  `db:"label"`
	Longitude float64 `db:"longitude"`
	Latitude  float64 `db:"latitude"`
	Country   string  `db:"country"`
	ASN       int     `db:"asn"`
}

// LandmarkRepository loads the shared, read-only landmark position
// table.
type LandmarkRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewLandmarkRepository wraps db for landmark lookups, logging per-row
// DataError warnings to l.
func NewLandmarkRepository(db *DB, l *zap.Logger) *LandmarkRepository {
	return &LandmarkRepository{db: db, logger: l}
}

// All loads every landmark row, deriving each one's numeric sub-label
// from the trailing digits of its human label (or -1 if it has none).
// Rows that fail validation (malformed IPv4, out-of-range coordinates)
// are skipped with a warning, per §7's DataError policy.
func (r *LandmarkRepository) All(ctx context.Context) ([]domain.LandmarkPosition, error) {
	var rows []hostRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT ipv4, label, longitude, latitude, country, asn FROM hosts`); err != nil {
		return nil, fmt.Errorf("%w: load hosts: %v", apperr.ErrDatabase, err)
	}

	out := make([]domain.LandmarkPosition, 0, len(rows))
	for _, row := range rows {
		ip := net.ParseIP(row.IPv4)
		if ip == nil {
			if r.logger != nil {
				r.logger.Warn("skipping host with malformed IPv4", zap.String("ipv4", row.IPv4))
			}
			continue
		}

		lm := domain.LandmarkPosition{
			IPv4:   ip,
			Label:  row.Label,
			ILabel: trailingNumericSuffix(row.Label),
			Lon:    row.Longitude,
			Lat:    row.Latitude,
		}
		if err := validator.Validate(lm); err != nil {
			if r.logger != nil {
				r.logger.Warn("skipping invalid host row", zap.String("ipv4", row.IPv4), zap.Error(err))
			}
			continue
		}
		out = append(out, lm)
	}
	return out, nil
}

// trailingNumericSuffix extracts the run of digits at the end of label,
// e.g. "lga-03" -> 3, or -1 if label has no numeric suffix.
func trailingNumericSuffix(label string) int {
	i := len(label)
	for i > 0 && label[i-1] >= '0' && label[i-1] <= '9' {
		i--
	}
	if i == len(label) {
		return -1
	}
	digits := strings.TrimLeft(label[i:], "0")
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return -1
	}
	return n
}

// batchRow mirrors the batches table of §6; annot is decoded from its
// JSON column representation.
type batchRow struct {
	ID         int64           `db:"id"`
	ClientLat  float64         `db:"client_lat"`
	ClientLon  float64         `db:"client_lon"`
	ClientAddr string          `db:"client_addr"`
	Proxied    bool            `db:"proxied"`
	ProxyLat   float64         `db:"proxy_lat"`
	ProxyLon   float64         `db:"proxy_lon"`
	ProxyAddr  string          `db:"proxy_addr"`
	Annot      json.RawMessage `db:"annot"`
}

// BatchRepository selects batch metadata and streams raw measurements.
type BatchRepository struct {
	db *DB
}

// NewBatchRepository wraps db for batch selection and measurement
// retrieval.
func NewBatchRepository(db *DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// SelectBatchIDs returns the ids of batches matching selector, an
// optional free-form SQL predicate appended to the selection query's
// WHERE clause (per §6, "parameterizing which batches are processed").
// An empty selector selects every batch.
func (r *BatchRepository) SelectBatchIDs(ctx context.Context, selector string) ([]int64, error) {
	query := `SELECT id FROM batches`
	if selector != "" {
		query += ` WHERE ` + selector
	}
	query += ` ORDER BY id`

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("%w: select batch ids: %v", apperr.ErrDatabase, err)
	}
	return ids, nil
}

// Metadata loads one batch's metadata row.
func (r *BatchRepository) Metadata(ctx context.Context, batchID int64) (domain.BatchMetadata, error) {
	var row batchRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, client_lat, client_lon, client_addr, proxied, proxy_lat, proxy_lon, proxy_addr, annot
		FROM batches WHERE id = $1`, batchID)
	if err != nil {
		return domain.BatchMetadata{}, fmt.Errorf("%w: load batch %d: %v", apperr.ErrDatabase, batchID, err)
	}

	annot := map[string]interface{}{}
	if len(row.Annot) > 0 {
		if err := json.Unmarshal(row.Annot, &annot); err != nil {
			return domain.BatchMetadata{}, fmt.Errorf("%w: decode batch %d annot: %v", apperr.ErrData, batchID, err)
		}
	}

	return domain.BatchMetadata{
		BatchID:    row.ID,
		ClientLat:  row.ClientLat,
		ClientLon:  row.ClientLon,
		ClientAddr: net.ParseIP(row.ClientAddr),
		Proxied:    row.Proxied,
		ProxyLat:   row.ProxyLat,
		ProxyLon:   row.ProxyLon,
		ProxyAddr:  net.ParseIP(row.ProxyAddr),
		Annot:      annot,
	}, nil
}

// measurementRow mirrors measurements(batch, dst, rtt_ms, status).
type measurementRow struct {
	Batch  int64   `db:"batch"`
	Dst    string  `db:"dst"`
	RttMs  float32 `db:"rtt_ms"`
	Status int     `db:"status"`
}

// Measurements loads every raw measurement row for a batch.
func (r *BatchRepository) Measurements(ctx context.Context, batchID int64) ([]domain.RttSample, error) {
	var rows []measurementRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT batch, dst, rtt_ms, status FROM measurements WHERE batch = $1`, batchID)
	if err != nil {
		return nil, fmt.Errorf("%w: load measurements for batch %d: %v", apperr.ErrDatabase, batchID, err)
	}

	out := make([]domain.RttSample, 0, len(rows))
	for _, row := range rows {
		ip := net.ParseIP(row.Dst)
		if ip == nil {
			continue
		}
		out = append(out, domain.RttSample{Batch: row.Batch, Dst: ip, RttMs: row.RttMs, Status: row.Status})
	}
	return out, nil
}
