package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"apthere/internal/core"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const dealRecordColumns = `region_code5, year_month, kind, apt_name, dong, apt_dong, jibun, floor, area,
	build_year, deal_date, deal_amount, deposit, monthly_rent, dealing_type, broker_region,
	registered_date, seller_type, buyer_type, land_leasehold, cancel_type, cancel_date,
	contract_type, renewal_right_used`

const insertDealRecord = `INSERT INTO deal_record (` + dealRecordColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertDealRecord(ctx context.Context, r core.TransactionRecord) error {
	_, err := q.db.ExecContext(ctx, insertDealRecord,
		r.RegionCode5, r.YearMonth, string(r.Kind), r.AptName, r.Dong, r.AptDong, r.Jibun, r.Floor, r.Area,
		r.BuildYear, r.DealDate, nullInt64(r.DealAmount), nullInt64(r.Deposit), nullInt64(r.MonthlyRent),
		r.DealingType, r.BrokerRegion, r.RegisteredDate, r.SellerType, r.BuyerType, r.LandLeasehold,
		r.CancelType, r.CancelDate, r.ContractType, r.RenewalRightUsed,
	)
	return err
}

func (q *Queries) DeleteBucketRecords(ctx context.Context, regionCode5, yearMonth string, kinds []string) (int64, error) {
	query := `DELETE FROM deal_record WHERE region_code5 = ? AND year_month = ? AND kind IN (` + placeholders(len(kinds)) + `)`
	args := []interface{}{regionCode5, yearMonth}
	for _, k := range kinds {
		args = append(args, k)
	}
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) ListWindowRecords(ctx context.Context, regionCode5 string, months []string, dong string) ([]core.TransactionRecord, error) {
	if len(months) == 0 {
		return nil, nil
	}
	query := `SELECT ` + dealRecordColumns + ` FROM deal_record
WHERE region_code5 = ? AND year_month IN (` + placeholders(len(months)) + `)`
	args := []interface{}{regionCode5}
	for _, m := range months {
		args = append(args, m)
	}
	if dong != "" {
		query += ` AND dong = ?`
		args = append(args, dong)
	}
	query += ` ORDER BY id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.TransactionRecord
	for rows.Next() {
		var (
			r                            core.TransactionRecord
			kind                         string
			dealAmount, deposit, monthly sql.NullInt64
		)
		if err := rows.Scan(
			&r.RegionCode5, &r.YearMonth, &kind, &r.AptName, &r.Dong, &r.AptDong, &r.Jibun, &r.Floor, &r.Area,
			&r.BuildYear, &r.DealDate, &dealAmount, &deposit, &monthly, &r.DealingType, &r.BrokerRegion,
			&r.RegisteredDate, &r.SellerType, &r.BuyerType, &r.LandLeasehold, &r.CancelType, &r.CancelDate,
			&r.ContractType, &r.RenewalRightUsed,
		); err != nil {
			return nil, err
		}
		r.Kind = core.RecordKind(kind)
		r.DealAmount = int64Ptr(dealAmount)
		r.Deposit = int64Ptr(deposit)
		r.MonthlyRent = int64Ptr(monthly)
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) ListFetchLogs(ctx context.Context, regionCode5 string, months []string) ([]core.FetchLog, error) {
	if len(months) == 0 {
		return nil, nil
	}
	query := `SELECT region_code5, year_month, source_kind, last_fetched_at FROM fetch_log
WHERE region_code5 = ? AND year_month IN (` + placeholders(len(months)) + `)`
	args := []interface{}{regionCode5}
	for _, m := range months {
		args = append(args, m)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []core.FetchLog
	for rows.Next() {
		var (
			l             core.FetchLog
			source, stamp string
		)
		if err := rows.Scan(&l.Key.RegionCode5, &l.Key.YearMonth, &source, &stamp); err != nil {
			return nil, err
		}
		at, err := time.Parse(TimeLayout, stamp)
		if err != nil {
			return nil, fmt.Errorf("parse last_fetched_at %q: %w", stamp, err)
		}
		l.Key.Source = core.SourceKind(source)
		l.LastFetchedAt = at
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

const upsertFetchLog = `INSERT INTO fetch_log (region_code5, year_month, source_kind, last_fetched_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (region_code5, year_month, source_kind) DO UPDATE SET last_fetched_at = excluded.last_fetched_at`

func (q *Queries) UpsertFetchLog(ctx context.Context, key core.BucketKey, fetchedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, upsertFetchLog,
		key.RegionCode5, key.YearMonth, string(key.Source), fetchedAt.UTC().Format(TimeLayout))
	return err
}

func placeholders(n int) string {
	if n <= 0 {
		return "NULL"
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
