// Package sqlite implements the persistence collaborator on a local SQLite
// database using the pure Go driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS portfolios (
	name       TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS allocations (
	portfolio TEXT NOT NULL,
	position  INTEGER NOT NULL,
	asset     TEXT NOT NULL,
	percent   TEXT NOT NULL,
	PRIMARY KEY (portfolio, asset)
);
CREATE TABLE IF NOT EXISTS settings (
	portfolio       TEXT PRIMARY KEY,
	frequency       TEXT NOT NULL,
	threshold       TEXT NOT NULL,
	min_trade_value TEXT NOT NULL,
	auto_rebalance  INTEGER NOT NULL,
	paper_trading   INTEGER NOT NULL,
	updated_at      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshots (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	portfolio   TEXT NOT NULL,
	balances    TEXT NOT NULL,
	prices      TEXT NOT NULL,
	total_value TEXT NOT NULL,
	ts          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_portfolio_ts ON snapshots (portfolio, ts);
CREATE TABLE IF NOT EXISTS transactions (
	id        TEXT PRIMARY KEY,
	portfolio TEXT NOT NULL,
	asset     TEXT NOT NULL,
	type      TEXT NOT NULL,
	side      TEXT NOT NULL,
	quantity  TEXT NOT NULL,
	price     TEXT NOT NULL,
	fee       TEXT NOT NULL,
	venue     TEXT NOT NULL,
	ts        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_portfolio_ts ON transactions (portfolio, ts);
`

// Store is the SQLite-backed persistence collaborator. It owns portfolios,
// allocations, settings, the snapshot history and the transaction ledger;
// the engine only reads and appends through it.
type Store struct {
	conn *sql.DB
}

// New opens (creating if necessary) the database at path and bootstraps the
// schema. WAL journal mode keeps concurrent readers cheap.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create database directory")
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := conn.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping database")
	}
	if _, err := conn.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "bootstrap schema")
	}

	conn.SetMaxOpenConns(1) // sqlite tolerates a single writer
	return &Store{conn: conn}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// SavePortfolio upserts a portfolio and replaces its target allocation.
func (s *Store) SavePortfolio(ctx context.Context, name string, allocation domain.Allocation) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO portfolios (name, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET updated_at = excluded.updated_at`,
		name, now, now); err != nil {
		return errors.Wrap(err, "upsert portfolio")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM allocations WHERE portfolio = ?`, name); err != nil {
		return errors.Wrap(err, "clear allocation")
	}
	for i, e := range allocation.Entries() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO allocations (portfolio, position, asset, percent) VALUES (?, ?, ?, ?)`,
			name, i, e.Asset, e.Percent.String()); err != nil {
			return errors.Wrapf(err, "insert allocation entry %s", e.Asset)
		}
	}

	return tx.Commit()
}

// Allocation loads a portfolio's target allocation in its stored order.
func (s *Store) Allocation(ctx context.Context, portfolio string) (domain.Allocation, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT asset, percent FROM allocations WHERE portfolio = ? ORDER BY position`, portfolio)
	if err != nil {
		return domain.Allocation{}, errors.Wrap(err, "query allocation")
	}
	defer rows.Close()

	var entries []domain.AllocationEntry
	for rows.Next() {
		var asset, percent string
		if err := rows.Scan(&asset, &percent); err != nil {
			return domain.Allocation{}, errors.Wrap(err, "scan allocation row")
		}
		p, err := decimal.NewFromString(percent)
		if err != nil {
			return domain.Allocation{}, errors.Wrapf(err, "parse percent for %s", asset)
		}
		entries = append(entries, domain.AllocationEntry{Asset: asset, Percent: p})
	}
	if err := rows.Err(); err != nil {
		return domain.Allocation{}, errors.Wrap(err, "iterate allocation rows")
	}
	if len(entries) == 0 {
		return domain.Allocation{}, errors.Errorf("no allocation stored for portfolio %s", portfolio)
	}

	return domain.NewAllocation(entries)
}

// SaveSettings stores rebalance settings, last write wins.
func (s *Store) SaveSettings(ctx context.Context, portfolio string, settings domain.RebalanceSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO settings (portfolio, frequency, threshold, min_trade_value, auto_rebalance, paper_trading, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(portfolio) DO UPDATE SET
			frequency = excluded.frequency,
			threshold = excluded.threshold,
			min_trade_value = excluded.min_trade_value,
			auto_rebalance = excluded.auto_rebalance,
			paper_trading = excluded.paper_trading,
			updated_at = excluded.updated_at`,
		portfolio, string(settings.Frequency), settings.Threshold.String(), settings.MinTradeValue.String(),
		boolToInt(settings.AutoRebalance), boolToInt(settings.PaperTrading),
		time.Now().UTC().Format(time.RFC3339Nano))
	return errors.Wrap(err, "save settings")
}

// Settings loads rebalance settings, falling back to defaults when the
// portfolio has none stored yet.
func (s *Store) Settings(ctx context.Context, portfolio string) (domain.RebalanceSettings, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT frequency, threshold, min_trade_value, auto_rebalance, paper_trading
		 FROM settings WHERE portfolio = ?`, portfolio)

	var frequency, threshold, minTrade string
	var autoRebalance, paperTrading int
	err := row.Scan(&frequency, &threshold, &minTrade, &autoRebalance, &paperTrading)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultRebalanceSettings(), nil
	}
	if err != nil {
		return domain.RebalanceSettings{}, errors.Wrap(err, "scan settings")
	}

	th, err := decimal.NewFromString(threshold)
	if err != nil {
		return domain.RebalanceSettings{}, errors.Wrap(err, "parse threshold")
	}
	mt, err := decimal.NewFromString(minTrade)
	if err != nil {
		return domain.RebalanceSettings{}, errors.Wrap(err, "parse min trade value")
	}

	return domain.RebalanceSettings{
		Frequency:     domain.Frequency(frequency),
		Threshold:     th,
		MinTradeValue: mt,
		AutoRebalance: autoRebalance != 0,
		PaperTrading:  paperTrading != 0,
	}, nil
}

// SaveSnapshot appends a snapshot to the history.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot domain.PortfolioSnapshot) error {
	balances, err := json.Marshal(snapshot.Balances)
	if err != nil {
		return errors.Wrap(err, "marshal balances")
	}
	prices, err := json.Marshal(snapshot.Prices)
	if err != nil {
		return errors.Wrap(err, "marshal prices")
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO snapshots (portfolio, balances, prices, total_value, ts) VALUES (?, ?, ?, ?, ?)`,
		snapshot.Portfolio, string(balances), string(prices), snapshot.TotalValue.String(),
		snapshot.Timestamp.UTC().Format(time.RFC3339Nano))
	return errors.Wrap(err, "insert snapshot")
}

// Snapshots returns the portfolio's snapshots from the last `days` days in
// chronological order.
func (s *Store) Snapshots(ctx context.Context, portfolio string, days int) ([]domain.PortfolioSnapshot, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339Nano)
	rows, err := s.conn.QueryContext(ctx,
		`SELECT portfolio, balances, prices, total_value, ts
		 FROM snapshots WHERE portfolio = ? AND ts >= ? ORDER BY ts`, portfolio, since)
	if err != nil {
		return nil, errors.Wrap(err, "query snapshots")
	}
	defer rows.Close()

	var out []domain.PortfolioSnapshot
	for rows.Next() {
		var name, balancesRaw, pricesRaw, totalRaw, tsRaw string
		if err := rows.Scan(&name, &balancesRaw, &pricesRaw, &totalRaw, &tsRaw); err != nil {
			return nil, errors.Wrap(err, "scan snapshot row")
		}

		var snapshot domain.PortfolioSnapshot
		snapshot.Portfolio = name
		if err := json.Unmarshal([]byte(balancesRaw), &snapshot.Balances); err != nil {
			return nil, errors.Wrap(err, "decode balances")
		}
		if err := json.Unmarshal([]byte(pricesRaw), &snapshot.Prices); err != nil {
			return nil, errors.Wrap(err, "decode prices")
		}
		total, err := decimal.NewFromString(totalRaw)
		if err != nil {
			return nil, errors.Wrap(err, "parse total value")
		}
		snapshot.TotalValue = total
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, errors.Wrap(err, "parse snapshot timestamp")
		}
		snapshot.Timestamp = ts
		out = append(out, snapshot)
	}

	return out, rows.Err()
}

// SaveTransaction appends a ledger entry.
func (s *Store) SaveTransaction(ctx context.Context, tx domain.Transaction) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO transactions (id, portfolio, asset, type, side, quantity, price, fee, venue, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Portfolio, tx.Asset, string(tx.Type), tx.Side.String(),
		tx.Quantity.String(), tx.Price.String(), tx.Fee.String(), string(tx.Venue),
		tx.Timestamp.UTC().Format(time.RFC3339Nano))
	return errors.Wrap(err, "insert transaction")
}

// Transactions returns the portfolio's most recent ledger entries, newest
// first.
func (s *Store) Transactions(ctx context.Context, portfolio string, limit int) ([]domain.Transaction, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, asset, type, side, quantity, price, fee, venue, ts
		 FROM transactions WHERE portfolio = ? ORDER BY ts DESC LIMIT ?`, portfolio, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query transactions")
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var id, asset, txType, side, quantity, price, fee, venueName, tsRaw string
		if err := rows.Scan(&id, &asset, &txType, &side, &quantity, &price, &fee, &venueName, &tsRaw); err != nil {
			return nil, errors.Wrap(err, "scan transaction row")
		}

		q, err := decimal.NewFromString(quantity)
		if err != nil {
			return nil, errors.Wrap(err, "parse quantity")
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, errors.Wrap(err, "parse price")
		}
		f, err := decimal.NewFromString(fee)
		if err != nil {
			return nil, errors.Wrap(err, "parse fee")
		}
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, errors.Wrap(err, "parse transaction timestamp")
		}

		sideVal := domain.SideBuy
		if side == domain.SideSell.String() {
			sideVal = domain.SideSell
		}

		out = append(out, domain.Transaction{
			ID:        id,
			Portfolio: portfolio,
			Asset:     asset,
			Type:      domain.TransactionType(txType),
			Side:      sideVal,
			Quantity:  q,
			Price:     p,
			Fee:       f,
			Venue:     domain.Venue(venueName),
			Timestamp: ts,
		})
	}

	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
