package quant

import (
	"database/sql"
	"fmt"
	"log"
	"math"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Store 行情与 RPS 结果的数据库访问。底层 *sql.DB 自带连接池，
// 各工作协程的查询各自从池中取连接，协程间不共享单个连接。
type Store struct {
	db *sql.DB
}

// NewStore 创建数据库连接
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db}, nil
}

// NewStoreWithDB 复用已有连接池（服务进程与 gorm 共用一个 *sql.DB）
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// ListStockCodes 获取全部股票代码
func (s *Store) ListStockCodes() ([]string, error) {
	rows, err := s.db.Query(`SELECT ts_code FROM stock_info_list`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan ts_code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// LoadDailyBars 加载单只股票的全部日线，按交易日期升序。
// NULL 价格字段映射为 NaN，由计算侧判定是否致命。
func (s *Store) LoadDailyBars(code string) ([]Bar, error) {
	query := `
		SELECT ts_code, trade_date, open, high, low, close, pre_close, vol, amount
		FROM stock_daily_info
		WHERE ts_code = ?
		ORDER BY trade_date ASC
	`
	rows, err := s.db.Query(query, code)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily bars: %w", err)
	}
	defer rows.Close()

	var bars []Bar
	for rows.Next() {
		var bar Bar
		var open, high, low, closePrice, preClose, vol, amount sql.NullFloat64
		if err := rows.Scan(&bar.Code, &bar.Date, &open, &high, &low, &closePrice, &preClose, &vol, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan daily bar: %w", err)
		}
		bar.Open = nullToNaN(open)
		bar.High = nullToNaN(high)
		bar.Low = nullToNaN(low)
		bar.Close = nullToNaN(closePrice)
		bar.PreClose = nullToNaN(preClose)
		bar.Volume = nullToNaN(vol)
		bar.Amount = nullToNaN(amount)
		bars = append(bars, bar)
	}
	return bars, rows.Err()
}

// DailyDateRange 返回日线表中最早与最晚的交易日期，表为空时 ok 为 false
func (s *Store) DailyDateRange() (minDate, maxDate string, ok bool, err error) {
	var minVal, maxVal sql.NullString
	row := s.db.QueryRow(`SELECT MIN(trade_date), MAX(trade_date) FROM stock_daily_info`)
	if err := row.Scan(&minVal, &maxVal); err != nil {
		return "", "", false, fmt.Errorf("failed to query date range: %w", err)
	}
	if !minVal.Valid || !maxVal.Valid {
		return "", "", false, nil
	}
	return minVal.String, maxVal.String, true, nil
}

// HasRpsDate 检查某交易日是否已有 RPS 数据（幂等守卫）
func (s *Store) HasRpsDate(date string) (bool, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM rps_values WHERE trade_date = ?`, date).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check rps date: %w", err)
	}
	return count > 0, nil
}

// InsertRpsBatch 在单个事务中批量写入 RPS 结果
func (s *Store) InsertRpsBatch(rpsRows []RpsRow) error {
	if len(rpsRows) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO rps_values (ts_code, trade_date, rps, increase) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare rps insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rpsRows {
		if _, err := stmt.Exec(row.TsCode, row.TradeDate, row.Rps, row.Increase); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert rps row (ts_code=%s): %w", row.TsCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rps batch: %w", err)
	}
	log.Printf("成功写入 %d 条 RPS 数据", len(rpsRows))
	return nil
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
