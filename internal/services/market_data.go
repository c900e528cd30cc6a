package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"stock-quant/internal/models"
	"stock-quant/internal/quant"
	"stock-quant/internal/services/tushare"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertChunkSize = 5000

// MarketData 行情数据服务：股票列表初始化与日线补拉。
// 写路径走 gorm，读路径（日期范围、代码列表）走 quant.Store。
type MarketData struct {
	db      *gorm.DB
	store   *quant.Store
	ts      *tushare.Client
	workers int
	delay   time.Duration // 每次外部接口调用后的暂停，配合限频
}

func NewMarketData(db *gorm.DB, store *quant.Store, ts *tushare.Client, workers, delayMS int) *MarketData {
	if workers <= 0 {
		workers = 10
	}
	if delayMS <= 0 {
		delayMS = 100
	}
	return &MarketData{
		db:      db,
		store:   store,
		ts:      ts,
		workers: workers,
		delay:   time.Duration(delayMS) * time.Millisecond,
	}
}

// InitStockList 拉取全部股票基础信息并入库，已存在的代码跳过
func (m *MarketData) InitStockList() (int, error) {
	stocks, err := m.ts.StockBasic()
	if err != nil {
		return 0, fmt.Errorf("获取股票列表失败: %w", err)
	}
	if len(stocks) == 0 {
		return 0, nil
	}

	err = m.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			CreateInBatches(stocks, insertChunkSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("写入股票列表失败: %w", err)
	}
	log.Printf("股票列表初始化完成: %d 条", len(stocks))
	return len(stocks), nil
}

// FetchDailyRange 拉取全市场截至 closingDate（空则今天）回溯 rangeDays
// 个自然日的日线并入库。代码按下标取模分配给固定协程池；每个协程“自带节流”，
// 每次接口调用后暂停固定时长，保证整体低于上游限频。
// 单只股票拉取失败仅记录日志并跳过；入库前按本地已有日期范围过滤增量。
// progress 非空时每处理完一只股票回调一次。
func (m *MarketData) FetchDailyRange(closingDate string, rangeDays int, progress func(done, total int)) (int, error) {
	codes, err := m.store.ListStockCodes()
	if err != nil {
		return 0, err
	}
	if len(codes) == 0 {
		return 0, fmt.Errorf("股票列表为空，请先初始化")
	}

	today := time.Now()
	if closingDate != "" {
		today, err = time.Parse(quant.DateLayout, closingDate)
		if err != nil {
			return 0, fmt.Errorf("日期解析失败 %q: %w", closingDate, err)
		}
	}
	if rangeDays <= 0 {
		rangeDays = quant.DefaultLookback
	}
	pastDate := today.AddDate(0, 0, -rangeDays)
	endDate := today.Format(quant.DateLayout)
	startDate := pastDate.Format(quant.DateLayout)

	log.Printf("开始拉取日线: %s ~ %s, 股票数=%d, 协程数=%d", startDate, endDate, len(codes), m.workers)

	var (
		mu      sync.Mutex
		allBars []models.StockDaily
		done    int
		wg      sync.WaitGroup
	)
	for offset := 0; offset < m.workers; offset++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for idx, code := range codes {
				if idx%m.workers != offset {
					continue
				}
				bars, err := m.ts.Daily(code, startDate, endDate)
				if err != nil {
					log.Printf("拉取失败，跳过 %s: %v", code, err)
				} else {
					mu.Lock()
					allBars = append(allBars, bars...)
					mu.Unlock()
				}
				mu.Lock()
				done++
				if progress != nil {
					progress(done, len(codes))
				}
				mu.Unlock()
				// 限频：接口一分钟最多 1000 次，按协程数与暂停时长留足余量
				time.Sleep(m.delay)
			}
		}(offset)
	}
	wg.Wait()

	needInsert, err := m.filterNovel(allBars)
	if err != nil {
		return 0, err
	}
	log.Printf("拉取完成: 共 %d 条，新增 %d 条", len(allBars), len(needInsert))
	if len(needInsert) == 0 {
		return 0, nil
	}

	err = m.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(needInsert, insertChunkSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("写入日线失败: %w", err)
	}
	return len(needInsert), nil
}

// filterNovel 按本地已有日期范围过滤出尚未入库的日线
func (m *MarketData) filterNovel(bars []models.StockDaily) ([]models.StockDaily, error) {
	minDate, maxDate, ok, err := m.store.DailyDateRange()
	if err != nil {
		return nil, err
	}
	if !ok {
		// 本地还没有任何数据，全部视为新增
		return bars, nil
	}
	return FilterNovelBars(bars, minDate, maxDate), nil
}

// FilterNovelBars 保留落在本地已有日期范围之外的日线：
// date < minDate 或 date > maxDate
func FilterNovelBars(bars []models.StockDaily, minDate, maxDate string) []models.StockDaily {
	novel := make([]models.StockDaily, 0, len(bars))
	for _, bar := range bars {
		if bar.TradeDate < minDate || bar.TradeDate > maxDate {
			novel = append(novel, bar)
		}
	}
	return novel
}
