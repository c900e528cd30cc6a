package quant

import (
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"
)

const (
	// DateLayout 交易日期格式
	DateLayout = "20060102"

	// DefaultLookback RPS 默认回看 K 线根数
	DefaultLookback = 120

	// rpsKeepTop 每个交易日仅持久化排名前 300 的票
	rpsKeepTop = 300
)

// RpsEngine 相对强度排名引擎。
// 代码列表构建后只读，按下标取模轮转分配给固定数量的工作协程；
// 全部协程汇合后一次性批量落库（join-then-write）。
type RpsEngine struct {
	source   BarSource
	sink     RpsSink
	workers  int
	lookback int
}

// NewRpsEngine 创建引擎。workers/lookback 非正时取默认值（10 / 120）。
func NewRpsEngine(source BarSource, sink RpsSink, workers, lookback int) *RpsEngine {
	if workers <= 0 {
		workers = 10
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &RpsEngine{source: source, sink: sink, workers: workers, lookback: lookback}
}

// increase 单只股票的区间涨幅
type increase struct {
	tsCode string
	value  float64
}

// Compute 计算 targetDate（空则今天）的全市场 RPS 并持久化前 300 名。
// 当日已有数据时直接返回，不重复计算。
func (e *RpsEngine) Compute(targetDate string) error {
	if targetDate == "" {
		targetDate = time.Now().Format(DateLayout)
	}
	if _, err := time.Parse(DateLayout, targetDate); err != nil {
		return fmt.Errorf("invalid target date %q: %w", targetDate, err)
	}

	// 幂等守卫：每个交易日至多计算一次
	exists, err := e.sink.HasRpsDate(targetDate)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("RPS 数据已存在，跳过计算: %s", targetDate)
		return nil
	}

	codes, err := e.source.ListStockCodes()
	if err != nil {
		return err
	}
	if len(codes) == 0 {
		return fmt.Errorf("quant: empty stock universe")
	}
	log.Printf("开始计算 RPS: date=%s, 股票数=%d, 协程数=%d", targetDate, len(codes), e.workers)

	results := make(chan []increase, e.workers)
	var wg sync.WaitGroup
	for offset := 0; offset < e.workers; offset++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			var part []increase
			for idx, code := range codes {
				if idx%e.workers != offset {
					continue
				}
				inc, err := e.codeIncrease(code, targetDate)
				if err != nil {
					// 单只股票失败只影响自身，不中断其余计算
					log.Printf("跳过 %s: %v", code, err)
					continue
				}
				part = append(part, increase{tsCode: code, value: inc})
			}
			results <- part
		}(offset)
	}
	wg.Wait()
	close(results)

	all := make([]increase, 0, len(codes))
	for part := range results {
		all = append(all, part...)
	}
	if len(all) == 0 {
		return fmt.Errorf("quant: no stock produced a return for %s", targetDate)
	}

	rpsRows := rankIncreases(all, targetDate)
	return e.sink.InsertRpsBatch(rpsRows)
}

// codeIncrease 计算单只股票截至 targetDate 的回看区间涨幅。
// targetDate 非交易日时按自然日逐天回退到最近的交易日；
// 序列不足回看窗口时从序列起点起算。
func (e *RpsEngine) codeIncrease(code, targetDate string) (float64, error) {
	bars, err := e.source.LoadDailyBars(code)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no local bars")
	}

	byDate := make(map[string]int, len(bars))
	for idx, bar := range bars {
		byDate[bar.Date] = idx
	}

	date, _ := time.Parse(DateLayout, targetDate)
	endIdx := -1
	for {
		dateStr := date.Format(DateLayout)
		if idx, ok := byDate[dateStr]; ok {
			endIdx = idx
			break
		}
		if dateStr < bars[0].Date {
			return 0, fmt.Errorf("no bar at or before %s", targetDate)
		}
		date = date.AddDate(0, 0, -1)
	}

	startIdx := endIdx - e.lookback
	if startIdx < 0 {
		startIdx = 0
	}

	closeNow, closeThen := bars[endIdx].Close, bars[startIdx].Close
	if math.IsNaN(closeNow) || math.IsNaN(closeThen) || closeThen == 0 {
		return 0, fmt.Errorf("%w: close missing in window", ErrMissingBar)
	}
	return (closeNow - closeThen) / closeThen * 100, nil
}

// rankIncreases 升序排序后按名次计算百分位：
// percent_rank = (rank - 1) / (total - 1) × 100，只保留末尾（最强）300 条。
func rankIncreases(all []increase, targetDate string) []RpsRow {
	sort.Slice(all, func(i, j int) bool { return all[i].value < all[j].value })

	total := len(all)
	keepFrom := total - rpsKeepTop
	if keepFrom < 0 {
		keepFrom = 0
	}

	rpsRows := make([]RpsRow, 0, total-keepFrom)
	for idx := keepFrom; idx < total; idx++ {
		rps := 100.0
		if total > 1 {
			rps = float64(idx) / float64(total-1) * 100
		}
		rpsRows = append(rpsRows, RpsRow{
			TsCode:    all[idx].tsCode,
			TradeDate: targetDate,
			Increase:  all[idx].value,
			Rps:       rps,
		})
	}
	return rpsRows
}
