package quant

import (
	"log"
	"math/rand"
	"runtime"
	"sync"
	"time"
)

// indicator 周期固定 14 日，与原策略一致
const atrPeriod = 14

// MonteCarlo 纯随机参数搜索：每次试验从区间内独立均匀采样一组参数，
// 克隆初始账户并完整重算指标、信号与模拟，保留终值资产最高的一次。
// 终值相同的试验保留序号更早的一次。
//
// 各试验间除只读的 bars 外无共享可变状态，在固定大小的协程池上并行；
// workers 非正时取 CPU 核数减一。
func MonteCarlo(bars []Bar, account *Account, ranges ParamRanges, trials, workers int) (*BacktestOutcome, error) {
	if trials <= 0 {
		trials = 10000
	}

	if workers <= 0 {
		workers = runtime.NumCPU() - 1
	}
	if workers < 1 {
		workers = 1
	}
	if workers > trials {
		workers = trials
	}

	type best struct {
		total   float64
		trial   int
		outcome *BacktestOutcome
	}
	top := best{trial: trials}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(offset)))

			for trial := offset; trial < trials; trial += workers {
				params := sampleParams(rng, ranges)
				indicators := BuildIndicators(bars, params.N1, params.N2, atrPeriod)
				signals := BuildSignals(bars, indicators, params.Win, params.Loss)

				results, operates, err := Simulate(bars, indicators, signals, account.Clone(), params.Adjust)
				if err != nil {
					// 缺数据对所有参数组都成立，但只在首个试验报一次
					if trial == offset {
						log.Printf("模拟失败: %v", err)
					}
					continue
				}
				if len(results) == 0 {
					continue
				}

				total := results[len(results)-1].TotalAssets
				mu.Lock()
				if total > top.total || (total == top.total && top.outcome != nil && trial < top.trial) {
					top = best{
						total: total,
						trial: trial,
						outcome: &BacktestOutcome{
							Results:  results,
							Operates: operates,
							Params:   params,
						},
					}
				}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	if top.outcome == nil {
		return nil, ErrNoResult
	}
	return top.outcome, nil
}

func sampleParams(rng *rand.Rand, r ParamRanges) Params {
	return Params{
		N1:     sampleInt(rng, r.N1Min, r.N1Max),
		N2:     sampleInt(rng, r.N2Min, r.N2Max),
		Win:    r.WinMin + rng.Float64()*(r.WinMax-r.WinMin),
		Loss:   r.LossMin + rng.Float64()*(r.LossMax-r.LossMin),
		Adjust: sampleInt(rng, r.AdjustMin, r.AdjustMax),
	}
}

// sampleInt 从 [min, max) 均匀采样；区间退化时取下界
func sampleInt(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min)
}
