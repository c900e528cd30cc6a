package quant

import "math"

// rollingMax 计算滑动窗口最大值，单调队列实现，每根 K 线摊还 O(1)。
// 窗口包含当前值在内的最近 period 个值，序列不足 period 时取已有部分。
func rollingMax(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	// deque 保存候选下标，对应值单调递减
	deque := make([]int, 0, period)
	for i, v := range values {
		for len(deque) > 0 && values[deque[len(deque)-1]] <= v {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, i)
		if deque[0] <= i-period {
			deque = deque[1:]
		}
		result[i] = values[deque[0]]
	}
	return result
}

// rollingMin 计算滑动窗口最小值，与 rollingMax 对称
func rollingMin(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	deque := make([]int, 0, period)
	for i, v := range values {
		for len(deque) > 0 && values[deque[len(deque)-1]] >= v {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, i)
		if deque[0] <= i-period {
			deque = deque[1:]
		}
		result[i] = values[deque[0]]
	}
	return result
}

// trueRange 单根 K 线的真实波幅
func trueRange(bar Bar, prevClose float64, first bool) float64 {
	hl := bar.High - bar.Low
	if first {
		return hl
	}
	hc := math.Abs(bar.High - prevClose)
	lc := math.Abs(bar.Low - prevClose)
	tr := hl
	if hc > tr {
		tr = hc
	}
	if lc > tr {
		tr = lc
	}
	return tr
}

// calcATR 流式 ATR：真实波幅的指数均线，平滑系数 2/(period+1)，
// 以首根真实波幅为种子，因此从第 0 根起即有值
func calcATR(bars []Bar, period int) []float64 {
	atr := make([]float64, len(bars))
	k := 2.0 / (float64(period) + 1)
	for i, bar := range bars {
		tr := trueRange(bar, prevCloseOf(bars, i), i == 0)
		if i == 0 {
			atr[i] = tr
			continue
		}
		atr[i] = atr[i-1] + (tr-atr[i-1])*k
	}
	return atr
}

func prevCloseOf(bars []Bar, i int) float64 {
	if i == 0 {
		return 0
	}
	return bars[i-1].Close
}

// shiftForward 将序列整体右移一位，首位复制原首位。
// 右移后第 i 位的值只依赖第 i-1 根及更早的 K 线。
func shiftForward(values []float64) []float64 {
	if len(values) == 0 {
		return values
	}
	shifted := make([]float64, len(values))
	shifted[0] = values[0]
	copy(shifted[1:], values[:len(values)-1])
	return shifted
}

// BuildIndicators 为整段 K 线序列计算指标行。
// n1 为突破高点窗口，n2 为跌破低点窗口，period 为 ATR 周期。
// 三个序列右移一位后，首行再复制第二行，保证第 0 行与第 1 行相同
// 且任意一行都不包含当日信息。
func BuildIndicators(bars []Bar, n1, n2, period int) []IndicatorRow {
	if len(bars) == 0 {
		return nil
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, bar := range bars {
		highs[i] = bar.High
		lows[i] = bar.Low
	}

	n1High := shiftForward(rollingMax(highs, n1))
	n2Low := shiftForward(rollingMin(lows, n2))
	atr := shiftForward(calcATR(bars, period))

	rows := make([]IndicatorRow, len(bars))
	for i := range bars {
		rows[i] = IndicatorRow{N1High: n1High[i], N2Low: n2Low[i], ATR: atr[i]}
	}
	if len(rows) > 1 {
		rows[0] = rows[1]
	}
	return rows
}
