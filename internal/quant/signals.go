package quant

// BuildSignals 根据指标行生成逐 K 线交易信号。
// 规则按固定优先级评估（海龟式突破/止损）：
//  1. 空仓且收盘价上破 N1 日最高价 → 买入，记录买入价
//  2. 持仓且收盘价较买入价回落超过 ATR × loss → 止损卖出
//  3. 持仓且收盘价较买入价上涨超过 ATR × win → 止盈卖出
//  4. 收盘价跌破 N2 日最低价 → 卖出（无论持仓状态）
//  5. 其余情况无信号
//
// 生成后整段右移一位（首位置 Hold），使第 i 日的执行依据第 i-1 日的决策。
func BuildSignals(bars []Bar, indicators []IndicatorRow, win, loss float64) []Signal {
	signals := make([]Signal, len(bars))

	// 买入价，空仓时为 0
	buyPrice := 0.0
	for i, bar := range bars {
		ind := indicators[i]
		switch {
		case buyPrice == 0 && bar.Close > ind.N1High:
			buyPrice = bar.Close
			signals[i] = SignalEnter
		case buyPrice > 0 && bar.Close < buyPrice && bar.Close < buyPrice-ind.ATR*loss:
			buyPrice = 0
			signals[i] = SignalExit
		case buyPrice > 0 && bar.Close > buyPrice && bar.Close > buyPrice+ind.ATR*win:
			buyPrice = 0
			signals[i] = SignalExit
		case bar.Close < ind.N2Low:
			buyPrice = 0
			signals[i] = SignalExit
		default:
			signals[i] = SignalHold
		}
	}

	if len(signals) == 0 {
		return signals
	}
	// 右移一位，首日无可执行信号
	shifted := make([]Signal, len(signals))
	copy(shifted[1:], signals[:len(signals)-1])
	return shifted
}
