package quant

import (
	"fmt"
	"math"
)

// Simulate 按时间顺序单线程走完 (K线, 指标, 信号) 序列，
// 维护一个账户状态，返回完整资金曲线和成交记录。
//
// 仓位规则：
//   - 空仓遇买入信号：按 floor(现金 × 1% / ATR) 买入
//   - 持仓遇卖出信号：全部清仓
//   - 持仓期间每日重算目标仓位 floor(总资产 × 1% / ATR)，
//     超出 持仓+adjust 则加仓，低于 持仓-adjust 则减仓
//
// 买入股数始终被钳制在可用现金范围内，卖出被钳制在持仓范围内，
// 因此现金与持仓在模拟全程非负。
// 序列中任一最高/最低/收盘价缺失（NaN）立即返回 ErrMissingBar：
// 缺失的高低价会让 ATR 从该根起永久为 NaN，仓位与止损判定随之失真，
// 宁可整次模拟失败也不带病跑完。
func Simulate(bars []Bar, indicators []IndicatorRow, signals []Signal, account *Account, adjust int) ([]TradeResult, []OperateRecord, error) {
	if len(bars) != len(indicators) || len(bars) != len(signals) {
		return nil, nil, fmt.Errorf("quant: series length mismatch: bars=%d indicators=%d signals=%d",
			len(bars), len(indicators), len(signals))
	}

	results := make([]TradeResult, 0, len(bars))
	var operates []OperateRecord
	hasBuy := false

	for i, bar := range bars {
		if math.IsNaN(bar.Close) || math.IsNaN(bar.High) || math.IsNaN(bar.Low) {
			return nil, nil, fmt.Errorf("%w: code=%s date=%s", ErrMissingBar, bar.Code, bar.Date)
		}
		ind := indicators[i]
		sig := signals[i]

		if sig == SignalEnter && !hasBuy {
			hasBuy = true
			amount := positionSize(account.CashAvailable(), ind.ATR)
			amount = clampBuy(account, amount, bar.Close)
			if amount > 0 {
				account.SendOrder(bar.Code, amount, bar.Close, OrderBuy)
				operates = append(operates, record(account, bar, OrderBuy, amount))
			}
		} else if sig == SignalExit && hasBuy {
			hasBuy = false
			amount := account.HoldAvailable(bar.Code)
			if amount > 0 {
				account.SendOrder(bar.Code, amount, bar.Close, OrderSell)
				operates = append(operates, record(account, bar, OrderSell, amount))
			}
		}

		// 动态调整持仓：目标仓位随 ATR 升高收缩、随权益复利扩张
		if hasBuy {
			target := positionSize(account.LatestAssets(bar.Close), ind.ATR)
			held := account.HoldAvailable(bar.Code)
			if target > held+adjust {
				amount := clampBuy(account, target-held, bar.Close)
				if amount > 0 {
					account.SendOrder(bar.Code, amount, bar.Close, OrderBuy)
					operates = append(operates, record(account, bar, OrderBuy, amount))
				}
			} else if target < held-adjust {
				amount := held - target
				account.SendOrder(bar.Code, amount, bar.Close, OrderSell)
				operates = append(operates, record(account, bar, OrderSell, amount))
			}
		}

		results = append(results, TradeResult{
			Code:        bar.Code,
			Date:        bar.Date,
			Open:        bar.Open,
			Close:       bar.Close,
			High:        bar.High,
			Low:         bar.Low,
			Volume:      bar.Volume,
			Signal:      sig,
			N1High:      ind.N1High,
			N2Low:       ind.N2Low,
			ATR:         ind.ATR,
			TotalAssets: account.LatestAssets(bar.Close),
		})
	}
	return results, operates, nil
}

// positionSize 波动率目标仓位：floor(权益 × 1% / ATR)。
// ATR 非正（如序列初始的平盘段）时无法定义仓位，返回 0。
func positionSize(equity, atr float64) int {
	if atr <= 0 || math.IsNaN(atr) {
		return 0
	}
	return int(math.Floor(equity * riskFraction / atr))
}

// clampBuy 将买入股数钳制到现金可承受的上限（含买入侧费用）
func clampBuy(account *Account, amount int, price float64) int {
	if price <= 0 {
		return 0
	}
	affordable := int(math.Floor(account.CashAvailable() / (price * (1 + account.commission + account.tax))))
	if amount > affordable {
		return affordable
	}
	return amount
}

func record(account *Account, bar Bar, orderType OrderType, amount int) OperateRecord {
	return OperateRecord{
		OrderType:  orderType,
		Hold:       account.HoldAvailable(bar.Code),
		Assets:     account.LatestAssets(bar.Close),
		OperateNum: amount,
		Close:      bar.Close,
		Date:       bar.Date,
	}
}
