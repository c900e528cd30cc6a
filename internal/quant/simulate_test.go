package quant

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateEnterThenExit(t *testing.T) {
	bars := []Bar{
		{Code: "000001.SZ", Date: "20240101", Close: 10},
		{Code: "000001.SZ", Date: "20240102", Close: 10},
		{Code: "000001.SZ", Date: "20240103", Close: 12},
	}
	indicators := flatIndicators(3, 9, 1, 1)
	signals := []Signal{SignalHold, SignalEnter, SignalExit}
	account := NewAccount(10000, 0, 0)

	// adjust 设大避免动态调仓干扰
	results, operates, err := Simulate(bars, indicators, signals, account, 100000)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Len(t, operates, 2)

	// 第二日按 floor(10000 × 1% / 1) = 100 股买入
	assert.Equal(t, OrderBuy, operates[0].OrderType)
	assert.Equal(t, 100, operates[0].OperateNum)
	assert.Equal(t, "20240102", operates[0].Date)

	// 第三日全部清仓，零费用下盈亏精确
	assert.Equal(t, OrderSell, operates[1].OrderType)
	assert.Equal(t, 100, operates[1].OperateNum)
	assert.Equal(t, 0, operates[1].Hold)
	assert.Equal(t, 10200.0, results[2].TotalAssets)
	assert.Equal(t, 10200.0, account.CashAvailable())
}

func TestSimulateBreakoutBuysWithPriorDayIndicators(t *testing.T) {
	// 第二日收盘上破第一日高点，信号右移后第三日执行买入，
	// 买入股数由第二日（而非第三日）的 ATR 决定
	bars := []Bar{
		{Code: "000001.SZ", Date: "20240101", Open: 10, High: 10, Low: 9, Close: 10},
		{Code: "000001.SZ", Date: "20240102", Open: 11, High: 12, Low: 11, Close: 12},
		{Code: "000001.SZ", Date: "20240103", Open: 9, High: 9, Low: 8, Close: 8},
	}
	indicators := BuildIndicators(bars, 1, 1, 14)
	signals := BuildSignals(bars, indicators, 2, 1)
	require.Equal(t, []Signal{SignalHold, SignalHold, SignalEnter}, signals)

	account := NewAccount(10000, 0, 0)
	_, operates, err := Simulate(bars, indicators, signals, account, 100000)
	require.NoError(t, err)
	require.Len(t, operates, 1)

	// 第二日 ATR = 1 + (2-1)×2/15，目标 floor(100 / ATR) = 88 股
	atrDay2 := 1.0 + 1.0*2.0/15
	assert.InDelta(t, atrDay2, indicators[2].ATR, 1e-12)
	assert.Equal(t, "20240103", operates[0].Date)
	assert.Equal(t, OrderBuy, operates[0].OrderType)
	assert.Equal(t, 88, operates[0].OperateNum)
}

func TestSimulateBuyClampedToCash(t *testing.T) {
	bars := []Bar{
		{Code: "000001.SZ", Date: "20240101", Close: 10},
		{Code: "000001.SZ", Date: "20240102", Close: 10},
	}
	// ATR 极小使目标仓位远超现金可承受范围
	indicators := flatIndicators(2, 9, 1, 0.001)
	signals := []Signal{SignalHold, SignalEnter}
	account := NewAccount(500, 0, 0)

	_, operates, err := Simulate(bars, indicators, signals, account, 100000)
	require.NoError(t, err)
	require.Len(t, operates, 1)

	// floor(500 / 10) = 50 股，现金恰好用尽且不为负
	assert.Equal(t, 50, operates[0].OperateNum)
	assert.GreaterOrEqual(t, account.CashAvailable(), 0.0)
}

func TestSimulateRebalanceGrowsPosition(t *testing.T) {
	bars := []Bar{
		{Code: "000001.SZ", Date: "20240101", Close: 10},
		{Code: "000001.SZ", Date: "20240102", Close: 10},
		{Code: "000001.SZ", Date: "20240103", Close: 20},
	}
	indicators := flatIndicators(3, 9, 1, 1)
	signals := []Signal{SignalHold, SignalEnter, SignalHold}
	account := NewAccount(10000, 0, 0)

	// adjust=0：任何目标仓位偏离都会被对齐
	_, operates, err := Simulate(bars, indicators, signals, account, 0)
	require.NoError(t, err)
	require.Len(t, operates, 2)

	// 第三日总资产 9000 + 100×20 = 11000，目标 110 股，加仓 10 股
	assert.Equal(t, OrderBuy, operates[1].OrderType)
	assert.Equal(t, 10, operates[1].OperateNum)
	assert.Equal(t, 110, operates[1].Hold)
}

func TestSimulateMissingClose(t *testing.T) {
	bars := []Bar{
		{Code: "000001.SZ", Date: "20240101", Close: 10},
		{Code: "000001.SZ", Date: "20240102", Close: math.NaN()},
	}
	indicators := flatIndicators(2, 9, 1, 1)
	signals := []Signal{SignalHold, SignalHold}

	_, _, err := Simulate(bars, indicators, signals, NewAccount(10000, 0, 0), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingBar)
	assert.Contains(t, err.Error(), "20240102")
}

func TestSimulateMissingHighOrLow(t *testing.T) {
	// 收盘价完好但高低价缺失：ATR 自该根起永久为 NaN，
	// 整次模拟必须失败而不是带着失真的仓位与止损跑完
	bars := []Bar{
		{Code: "000001.SZ", Date: "20240101", Open: 10, High: 10, Low: 9, Close: 10},
		{Code: "000001.SZ", Date: "20240102", Open: 10, High: math.NaN(), Low: 9, Close: 10},
		{Code: "000001.SZ", Date: "20240103", Open: 10, High: 11, Low: 10, Close: 11},
		{Code: "000001.SZ", Date: "20240104", Open: 11, High: 12, Low: 11, Close: 12},
	}
	indicators := BuildIndicators(bars, 2, 2, 14)
	signals := BuildSignals(bars, indicators, 2, 1)

	_, _, err := Simulate(bars, indicators, signals, NewAccount(10000, 0, 0), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingBar)
	assert.Contains(t, err.Error(), "20240102")

	bars[1].High = 11
	bars[1].Low = math.NaN()
	_, _, err = Simulate(bars, BuildIndicators(bars, 2, 2, 14), signals, NewAccount(10000, 0, 0), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingBar)
}

func TestSimulateLengthMismatch(t *testing.T) {
	bars := []Bar{{Close: 10}}
	_, _, err := Simulate(bars, nil, nil, NewAccount(10000, 0, 0), 0)
	require.Error(t, err)
}

func TestPositionSize(t *testing.T) {
	assert.Equal(t, 100, positionSize(10000, 1))
	assert.Equal(t, 0, positionSize(10000, 0))
	assert.Equal(t, 0, positionSize(10000, math.NaN()))
}
