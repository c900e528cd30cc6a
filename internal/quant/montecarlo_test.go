package quant

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trendingBars(n int) []Bar {
	bars := make([]Bar, n)
	price := 10.0
	for i := range bars {
		// 缓慢上行并带波动，保证会触发突破买入
		if i%5 == 4 {
			price -= 0.3
		} else {
			price += 0.5
		}
		bars[i] = Bar{
			Code:  "000001.SZ",
			Date:  "202401" + string(rune('0'+i/10)) + string(rune('0'+i%10)),
			Open:  price - 0.2,
			High:  price + 0.5,
			Low:   price - 0.5,
			Close: price,
		}
	}
	return bars
}

func TestMonteCarloParamsWithinRanges(t *testing.T) {
	bars := trendingBars(60)
	ranges := ParamRanges{
		N1Min: 2, N1Max: 6,
		N2Min: 2, N2Max: 6,
		WinMin: 1.5, WinMax: 2.5,
		LossMin: 0.5, LossMax: 1.5,
		AdjustMin: 0, AdjustMax: 50,
	}

	outcome, err := MonteCarlo(bars, NewAccount(100000, 0, 0), ranges, 50, 4)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	require.Len(t, outcome.Results, len(bars))

	p := outcome.Params
	assert.GreaterOrEqual(t, p.N1, 2)
	assert.Less(t, p.N1, 6)
	assert.GreaterOrEqual(t, p.N2, 2)
	assert.Less(t, p.N2, 6)
	assert.GreaterOrEqual(t, p.Win, 1.5)
	assert.Less(t, p.Win, 2.5)
	assert.GreaterOrEqual(t, p.Loss, 0.5)
	assert.Less(t, p.Loss, 1.5)
	assert.GreaterOrEqual(t, p.Adjust, 0)
	assert.Less(t, p.Adjust, 50)

	// 最优结果的终值资产不低于初始资金归零线
	assert.Greater(t, outcome.Results[len(outcome.Results)-1].TotalAssets, 0.0)
}

func TestMonteCarloDegenerateRanges(t *testing.T) {
	bars := trendingBars(30)
	ranges := ParamRanges{
		N1Min: 5, N1Max: 5,
		N2Min: 3, N2Max: 3,
		WinMin: 2, WinMax: 2,
		LossMin: 1, LossMax: 1,
		AdjustMin: 10, AdjustMax: 10,
	}

	// workers 传 0 时回退为 CPU 核数减一
	outcome, err := MonteCarlo(bars, NewAccount(100000, 0, 0), ranges, 5, 0)
	require.NoError(t, err)

	// 退化区间恒取下界
	assert.Equal(t, Params{N1: 5, N2: 3, Win: 2, Loss: 1, Adjust: 10}, outcome.Params)
}

func TestMonteCarloAllTrialsFail(t *testing.T) {
	bars := []Bar{
		{Code: "000001.SZ", Date: "20240101", Close: math.NaN(), High: 1, Low: 1},
		{Code: "000001.SZ", Date: "20240102", Close: math.NaN(), High: 1, Low: 1},
	}

	_, err := MonteCarlo(bars, NewAccount(100000, 0, 0), DefaultParamRanges(), 5, 2)
	assert.ErrorIs(t, err, ErrNoResult)
}
