package quant

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBarSource struct {
	bars map[string][]Bar
}

func (f *fakeBarSource) ListStockCodes() ([]string, error) {
	codes := make([]string, 0, len(f.bars))
	for code := range f.bars {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

func (f *fakeBarSource) LoadDailyBars(code string) ([]Bar, error) {
	return f.bars[code], nil
}

type fakeRpsSink struct {
	mu      sync.Mutex
	dates   map[string]bool
	rows    []RpsRow
	inserts int
}

func newFakeRpsSink() *fakeRpsSink {
	return &fakeRpsSink{dates: make(map[string]bool)}
}

func (f *fakeRpsSink) HasRpsDate(date string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dates[date], nil
}

func (f *fakeRpsSink) InsertRpsBatch(rows []RpsRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, rows...)
	f.inserts++
	for _, row := range rows {
		f.dates[row.TradeDate] = true
	}
	return nil
}

func seriesBars(code string, dates []string, closes []float64) []Bar {
	bars := make([]Bar, len(dates))
	for i := range dates {
		bars[i] = Bar{Code: code, Date: dates[i], Close: closes[i]}
	}
	return bars
}

func TestRpsComputePercentiles(t *testing.T) {
	dates := []string{"20240101", "20240102"}
	source := &fakeBarSource{bars: map[string][]Bar{
		"A": seriesBars("A", dates, []float64{10, 11}),   // +10%
		"B": seriesBars("B", dates, []float64{10, 12}),   // +20%
		"C": seriesBars("C", dates, []float64{10, 10.5}), // +5%
	}}
	sink := newFakeRpsSink()

	engine := NewRpsEngine(source, sink, 2, 1)
	require.NoError(t, engine.Compute("20240102"))
	require.Len(t, sink.rows, 3)

	// 按涨幅升序持久化，百分位为 (名次-1)/(总数-1)×100
	assert.Equal(t, "C", sink.rows[0].TsCode)
	assert.Equal(t, 0.0, sink.rows[0].Rps)
	assert.Equal(t, "A", sink.rows[1].TsCode)
	assert.Equal(t, 50.0, sink.rows[1].Rps)
	assert.Equal(t, "B", sink.rows[2].TsCode)
	assert.Equal(t, 100.0, sink.rows[2].Rps)

	assert.InDelta(t, 5.0, sink.rows[0].Increase, 1e-9)
	assert.InDelta(t, 20.0, sink.rows[2].Increase, 1e-9)
	for _, row := range sink.rows {
		assert.Equal(t, "20240102", row.TradeDate)
	}
}

func TestRpsComputeTwoStocks(t *testing.T) {
	dates := []string{"20240101", "20240102"}
	source := &fakeBarSource{bars: map[string][]Bar{
		"A": seriesBars("A", dates, []float64{10, 11}),
		"B": seriesBars("B", dates, []float64{10, 9}),
	}}
	sink := newFakeRpsSink()

	engine := NewRpsEngine(source, sink, 4, 1)
	require.NoError(t, engine.Compute("20240102"))
	require.Len(t, sink.rows, 2)
	assert.Equal(t, 0.0, sink.rows[0].Rps)
	assert.Equal(t, 100.0, sink.rows[1].Rps)
}

func TestRpsComputeIdempotent(t *testing.T) {
	dates := []string{"20240101", "20240102"}
	source := &fakeBarSource{bars: map[string][]Bar{
		"A": seriesBars("A", dates, []float64{10, 11}),
		"B": seriesBars("B", dates, []float64{10, 12}),
	}}
	sink := newFakeRpsSink()
	engine := NewRpsEngine(source, sink, 2, 1)

	require.NoError(t, engine.Compute("20240102"))
	require.NoError(t, engine.Compute("20240102"))

	// 第二次命中幂等守卫，不再写入
	assert.Equal(t, 1, sink.inserts)
}

func TestRpsComputeStepsBackToTradingDay(t *testing.T) {
	// 目标日为非交易日（周末），回退到最近的交易日
	dates := []string{"20240104", "20240105"}
	source := &fakeBarSource{bars: map[string][]Bar{
		"A": seriesBars("A", dates, []float64{10, 11}),
		"B": seriesBars("B", dates, []float64{10, 12}),
	}}
	sink := newFakeRpsSink()

	engine := NewRpsEngine(source, sink, 2, 1)
	require.NoError(t, engine.Compute("20240107"))
	require.Len(t, sink.rows, 2)
	// 落库日期仍为请求日期
	assert.Equal(t, "20240107", sink.rows[0].TradeDate)
	assert.InDelta(t, 10.0, sink.rows[0].Increase, 1e-9)
}

func TestRpsComputeLookbackClampedToSeriesStart(t *testing.T) {
	dates := []string{"20240101", "20240102", "20240103"}
	source := &fakeBarSource{bars: map[string][]Bar{
		"A": seriesBars("A", dates, []float64{10, 12, 15}),
		"B": seriesBars("B", dates, []float64{10, 10, 11}),
	}}
	sink := newFakeRpsSink()

	// 回看窗口远大于序列长度，从序列起点起算
	engine := NewRpsEngine(source, sink, 2, 100)
	require.NoError(t, engine.Compute("20240103"))
	require.Len(t, sink.rows, 2)
	assert.Equal(t, "B", sink.rows[0].TsCode)
	assert.InDelta(t, 10.0, sink.rows[0].Increase, 1e-9)
	assert.Equal(t, "A", sink.rows[1].TsCode)
	assert.InDelta(t, 50.0, sink.rows[1].Increase, 1e-9)
}

func TestRpsComputeInvalidDate(t *testing.T) {
	engine := NewRpsEngine(&fakeBarSource{}, newFakeRpsSink(), 1, 1)
	assert.Error(t, engine.Compute("not-a-date"))
}

func TestRpsComputeSkipsBrokenCode(t *testing.T) {
	dates := []string{"20240101", "20240102"}
	source := &fakeBarSource{bars: map[string][]Bar{
		"A": seriesBars("A", dates, []float64{10, 11}),
		"B": seriesBars("B", dates, []float64{10, 12}),
		"C": nil, // 无本地数据
	}}
	sink := newFakeRpsSink()

	engine := NewRpsEngine(source, sink, 2, 1)
	require.NoError(t, engine.Compute("20240102"))
	assert.Len(t, sink.rows, 2)
}
