package quant

import "errors"

// OrderType 订单方向
type OrderType string

const (
	OrderBuy  OrderType = "Buy"  // 买入
	OrderSell OrderType = "Sell" // 卖出
)

const (
	// DefaultCommission 佣金系数，默认万 2.5
	DefaultCommission = 0.00025
	// DefaultTax 印花税系数，默认千 1
	DefaultTax = 0.001

	// riskFraction 单位波动承担的资金比例（1%）
	riskFraction = 0.01
)

var (
	// ErrMissingBar 序列中缺少必需的价格字段，终止该次模拟/计算
	ErrMissingBar = errors.New("quant: missing price field in bar series")
	// ErrNoResult 所有模拟均未产生有效结果
	ErrNoResult = errors.New("quant: no simulation produced a result")
)

// Bar 计算侧的日线行情。数据库中的 NULL 字段加载为 NaN，
// 由消费方在使用前检查（见 ErrMissingBar）。
type Bar struct {
	Code     string
	Date     string // YYYYMMDD
	Open     float64
	High     float64
	Low      float64
	Close    float64
	PreClose float64
	Volume   float64
	Amount   float64
}

// IndicatorRow 单根 K 线对应的指标行。三个序列均已整体右移一位，
// 即第 i 行的值来自第 i-1 根及更早的 K 线（首行复制第二行）。
type IndicatorRow struct {
	N1High float64 // N1 日最高价
	N2Low  float64 // N2 日最低价
	ATR    float64 // ATR
}

// Signal 单根 K 线的交易信号
type Signal int

const (
	SignalHold  Signal = iota // 无操作
	SignalEnter               // 突破买入
	SignalExit                // 止盈/止损/跌破卖出
)

// Params 一组策略参数，单次模拟期间不可变
type Params struct {
	N1     int     `json:"n1"`
	N2     int     `json:"n2"`
	Win    float64 `json:"win"`    // 止盈倍数
	Loss   float64 `json:"loss"`   // 止损倍数
	Adjust int     `json:"adjust"` // 动态持仓买入/卖出波动线
}

// ParamRanges 蒙特卡洛参数采样区间，均为左闭右开
type ParamRanges struct {
	N1Min, N1Max         int
	N2Min, N2Max         int
	WinMin, WinMax       float64
	LossMin, LossMax     float64
	AdjustMin, AdjustMax int
}

// DefaultParamRanges 默认采样区间
func DefaultParamRanges() ParamRanges {
	return ParamRanges{
		N1Min: 5, N1Max: 20,
		N2Min: 1, N2Max: 15,
		WinMin: 1.5, WinMax: 2.5,
		LossMin: 0.5, LossMax: 1.5,
		AdjustMin: 0, AdjustMax: 100,
	}
}

// TradeResult 资金曲线上的一行，每根输入 K 线对应一行
type TradeResult struct {
	Code        string  `json:"code"`
	Date        string  `json:"date"`
	Open        float64 `json:"open"`
	Close       float64 `json:"close"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Volume      float64 `json:"volume"`
	Signal      Signal  `json:"signal"`
	N1High      float64 `json:"n1_high"`
	N2Low       float64 `json:"n2_low"`
	ATR         float64 `json:"atr"`
	TotalAssets float64 `json:"total_assets"` // 当日交易后的总资产
}

// OperateRecord 每笔实际成交对应一条记录
type OperateRecord struct {
	OrderType  OrderType `json:"order_type"`
	Hold       int       `json:"hold"`        // 成交后持仓
	Assets     float64   `json:"assets"`      // 成交后总资产
	OperateNum int       `json:"operate_num"` // 成交股数
	Close      float64   `json:"close"`
	Date       string    `json:"date"`
}

// BacktestOutcome 单只股票的最优回测结果
type BacktestOutcome struct {
	Results  []TradeResult   `json:"trade_results"`
	Operates []OperateRecord `json:"operate_records"`
	Params   Params          `json:"best_params"`
}

// RpsRow 相对强度结果行
type RpsRow struct {
	TsCode    string
	TradeDate string
	Increase  float64 // 区间涨幅（百分比）
	Rps       float64 // 百分位排名
}

// BarSource 行情读取契约，由本地存储实现
type BarSource interface {
	ListStockCodes() ([]string, error)
	LoadDailyBars(code string) ([]Bar, error)
}

// RpsSink 相对强度结果写入契约
type RpsSink interface {
	HasRpsDate(date string) (bool, error)
	InsertRpsBatch(rows []RpsRow) error
}
