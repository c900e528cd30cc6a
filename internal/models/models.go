package models

// StockInfo 股票基础信息（来自 tushare stock_basic 接口）
// 接口返回不一定有值，因此除主键外均用指针来接一下
type StockInfo struct {
	TsCode     string  `json:"ts_code" gorm:"primaryKey;size:16"`
	Symbol     *string `json:"symbol"`
	Name       *string `json:"name"`
	Area       *string `json:"area"`
	Industry   *string `json:"industry"`
	Cnspell    *string `json:"cnspell"`
	Market     *string `json:"market"` // 市场类型（主板/创业板/科创板/CDR）
	ListDate   *string `json:"list_date"`
	ActName    *string `json:"act_name"`
	ActEntType *string `json:"act_ent_type"`
}

func (StockInfo) TableName() string {
	return "stock_info_list"
}

// StockDaily 日线行情，一只股票一天一行
type StockDaily struct {
	ID        uint     `json:"-" gorm:"primaryKey"`
	TsCode    string   `json:"ts_code" gorm:"size:16;index:idx_code_date,unique"`
	TradeDate string   `json:"trade_date" gorm:"size:8;index:idx_code_date,unique"` // YYYYMMDD
	Open      *float64 `json:"open"`
	High      *float64 `json:"high"`
	Low       *float64 `json:"low"`
	Close     *float64 `json:"close"`
	PreClose  *float64 `json:"pre_close"` // 昨收价【除权价，前复权】
	Change    *float64 `json:"change"`
	PctChg    *float64 `json:"pct_chg"`
	Vol       *float64 `json:"vol"`    // 成交量（手）
	Amount    *float64 `json:"amount"` // 成交额（千元）
}

func (StockDaily) TableName() string {
	return "stock_daily_info"
}

// StockRps 股价相对强度，仅保留每日排名前 300 的票
type StockRps struct {
	ID        uint     `json:"-" gorm:"primaryKey"`
	TsCode    string   `json:"ts_code" gorm:"size:16;index"`
	TradeDate string   `json:"trade_date" gorm:"size:8;index"`
	Rps       *float64 `json:"rps"`
	Increase  *float64 `json:"increase"` // 指定时间涨幅（百分比）
}

func (StockRps) TableName() string {
	return "rps_values"
}
