package tushare

import (
	"encoding/json"
	"fmt"
	"time"

	"stock-quant/internal/models"

	"github.com/go-resty/resty/v2"
)

// Client tushare pro HTTP 接口客户端。
// 接口全局限频约 1000 次/分钟，调用节奏由上层控制。
type Client struct {
	baseURL string
	token   string
	client  *resty.Client
}

type apiRequest struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields"`
}

type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Fields []string            `json:"fields"`
		Items  [][]json.RawMessage `json:"items"`
	} `json:"data"`
}

func NewClient(baseURL, token string) *Client {
	client := resty.New()
	client.SetTimeout(30 * time.Second)

	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  client,
	}
}

// call 发送一次接口调用并做基本校验
func (c *Client) call(apiName string, params map[string]string, fields string) (*apiResponse, error) {
	var result apiResponse
	resp, err := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(apiRequest{APIName: apiName, Token: c.token, Params: params, Fields: fields}).
		SetResult(&result).
		Post(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("tushare %s 请求失败: %w", apiName, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("tushare %s 返回 HTTP %d", apiName, resp.StatusCode())
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("tushare %s 返回错误: %s", apiName, result.Msg)
	}
	return &result, nil
}

// fieldIndex 将返回的列名映射为下标
func fieldIndex(fields []string) map[string]int {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f] = i
	}
	return idx
}

func stringAt(item []json.RawMessage, idx map[string]int, field string) *string {
	i, ok := idx[field]
	if !ok || i >= len(item) || string(item[i]) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(item[i], &s); err != nil {
		return nil
	}
	return &s
}

func floatAt(item []json.RawMessage, idx map[string]int, field string) *float64 {
	i, ok := idx[field]
	if !ok || i >= len(item) || string(item[i]) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(item[i], &f); err != nil {
		return nil
	}
	return &f
}

// StockBasic 拉取全部股票基础信息
func (c *Client) StockBasic() ([]models.StockInfo, error) {
	result, err := c.call("stock_basic", map[string]string{},
		"ts_code,symbol,name,area,industry,cnspell,market,list_date,act_name,act_ent_type")
	if err != nil {
		return nil, err
	}

	idx := fieldIndex(result.Data.Fields)
	stocks := make([]models.StockInfo, 0, len(result.Data.Items))
	for _, item := range result.Data.Items {
		code := stringAt(item, idx, "ts_code")
		if code == nil || *code == "" {
			continue
		}
		stocks = append(stocks, models.StockInfo{
			TsCode:     *code,
			Symbol:     stringAt(item, idx, "symbol"),
			Name:       stringAt(item, idx, "name"),
			Area:       stringAt(item, idx, "area"),
			Industry:   stringAt(item, idx, "industry"),
			Cnspell:    stringAt(item, idx, "cnspell"),
			Market:     stringAt(item, idx, "market"),
			ListDate:   stringAt(item, idx, "list_date"),
			ActName:    stringAt(item, idx, "act_name"),
			ActEntType: stringAt(item, idx, "act_ent_type"),
		})
	}
	return stocks, nil
}

// Daily 拉取单只股票一段日期区间内的日线行情，日期格式 YYYYMMDD
func (c *Client) Daily(tsCode, startDate, endDate string) ([]models.StockDaily, error) {
	result, err := c.call("daily", map[string]string{
		"ts_code":    tsCode,
		"start_date": startDate,
		"end_date":   endDate,
	}, "ts_code,trade_date,open,high,low,close,pre_close,change,pct_chg,vol,amount")
	if err != nil {
		return nil, err
	}

	idx := fieldIndex(result.Data.Fields)
	bars := make([]models.StockDaily, 0, len(result.Data.Items))
	for _, item := range result.Data.Items {
		code := stringAt(item, idx, "ts_code")
		date := stringAt(item, idx, "trade_date")
		if code == nil || date == nil {
			return nil, fmt.Errorf("tushare daily 返回缺少 ts_code/trade_date (ts_code=%s)", tsCode)
		}
		bars = append(bars, models.StockDaily{
			TsCode:    *code,
			TradeDate: *date,
			Open:      floatAt(item, idx, "open"),
			High:      floatAt(item, idx, "high"),
			Low:       floatAt(item, idx, "low"),
			Close:     floatAt(item, idx, "close"),
			PreClose:  floatAt(item, idx, "pre_close"),
			Change:    floatAt(item, idx, "change"),
			PctChg:    floatAt(item, idx, "pct_chg"),
			Vol:       floatAt(item, idx, "vol"),
			Amount:    floatAt(item, idx, "amount"),
		})
	}
	return bars, nil
}
