package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"stock-quant/internal/config"
	"stock-quant/internal/models"
	"stock-quant/internal/quant"
	"stock-quant/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type APIHandler struct {
	db     *gorm.DB
	store  *quant.Store
	market *services.MarketData
	cfg    *config.Config

	// background job state
	jobMu    sync.Mutex
	rpsJob   *jobStatus
	fetchJob *jobStatus
}

type jobStatus struct {
	Name      string     `json:"name"`
	Running   bool       `json:"running"`
	Date      string     `json:"date,omitempty"`
	Done      int        `json:"done"`
	Total     int        `json:"total"`
	Inserted  int        `json:"inserted"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func SetupRoutes(r *gin.RouterGroup, db *gorm.DB, store *quant.Store, market *services.MarketData, cfg *config.Config) *APIHandler {
	handler := &APIHandler{
		db:     db,
		store:  store,
		market: market,
		cfg:    cfg,
	}

	stock := r.Group("/stock")
	{
		// 基础数据
		stock.GET("/basic", handler.GetBasicInfo)
		stock.POST("/query", handler.QueryBasic)

		// 后台任务：RPS 计算与日线补拉
		stock.POST("/fetch_stock_rps_list", handler.FetchStockRps)
		stock.POST("/fetch_stock_daily_range", handler.FetchStockDailyRange)
		stock.GET("/jobs/status", handler.JobsStatus)
		stock.GET("/ws", handler.JobsWS)

		// RPS 查询与导出
		stock.POST("/rps-top", handler.RpsTop)
		stock.GET("/rps-top/export", handler.RpsTopExport)

		// 回测（同步）
		stock.POST("/backtest", handler.Backtest)
	}

	return handler
}

// GetBasicInfo 拉取并保存全部股票基础信息
func (h *APIHandler) GetBasicInfo(c *gin.Context) {
	count, err := h.market.InitStockList()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "count": count})
}

// QueryBasic 分页查询股票基础信息
func (h *APIHandler) QueryBasic(c *gin.Context) {
	var req struct {
		TsCode  *string `json:"ts_code"`
		Symbol  *string `json:"symbol"`
		Name    *string `json:"name"`
		Area    *string `json:"area"`
		Current int64   `json:"current"`
		Size    int64   `json:"size"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Current <= 0 {
		req.Current = 1
	}
	if req.Size <= 0 {
		req.Size = 20
	}

	query := h.db.Model(&models.StockInfo{})
	if req.TsCode != nil {
		query = query.Where("ts_code = ?", *req.TsCode)
	}
	if req.Symbol != nil {
		query = query.Where("symbol = ?", *req.Symbol)
	}
	if req.Name != nil {
		query = query.Where("name = ?", *req.Name)
	}
	if req.Area != nil {
		query = query.Where("area = ?", *req.Area)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var stocks []models.StockInfo
	offset := (req.Current - 1) * req.Size
	if err := query.Limit(int(req.Size)).Offset(int(offset)).Find(&stocks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    stocks,
		"current": req.Current,
		"size":    req.Size,
		"total":   total,
	})
}

// FetchStockRps 接受一个 RPS 计算请求并立即返回，计算在后台进行。
// 同一日期的重复计算由引擎内的幂等守卫拦截。
func (h *APIHandler) FetchStockRps(c *gin.Context) {
	var req struct {
		Date     string `json:"date"`
		Lookback int    `json:"lookback"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Date == "" {
		req.Date = time.Now().Format(quant.DateLayout)
	}

	h.jobMu.Lock()
	if h.rpsJob != nil && h.rpsJob.Running {
		status := *h.rpsJob
		h.jobMu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "rps job already running", "status": status})
		return
	}
	job := &jobStatus{Name: "rps", Running: true, Date: req.Date, StartedAt: time.Now()}
	h.rpsJob = job
	h.jobMu.Unlock()

	go h.runRpsJob(job, req.Date, req.Lookback)
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": "started", "status": job})
}

func (h *APIHandler) runRpsJob(job *jobStatus, date string, lookback int) {
	engine := quant.NewRpsEngine(h.store, h.store, h.cfg.RpsWorkers, lookback)
	err := engine.Compute(date)

	h.jobMu.Lock()
	defer h.jobMu.Unlock()
	job.Running = false
	now := time.Now()
	job.EndedAt = &now
	if err != nil {
		job.Error = err.Error()
		log.Printf("RPS 任务失败: %v", err)
	}
}

// FetchStockDailyRange 接受一个日线补拉请求并立即返回，拉取在后台进行
func (h *APIHandler) FetchStockDailyRange(c *gin.Context) {
	var req struct {
		ClosingDate string `json:"closing_date"`
		Range       int    `json:"range"`
	}
	_ = c.ShouldBindJSON(&req)

	h.jobMu.Lock()
	if h.fetchJob != nil && h.fetchJob.Running {
		status := *h.fetchJob
		h.jobMu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "fetch job already running", "status": status})
		return
	}
	job := &jobStatus{Name: "fetch_daily", Running: true, Date: req.ClosingDate, StartedAt: time.Now()}
	h.fetchJob = job
	h.jobMu.Unlock()

	go h.runFetchJob(job, req.ClosingDate, req.Range)
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": "started", "status": job})
}

func (h *APIHandler) runFetchJob(job *jobStatus, closingDate string, rangeDays int) {
	inserted, err := h.market.FetchDailyRange(closingDate, rangeDays, func(done, total int) {
		h.jobMu.Lock()
		job.Done = done
		job.Total = total
		h.jobMu.Unlock()
	})

	h.jobMu.Lock()
	defer h.jobMu.Unlock()
	job.Running = false
	job.Inserted = inserted
	now := time.Now()
	job.EndedAt = &now
	if err != nil {
		job.Error = err.Error()
		log.Printf("日线补拉任务失败: %v", err)
	}
}

// JobsStatus 返回两个后台任务的当前状态
func (h *APIHandler) JobsStatus(c *gin.Context) {
	h.jobMu.Lock()
	var rps, fetch *jobStatus
	if h.rpsJob != nil {
		status := *h.rpsJob
		rps = &status
	}
	if h.fetchJob != nil {
		status := *h.fetchJob
		fetch = &status
	}
	h.jobMu.Unlock()

	c.JSON(http.StatusOK, gin.H{"rps": rps, "fetch": fetch})
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// JobsWS 通过 WebSocket 每秒推送一次任务状态，写失败（客户端断开）即退出
func (h *APIHandler) JobsWS(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		h.jobMu.Lock()
		payload := gin.H{}
		if h.rpsJob != nil {
			status := *h.rpsJob
			payload["rps"] = status
		}
		if h.fetchJob != nil {
			status := *h.fetchJob
			payload["fetch"] = status
		}
		h.jobMu.Unlock()

		if err := conn.WriteJSON(payload); err != nil {
			return
		}
	}
}

type rpsTopRow struct {
	TsCode   string   `json:"ts_code"`
	Name     *string  `json:"name"`
	Rps      *float64 `json:"rps"`
	Increase *float64 `json:"increase"`
}

func (h *APIHandler) queryRpsTop(date string) ([]rpsTopRow, error) {
	var rows []rpsTopRow
	err := h.db.Table("rps_values").
		Select("rps_values.ts_code, stock_info_list.name, rps_values.rps, rps_values.increase").
		Joins("JOIN stock_info_list ON stock_info_list.ts_code = rps_values.ts_code").
		Where("rps_values.trade_date = ?", date).
		Order("rps_values.rps DESC").
		Scan(&rows).Error
	return rows, err
}

// RpsTop 查询某交易日的 RPS 排名（降序）
func (h *APIHandler) RpsTop(c *gin.Context) {
	var req struct {
		Date string `json:"date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Date == "" {
		c.JSON(http.StatusOK, []rpsTopRow{})
		return
	}

	rows, err := h.queryRpsTop(req.Date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// RpsTopExport 将某交易日的 RPS 排名导出为 xlsx
func (h *APIHandler) RpsTopExport(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return
	}

	rows, err := h.queryRpsTop(date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := []interface{}{"代码", "名称", "RPS", "区间涨幅(%)"}
	_ = f.SetSheetRow(sheet, "A1", &headers)
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		name := ""
		if row.Name != nil {
			name = *row.Name
		}
		values := []interface{}{row.TsCode, name, row.Rps, row.Increase}
		_ = f.SetSheetRow(sheet, cell, &values)
	}

	c.Header("Content-Disposition", `attachment; filename="rps_`+date+`.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		log.Printf("导出 RPS 失败: %v", err)
	}
}

// Backtest 对指定股票运行蒙特卡洛参数搜索回测，同步返回完整结果
func (h *APIHandler) Backtest(c *gin.Context) {
	var req struct {
		Codes       []string    `json:"codes"`
		InitCash    float64     `json:"init_cash"`
		Commission  *float64    `json:"commission"`
		Tax         *float64    `json:"tax"`
		Trials      int         `json:"trials"`
		N1Range     *[2]int     `json:"n1_range"`
		N2Range     *[2]int     `json:"n2_range"`
		WinRange    *[2]float64 `json:"win_range"`
		LossRange   *[2]float64 `json:"loss_range"`
		AdjustRange *[2]int     `json:"adjust_range"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Codes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "codes is required"})
		return
	}
	if req.InitCash <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "init_cash must be positive"})
		return
	}

	commission := quant.DefaultCommission
	if req.Commission != nil {
		commission = *req.Commission
	}
	tax := quant.DefaultTax
	if req.Tax != nil {
		tax = *req.Tax
	}
	trials := req.Trials
	if trials <= 0 {
		trials = h.cfg.MCTrials
	}

	ranges := quant.DefaultParamRanges()
	if req.N1Range != nil {
		ranges.N1Min, ranges.N1Max = req.N1Range[0], req.N1Range[1]
	}
	if req.N2Range != nil {
		ranges.N2Min, ranges.N2Max = req.N2Range[0], req.N2Range[1]
	}
	if req.WinRange != nil {
		ranges.WinMin, ranges.WinMax = req.WinRange[0], req.WinRange[1]
	}
	if req.LossRange != nil {
		ranges.LossMin, ranges.LossMax = req.LossRange[0], req.LossRange[1]
	}
	if req.AdjustRange != nil {
		ranges.AdjustMin, ranges.AdjustMax = req.AdjustRange[0], req.AdjustRange[1]
	}

	results := make(map[string]*quant.BacktestOutcome, len(req.Codes))
	for _, code := range req.Codes {
		bars, err := h.store.LoadDailyBars(code)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if len(bars) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no local bars for " + code})
			return
		}

		account := quant.NewAccount(req.InitCash, commission, tax)
		outcome, err := quant.MonteCarlo(bars, account, ranges, trials, h.cfg.MCWorkers)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		results[code] = outcome
	}

	c.JSON(http.StatusOK, results)
}
