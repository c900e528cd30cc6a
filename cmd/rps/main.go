package main

import (
	"flag"
	"log"
	"time"

	"stock-quant/internal/config"
	"stock-quant/internal/quant"

	"github.com/joho/godotenv"
)

// 供 cron 调度的 RPS 计算入口：对指定交易日（默认今天）计算全市场
// 相对强度排名并写入数据库，已存在结果的日期直接跳过。
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	_ = godotenv.Load()

	cfg := config.Load()

	dsn := flag.String("dsn", cfg.DatabaseURL, "MySQL DSN")
	date := flag.String("date", time.Now().Format(quant.DateLayout), "目标交易日 YYYYMMDD")
	lookback := flag.Int("lookback", quant.DefaultLookback, "涨幅回看交易日数")
	workers := flag.Int("workers", cfg.RpsWorkers, "计算工作协程数")
	flag.Parse()

	store, err := quant.NewStore(*dsn)
	if err != nil {
		log.Fatalf("连接数据库失败: %v", err)
	}
	defer store.Close()

	engine := quant.NewRpsEngine(store, store, *workers, *lookback)
	start := time.Now()
	if err := engine.Compute(*date); err != nil {
		log.Fatalf("RPS 计算失败: %v", err)
	}
	log.Printf("RPS 计算完成，日期 %s，耗时 %s", *date, time.Since(start))
}
