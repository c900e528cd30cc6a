package main

import (
	"flag"
	"log"

	"stock-quant/internal/config"
	"stock-quant/internal/quant"

	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	_ = godotenv.Load()

	cfg := config.Load()

	dsn := flag.String("dsn", cfg.DatabaseURL, "MySQL DSN")
	code := flag.String("code", "", "股票代码，如 000001.SZ")
	cash := flag.Float64("cash", 100000, "初始资金")
	trials := flag.Int("trials", cfg.MCTrials, "蒙特卡洛模拟次数")
	workers := flag.Int("workers", cfg.MCWorkers, "蒙特卡洛协程池大小，0 表示取 CPU 核数减一")
	flag.Parse()

	if *code == "" {
		log.Fatal("必须通过 -code 指定股票代码")
	}

	store, err := quant.NewStore(*dsn)
	if err != nil {
		log.Fatalf("连接数据库失败: %v", err)
	}
	defer store.Close()

	bars, err := store.LoadDailyBars(*code)
	if err != nil {
		log.Fatalf("加载日线数据失败: %v", err)
	}
	if len(bars) == 0 {
		log.Fatalf("本地无 %s 的日线数据，请先补拉行情", *code)
	}
	log.Printf("已加载 %s 日线 %d 条，区间 %s ~ %s", *code, len(bars), bars[0].Date, bars[len(bars)-1].Date)

	account := quant.NewAccount(*cash, quant.DefaultCommission, quant.DefaultTax)
	outcome, err := quant.MonteCarlo(bars, account, quant.DefaultParamRanges(), *trials, *workers)
	if err != nil {
		log.Fatalf("回测失败: %v", err)
	}

	best := outcome.Params
	log.Printf("最优参数: n1=%d n2=%d win=%.3f loss=%.3f adjust=%d",
		best.N1, best.N2, best.Win, best.Loss, best.Adjust)
	final := outcome.Results[len(outcome.Results)-1].TotalAssets
	ret := (final - *cash) / *cash * 100
	log.Printf("期初资金 %.2f，期末资产 %.2f，收益率 %.2f%%", *cash, final, ret)
	log.Printf("共产生操作记录 %d 条", len(outcome.Operates))
}
