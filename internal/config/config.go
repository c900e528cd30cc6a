package config

import (
	"os"
	"strconv"
)

type Config struct {
	DatabaseURL   string
	TushareToken  string
	TushareAPIURL string
	Port          string
	Environment   string

	// 并发与限速
	RpsWorkers   int // RPS 计算工作协程数
	FetchWorkers int // 行情拉取工作协程数
	FetchDelayMS int // 每次外部接口调用后的暂停毫秒数
	MCTrials     int // 蒙特卡洛默认模拟次数
	MCWorkers    int // 蒙特卡洛协程池大小，0 表示取 CPU 核数减一
}

func Load() *Config {
	// Default MySQL connection string
	defaultDSN := "root:root@tcp(127.0.0.1:3306)/stock_quant?charset=utf8mb4&parseTime=True&loc=Local"

	return &Config{
		DatabaseURL:   getEnv("DATABASE_URL", defaultDSN),
		TushareToken:  getEnv("TUSHARE_TOKEN", ""),
		TushareAPIURL: getEnv("TUSHARE_API_URL", "http://api.tushare.pro"),
		Port:          getEnv("PORT", "8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		RpsWorkers:   getEnvInt("RPS_WORKERS", 10),
		FetchWorkers: getEnvInt("FETCH_WORKERS", 10),
		FetchDelayMS: getEnvInt("FETCH_DELAY_MS", 100),
		MCTrials:     getEnvInt("MC_TRIALS", 10000),
		MCWorkers:    getEnvInt("MC_WORKERS", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
