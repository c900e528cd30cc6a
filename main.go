package main

import (
	"log"

	"stock-quant/internal/api"
	"stock-quant/internal/config"
	"stock-quant/internal/database"
	"stock-quant/internal/quant"
	"stock-quant/internal/services"
	"stock-quant/internal/services/tushare"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	// 初始化配置
	cfg := config.Load()

	// 初始化数据库连接（gorm，负责建表与基础信息读写）
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("数据库连接失败:", err)
	}

	// 计算侧走原生 SQL，与 gorm 共用同一个连接池
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("获取底层连接池失败:", err)
	}
	store := quant.NewStoreWithDB(sqlDB)

	ts := tushare.NewClient(cfg.TushareAPIURL, cfg.TushareToken)
	market := services.NewMarketData(db, store, ts, cfg.FetchWorkers, cfg.FetchDelayMS)

	// 设置Gin模式
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	r := gin.Default()

	// 添加CORS中间件
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// 健康检查端点
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "服务运行正常",
		})
	})

	// API路由组
	apiGroup := r.Group("/api/v1")
	api.SetupRoutes(apiGroup, db, store, market, cfg)

	// 启动服务器
	log.Printf("服务器启动在端口 %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("服务器启动失败:", err)
	}
}
