package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"depthdemo-server-go/src/configs"
	"depthdemo-server-go/src/configs/database"
	"depthdemo-server-go/src/configs/server"
	"depthdemo-server-go/src/core/utils"
	"depthdemo-server-go/src/demo"
	"depthdemo-server-go/src/recorder"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func LoadConfigAndLogger() (*configs.Config, *utils.Logger, error) {
	// 加载配置,默认使用.config.yaml
	config, configPath, err := configs.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	// .env 中的口令与密钥覆盖配置文件
	config.ApplyEnv()

	// 初始化日志系统
	logger, err := utils.NewLogger(config)
	if err != nil {
		return nil, nil, err
	}
	logger.Info(fmt.Sprintf("日志系统初始化成功, 配置文件路径: %s", configPath))

	return config, logger, nil
}

// InitIndex 按需连接测试用例索引数据库，未启用时返回 nil
func InitIndex(config *configs.Config, logger *utils.Logger) (*recorder.GormIndex, error) {
	if !config.Recorder.Enabled || !config.Recorder.Index {
		return nil, nil
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "sqlite://" + config.Recorder.Root + ".db"
		logger.Warn(fmt.Sprintf("未设置 DATABASE_URL，使用本地sqlite: %s", dsn))
	}

	db, dbType, err := database.InitDB(dsn)
	if err != nil {
		return nil, err
	}
	logger.Info(fmt.Sprintf("测试用例索引数据库连接成功: %s", dbType))
	return recorder.NewGormIndex(db), nil
}

func StartHttpServer(config *configs.Config, logger *utils.Logger, index *recorder.GormIndex, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	// 初始化Gin引擎
	gin.SetMode(ginMode(config.Log.LogLevel))
	router := gin.Default()
	router.SetTrustedProxies([]string{"0.0.0.0"})

	// API路由全部挂载到/api前缀下
	apiGroup := router.Group("/api")

	// 启动Demo服务
	demoService, err := demo.NewDefaultDemoService(config, logger, index)
	if err != nil {
		logger.Error(fmt.Sprintf("Demo 服务初始化失败: %v", err))
		return nil, err
	}
	if err := demoService.Start(groupCtx, router, apiGroup); err != nil {
		logger.Error(fmt.Sprintf("Demo 服务启动失败: %v", err))
		return nil, err
	}

	// 启动配置查询服务
	cfgService, err := server.NewDefaultCfgService(config, logger)
	if err != nil {
		logger.Error(fmt.Sprintf("Cfg 服务初始化失败: %v", err))
		return nil, err
	}
	if err := cfgService.Start(groupCtx, router, apiGroup); err != nil {
		logger.Error(fmt.Sprintf("Cfg 服务启动失败: %v", err))
		return nil, err
	}

	// HTTP Server（支持优雅关机）
	httpServer := &http.Server{
		Addr:    config.Server.IP + ":" + strconv.Itoa(config.Server.Port),
		Handler: router,
	}

	g.Go(func() error {
		logger.Info(fmt.Sprintf("Gin 服务已启动，访问地址: http://%s:%d", displayHost(config.Server.IP), config.Server.Port))

		// 在单独的 goroutine 中监听关闭信号
		go func() {
			<-groupCtx.Done()
			logger.Info("收到关闭信号，开始关闭HTTP服务...")

			// 创建关闭超时上下文
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error(fmt.Sprintf("HTTP服务关闭失败: %v", err))
			} else {
				logger.Info("HTTP服务已优雅关闭")
			}
		}()

		// ListenAndServe 返回 ErrServerClosed 时表示正常关闭
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(fmt.Sprintf("HTTP 服务启动失败: %v", err))
			return err
		}
		return nil
	})

	return httpServer, nil
}

// ginMode 日志级别为debug（不区分大小写）时使用调试模式
func ginMode(logLevel string) string {
	if strings.EqualFold(strings.TrimSpace(logLevel), "debug") {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

func displayHost(ip string) string {
	if ip == "" {
		return "0.0.0.0"
	}
	return ip
}

// GracefulShutdown 等待系统信号或任一服务异常退出，然后关闭所有服务
func GracefulShutdown(groupCtx context.Context, cancel context.CancelFunc, logger *utils.Logger, g *errgroup.Group) error {
	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	return waitForShutdown(groupCtx, sigChan, cancel, logger, g, 15*time.Second)
}

func waitForShutdown(groupCtx context.Context, sigChan <-chan os.Signal, cancel context.CancelFunc, logger *utils.Logger, g *errgroup.Group, timeout time.Duration) error {
	select {
	case sig := <-sigChan:
		logger.Info(fmt.Sprintf("接收到系统信号: %v，开始优雅关闭服务", sig))
	case <-groupCtx.Done():
		logger.Warn("服务异常退出，开始关闭其余服务")
	}

	// 取消上下文，通知所有服务开始关闭
	cancel()

	// 等待所有服务关闭，设置超时保护
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error(fmt.Sprintf("服务关闭过程中出现错误: %v", err))
			return err
		}
		logger.Info("所有服务已优雅关闭")
		return nil
	case <-time.After(timeout):
		logger.Error("服务关闭超时，强制退出")
		return fmt.Errorf("服务关闭超时: %v", timeout)
	}
}

func main() {
	// 加载 .env 文件，需在读取配置之前
	envErr := godotenv.Load()

	// 加载配置和初始化日志系统
	config, logger, err := LoadConfigAndLogger()
	if err != nil {
		fmt.Println("加载配置或初始化日志系统失败:", err)
		os.Exit(1)
	}
	defer logger.Close()

	if envErr != nil {
		logger.Warn("未找到 .env 文件，使用系统环境变量")
	}

	// 初始化测试用例索引
	index, err := InitIndex(config, logger)
	if err != nil {
		logger.Error(fmt.Sprintf("数据库连接失败: %v", err))
		return
	}

	// 创建可取消的上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, groupCtx := errgroup.WithContext(ctx)

	// 启动 Http 服务
	if _, err := StartHttpServer(config, logger, index, g, groupCtx); err != nil {
		logger.Error(fmt.Sprintf("启动服务失败: %v", err))
		cancel()
		os.Exit(1)
	}

	// 启动优雅关机处理
	if err := GracefulShutdown(groupCtx, cancel, logger, g); err != nil {
		logger.Close()
		os.Exit(1)
	}

	logger.Info("程序已成功退出")
}
