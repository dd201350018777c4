package demo

import (
	"context"

	"github.com/gin-gonic/gin"
)

// DemoService 定义演示页面服务接口
type DemoService interface {
	// 将演示页面和 API 路由注册到 engine 与 apiGroup
	Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error
}
