package demo

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"depthdemo-server-go/src/configs"
	"depthdemo-server-go/src/core/auth"
	"depthdemo-server-go/src/core/compose"
	imgpkg "depthdemo-server-go/src/core/image"
	"depthdemo-server-go/src/core/session"
	"depthdemo-server-go/src/core/utils"
	"depthdemo-server-go/src/recorder"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	tokenCookie  = "token"
	sessionKey   = "demo_session"
	downloadName = "rendered.jpg"
	recentLimit  = 100

	sweepInterval = time.Minute
)

// imageSet 预加载的示例图片组
type imageSet struct {
	name    string
	primary *imgpkg.Decoded
	depth   *imgpkg.Decoded
	ev      *imgpkg.Decoded
}

// DefaultDemoService 演示页面服务
type DefaultDemoService struct {
	logger     *utils.Logger
	config     *configs.Config
	gate       *auth.PasswordGate
	authToken  *auth.AuthToken
	ttl        time.Duration
	sessions   *session.Store
	processor  *imgpkg.ImageProcessor
	compositor *compose.Compositor
	recorder   *recorder.Recorder  // nil 表示不记录测试用例
	index      *recorder.GormIndex // nil 表示没有数据库索引
	sets       []imageSet
}

var _ DemoService = (*DefaultDemoService)(nil)

// NewDefaultDemoService 构造函数，index 可以为 nil
func NewDefaultDemoService(config *configs.Config, logger *utils.Logger, index *recorder.GormIndex) (*DefaultDemoService, error) {
	ttl, err := time.ParseDuration(config.Server.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("解析session_ttl失败: %v", err)
	}

	secret := config.Server.TokenSecret
	if secret == "" {
		secret = uuid.New().String()
		logger.Warn("未配置token_secret，使用随机密钥，重启后所有会话失效")
	}
	authToken, err := auth.NewAuthToken(secret, ttl)
	if err != nil {
		return nil, fmt.Errorf("初始化认证工具失败: %v", err)
	}

	service := &DefaultDemoService{
		logger:     logger,
		config:     config,
		gate:       auth.NewPasswordGate(config.Server.Password),
		authToken:  authToken,
		ttl:        ttl,
		sessions:   session.NewStore(ttl),
		processor:  imgpkg.NewImageProcessor(&config.Images, logger),
		compositor: compose.NewCompositor(config.Compose.CacheSize, logger),
		index:      index,
	}

	if config.Recorder.Enabled {
		service.recorder = recorder.New(config.Recorder.Root, recorder.Options{
			SkipMalformed:  config.Recorder.SkipMalformed,
			ReserveRetries: config.Recorder.ReserveRetries,
			JPEGQuality:    config.Images.JPEGQuality,
		}, logger)
		if index != nil {
			service.recorder.SetIndexer(index)
		}
	}

	service.loadImageSets()
	if !service.gate.Enabled() {
		logger.Warn("未配置访问口令，演示页面对所有人开放")
	}

	return service, nil
}

// loadImageSets 预加载配置中的示例图片组，加载失败的组被跳过
func (s *DefaultDemoService) loadImageSets() {
	for _, cfg := range s.config.Images.Sets {
		if cfg.Name == "" || cfg.Name == session.CustomImageSet {
			s.logger.Warn(fmt.Sprintf("示例图片组名称无效: %q", cfg.Name))
			continue
		}
		set := imageSet{name: cfg.Name}
		var err error
		if set.primary, err = s.loadFile(cfg.Primary); err == nil {
			set.depth, err = s.loadFile(cfg.Depth)
		}
		if err == nil && cfg.EV != "" {
			set.ev, err = s.loadFile(cfg.EV)
		}
		if err != nil {
			s.logger.Warn(fmt.Sprintf("加载示例图片组 %s 失败: %v", cfg.Name, err))
			continue
		}
		s.sets = append(s.sets, set)
		s.logger.Info(fmt.Sprintf("示例图片组 %s 加载完成", cfg.Name), map[string]interface{}{
			"primary": cfg.Primary,
			"depth":   cfg.Depth,
			"ev":      cfg.EV,
		})
	}
}

func (s *DefaultDemoService) loadFile(path string) (*imgpkg.Decoded, error) {
	src, err := imgpkg.SourceFromFile(path)
	if err != nil {
		return nil, err
	}
	return s.processor.Load(src)
}

// findSet 按名称查找示例图片组
func (s *DefaultDemoService) findSet(name string) (imageSet, bool) {
	for _, set := range s.sets {
		if set.name == name {
			return set, true
		}
	}
	return imageSet{}, false
}

// imageSetNames 下拉框选项，自定义上传放在最后
func (s *DefaultDemoService) imageSetNames() []string {
	names := make([]string, 0, len(s.sets)+1)
	for _, set := range s.sets {
		names = append(names, set.name)
	}
	return append(names, session.CustomImageSet)
}

// Start 实现 DemoService 接口，注册页面与 API 路由
func (s *DefaultDemoService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	tmpl, err := parseTemplates()
	if err != nil {
		return fmt.Errorf("解析页面模板失败: %v", err)
	}
	engine.SetHTMLTemplate(tmpl)
	engine.MaxMultipartMemory = 3 * s.config.Images.Security.MaxFileSize

	engine.GET("/login", s.handleLoginPage)
	engine.POST("/login", s.handleLogin)
	engine.POST("/logout", s.handleLogout)

	page := engine.Group("", s.requireSession(false))
	page.GET("/", s.handleIndex)
	page.POST("/images", s.handleImages)
	page.POST("/submit", s.handleSubmit)
	page.GET("/download", s.handleDownload)

	apiGroup.GET("/status", s.handleStatus)
	apiGroup.OPTIONS("/status", s.handleOptions)
	apiGroup.GET("/tests", s.requireSession(true), s.handleTests)
	apiGroup.OPTIONS("/tests", s.handleOptions)

	go s.sweepSessions(ctx)

	s.logger.Info("Demo HTTP服务路由注册完成")
	return nil
}

// sweepSessions 定期清理过期会话
func (s *DefaultDemoService) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.Sweep(); n > 0 {
				s.logger.Info(fmt.Sprintf("清理过期会话 %d 个", n))
			}
		}
	}
}

// requireSession 从cookie或Bearer头恢复会话。未启用口令时自动创建会话
func (s *DefaultDemoService) requireSession(api bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := s.sessionFromRequest(c)
		if err != nil {
			if s.gate.Enabled() {
				s.logger.Debug(fmt.Sprintf("会话校验失败: %v", err))
				if api {
					s.respondError(c, http.StatusUnauthorized, "无效的认证token或token已过期")
					c.Abort()
					return
				}
				c.Redirect(http.StatusSeeOther, "/login")
				c.Abort()
				return
			}
			if sess, err = s.startSession(c); err != nil {
				s.logger.Error(fmt.Sprintf("创建会话失败: %v", err))
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// sessionFromRequest 校验token并查找会话
func (s *DefaultDemoService) sessionFromRequest(c *gin.Context) (*session.Session, error) {
	token, err := c.Cookie(tokenCookie)
	if err != nil || token == "" {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return nil, fmt.Errorf("缺少认证token")
		}
		token = authHeader[7:]
	}

	isValid, sessionID, err := s.authToken.VerifyToken(token)
	if err != nil || !isValid {
		return nil, fmt.Errorf("token无效: %v", err)
	}
	return s.sessions.Get(sessionID)
}

// startSession 创建会话，默认选中第一个示例图片组，并下发token
func (s *DefaultDemoService) startSession(c *gin.Context) (*session.Session, error) {
	sess := s.sessions.Create()
	if len(s.sets) > 0 {
		s.applySet(sess, s.sets[0])
	} else {
		sess.UpdateInputs(func(in *session.Inputs) { in.ImageSet = session.CustomImageSet })
	}

	token, err := s.authToken.GenerateToken(sess.ID)
	if err != nil {
		s.sessions.Delete(sess.ID)
		return nil, err
	}
	s.setTokenCookie(c, token)
	s.logger.Info("新会话已创建", map[string]interface{}{"session_id": sess.ID, "client_ip": c.ClientIP()})
	return sess, nil
}

// applySet 选择示例图片组，丢弃之前的上传
func (s *DefaultDemoService) applySet(sess *session.Session, set imageSet) {
	sess.UpdateInputs(func(in *session.Inputs) {
		in.ImageSet = set.name
		in.Primary = set.primary
		in.Depth = set.depth
		in.EV = set.ev
		in.UserUpload = false
	})
}

func (s *DefaultDemoService) setTokenCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tokenCookie, token, int(s.ttl.Seconds()), "/", "", s.config.Server.SecureCookie, true)
}

func (s *DefaultDemoService) clearTokenCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tokenCookie, "", -1, "/", "", s.config.Server.SecureCookie, true)
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

// handleOptions 处理OPTIONS请求（CORS）
func (s *DefaultDemoService) handleOptions(c *gin.Context) {
	s.addCORSHeaders(c)
	c.Status(http.StatusOK)
}

// addCORSHeaders 添加CORS头
func (s *DefaultDemoService) addCORSHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Headers", "content-type, authorization")
	c.Header("Access-Control-Allow-Credentials", "true")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
}

// respondError 返回错误响应
func (s *DefaultDemoService) respondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Message: message,
	})
}
