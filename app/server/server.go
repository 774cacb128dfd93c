package server

import (
	"context"
	"net/http"

	"meta-harvest/app/config"
	"meta-harvest/app/handler"
	"meta-harvest/app/logger"
	"meta-harvest/app/service"

	"github.com/gin-gonic/gin"
)

// Server 表示 HTTP 服务器
type Server struct {
	Config    *config.Config
	Logger    *logger.Logger
	gin       *gin.Engine
	http      *http.Server
	pipeline  *service.Pipeline
	scheduler *service.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

// New 创建一个新的 Server 实例，配置了定时表达式时同时创建调度器
func New(cfg *config.Config, pipeline *service.Pipeline, log *logger.Logger) (*Server, error) {
	router := gin.New()
	router.Use(gin.Recovery())

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		gin: router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		Config:   cfg,
		Logger:   log,
		pipeline: pipeline,
		ctx:      ctx,
		cancel:   cancel,
	}

	if cfg.Server.Schedule != "" {
		scheduler, err := service.NewScheduler(cfg.Server.Schedule, pipeline, log)
		if err != nil {
			cancel()
			return nil, err
		}
		s.scheduler = scheduler
	}

	// 设置路由
	s.setupRoutes()

	return s, nil
}

// Handler 路由处理器
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Start 启动服务器
func (s *Server) Start() error {
	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)

	if s.scheduler != nil {
		s.scheduler.Start()
	}

	return s.http.ListenAndServe()
}

// Shutdown 取消进行中的运行，停止调度，等待后台运行结束后关闭 HTTP 服务
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if err := s.pipeline.Wait(ctx); err != nil {
		s.Logger.WithError(err).Warn("等待后台运行结束超时")
	}
	if err := s.pipeline.Close(); err != nil {
		s.Logger.WithError(err).Warn("释放提取器失败")
	}
	return s.http.Shutdown(ctx)
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes() {
	runHandler := handler.NewRunHandler(s.ctx, s.pipeline)

	api := s.gin.Group("/api")
	{
		api.GET("/health", runHandler.Health)
		api.GET("/runs", runHandler.ListRuns)
		api.POST("/runs", runHandler.TriggerRun)
		api.GET("/consolidation", runHandler.GetConsolidation)
	}
}
