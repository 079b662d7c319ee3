package routes

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/cppla/quill/config"
	"github.com/cppla/quill/controllers"
	"github.com/cppla/quill/middleware"
	"github.com/cppla/quill/repository"
	"github.com/cppla/quill/storage"
	"github.com/cppla/quill/templates"
	"github.com/cppla/quill/utils"
)

// Deps are the collaborators the router hands to controllers.
type Deps struct {
	DB    *gorm.DB
	Cache utils.Cache
	// Redis backs the token blacklist; nil keeps revoked tokens in memory.
	Redis *redis.Client
	Media storage.Media
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, deps Deps) (*gin.Engine, error) {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	renderer, err := templates.New()
	if err != nil {
		return nil, err
	}
	if deps.Cache == nil {
		deps.Cache = utils.NewMemoryCache()
	}

	r := gin.New()
	r.HTMLRender = renderer

	// Access log and panic recovery go to their own rolling file when configured
	gl := utils.Logger
	if cfg.GinPath != "" {
		if l, err := utils.NewRollingFileLogger(cfg.GinPath, cfg); err == nil {
			gl = l
		} else {
			utils.Sugar.Warnf("gin log file unavailable, using app logger: %v", err)
		}
	}
	r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
	r.Use(ginzap.CustomRecoveryWithZap(gl, true, func(ctx *gin.Context, recovered any) {
		controllers.ServerError(ctx, fmt.Errorf("panic: %v", recovered))
	}))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	if gin.Mode() == gin.DebugMode {
		pprof.Register(r)
	}

	sessions := middleware.NewSessions(cfg, utils.NewTokenBlacklist(deps.Redis), repository.NewUsers(deps.DB))
	r.Use(sessions.Load())

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	if local, ok := deps.Media.(*storage.Local); ok && strings.HasPrefix(cfg.MediaURL, "/") {
		r.Static(strings.TrimSuffix(cfg.MediaURL, "/"), local.Root())
	}

	authController := controllers.NewAuthController(deps.DB, sessions)
	postController := controllers.NewPostController(deps.DB, deps.Media, cfg)
	profileController := controllers.NewProfileController(deps.DB, cfg)

	authGroup := r.Group("/auth", middleware.RateLimit(cfg.RateLimitPerMinute))
	authGroup.GET("/signup/", authController.SignupPage)
	authGroup.POST("/signup/", authController.Signup)
	authGroup.GET("/login/", authController.LoginPage)
	authGroup.POST("/login/", authController.Login)
	authGroup.GET("/logout/", authController.Logout)

	ttl := time.Duration(cfg.PageCacheSeconds) * time.Second
	r.GET("/", middleware.CachePage(deps.Cache, ttl), postController.Index)
	r.GET("/group/:slug/", postController.GroupPosts)
	r.GET("/:username/", profileController.Profile)
	r.GET("/:username/:post_id/", postController.PostView)

	member := r.Group("", middleware.LoginRequired())
	member.GET("/new/", postController.NewPost)
	member.POST("/new/", postController.CreatePost)
	member.GET("/follow/", profileController.FollowIndex)
	member.GET("/:username/:post_id/edit/", postController.EditPost)
	member.POST("/:username/:post_id/edit/", postController.UpdatePost)
	member.POST("/:username/:post_id/comment/", postController.AddComment)
	member.GET("/:username/follow/", profileController.Follow)
	member.GET("/:username/unfollow/", profileController.Unfollow)

	r.NoRoute(controllers.NotFound)

	return r, nil
}
