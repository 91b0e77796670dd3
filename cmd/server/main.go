package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/timebank-admin/internal/adminapi"
	"github.com/tyemirov/timebank-admin/internal/authkit"
	"github.com/tyemirov/timebank-admin/internal/web"
	webassets "github.com/tyemirov/timebank-admin/web"
	"go.uber.org/zap"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

var openRedisCache = func(ctx context.Context, addr string) (*adminapi.RedisCache, error) {
	return adminapi.NewRedisCache(ctx, addr)
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "timebank-admin",
		Short:   "Time bank admin dashboard guarded by JWT session cookies with upstream validation and refresh",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("jwt_signing_key", "", "HS256 secret shared with the upstream API for local token verification")
	rootCmd.Flags().String("jwt_issuer", "", "Expected access token issuer; empty skips the issuer check")
	rootCmd.Flags().String("upstream_base_url", "", "Base URL of the time bank API")
	rootCmd.Flags().Duration("upstream_timeout", 10*time.Second, "Timeout for each upstream API call")
	rootCmd.Flags().Duration("session_ttl", authkit.DefaultSessionTTL, "Access cookie lifetime")
	rootCmd.Flags().Duration("refresh_ttl", authkit.DefaultRefreshTTL, "Refresh cookie lifetime")
	rootCmd.Flags().Bool("production", false, "Mark cookies Secure")
	rootCmd.Flags().String("cookie_domain", "", "Cookie domain; empty for host-only")
	rootCmd.Flags().String("database_url", "", "Database URL for the decision log (postgres:// or sqlite://; leave empty for in-memory store)")
	rootCmd.Flags().String("redis_addr", "", "Redis address for the upstream response cache; empty uses an in-process cache")
	rootCmd.Flags().Duration("cache_ttl", 30*time.Second, "Upstream response cache lifetime; zero disables caching")
	rootCmd.Flags().StringSlice("kafka_brokers", []string{}, "Kafka brokers for publishing admin decisions; empty disables publishing")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")

	for _, name := range []string{
		"listen_addr", "jwt_signing_key", "jwt_issuer", "upstream_base_url", "upstream_timeout",
		"session_ttl", "refresh_ttl", "production", "cookie_domain", "database_url",
		"redis_addr", "cache_ttl", "kafka_brokers", "enable_cors", "cors_allowed_origins",
	} {
		_ = viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}

	viper.SetEnvPrefix("TIMEBANK")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	configCodeMissingJWTSigningKey    = "config.missing_jwt_signing_key"
	configCodeMissingUpstreamBaseURL  = "config.missing_upstream_base_url"
	configCodeInvalidUpstreamBaseURL  = "config.invalid_upstream_base_url"
	configCodeInvalidSessionTTL       = "config.invalid_session_ttl"
	configCodeInvalidRefreshTTL       = "config.invalid_refresh_ttl"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
	configCodeMissingCORSOrigins      = "config.missing_cors_allowed_origins"
	configCodeRedisInit               = "config.redis_init"
	configCodeDecisionStoreInit       = "config.decision_store_init"
	configCodeKafkaInit               = "config.kafka_init"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func LoadServerConfig() (authkit.ServerConfig, error) {
	jwtSigningKey := viper.GetString("jwt_signing_key")
	if jwtSigningKey == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingJWTSigningKey, "jwt_signing_key must be provided")
	}

	upstreamBaseURL := strings.TrimRight(strings.TrimSpace(viper.GetString("upstream_base_url")), "/")
	if upstreamBaseURL == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingUpstreamBaseURL, "upstream_base_url must be provided")
	}
	if !strings.HasPrefix(upstreamBaseURL, "http://") && !strings.HasPrefix(upstreamBaseURL, "https://") {
		return authkit.ServerConfig{}, configError(configCodeInvalidUpstreamBaseURL, "upstream_base_url must start with http:// or https://")
	}

	sessionTTL := authkit.DefaultSessionTTL
	if viper.IsSet("session_ttl") {
		sessionTTL = viper.GetDuration("session_ttl")
	}
	if sessionTTL <= 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidSessionTTL, "session_ttl must be greater than zero")
	}

	refreshTTL := authkit.DefaultRefreshTTL
	if viper.IsSet("refresh_ttl") {
		refreshTTL = viper.GetDuration("refresh_ttl")
	}
	if refreshTTL <= 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than zero")
	}

	return authkit.ServerConfig{
		AppJWTSigningKey:  []byte(jwtSigningKey),
		AppJWTIssuer:      viper.GetString("jwt_issuer"),
		UpstreamBaseURL:   upstreamBaseURL,
		CookieDomain:      viper.GetString("cookie_domain"),
		SessionCookieName: authkit.DefaultSessionCookieName,
		RefreshCookieName: authkit.DefaultRefreshCookieName,
		LoginPath:         authkit.DefaultLoginPath,
		SessionTTL:        sessionTTL,
		RefreshTTL:        refreshTTL,
		SameSiteMode:      http.SameSiteLaxMode,
		Production:        viper.GetBool("production"),
	}, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(authkit.ServerConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}
	if commandContext == nil {
		commandContext = context.Background()
	}

	listenAddr := viper.GetString("listen_addr")
	upstreamTimeout := viper.GetDuration("upstream_timeout")
	databaseURL := viper.GetString("database_url")
	redisAddr := viper.GetString("redis_addr")
	cacheTTL := viper.GetDuration("cache_ttl")
	kafkaBrokers := nonEmpty(viper.GetStringSlice("kafka_brokers"))
	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsRecorder, metricsErr := authkit.NewPrometheusMetrics(registry)
	if metricsErr != nil {
		return metricsErr
	}

	identityClient, identityErr := authkit.NewUpstreamIdentityClient(serverConfig.UpstreamBaseURL, upstreamTimeout, nil)
	if identityErr != nil {
		return identityErr
	}
	guard, guardErr := authkit.NewSessionGuard(serverConfig, identityClient, logger, metricsRecorder)
	if guardErr != nil {
		return guardErr
	}

	var responseCache adminapi.ResponseCache
	if redisAddr != "" {
		redisCache, redisErr := openRedisCache(commandContext, redisAddr)
		if redisErr != nil {
			return fmt.Errorf("%s: %w", configCodeRedisInit, redisErr)
		}
		defer func() { _ = redisCache.Close() }()
		responseCache = redisCache
		logger.Info("using redis response cache", zap.String("addr", redisAddr))
	} else {
		responseCache = adminapi.NewMemoryCache()
	}

	adminClient, clientErr := adminapi.NewClient(adminapi.ClientConfig{
		BaseURL:  serverConfig.UpstreamBaseURL,
		Timeout:  upstreamTimeout,
		Cache:    responseCache,
		CacheTTL: cacheTTL,
		Logger:   logger,
	})
	if clientErr != nil {
		return clientErr
	}

	var decisionStore adminapi.DecisionStore
	if databaseURL != "" {
		persistentStore, storeErr := adminapi.NewDatabaseDecisionStore(commandContext, databaseURL)
		if storeErr != nil {
			return fmt.Errorf("%s: %w", configCodeDecisionStoreInit, storeErr)
		}
		decisionStore = persistentStore
		logger.Info("using persistent decision store", zap.String("driver", persistentStore.Driver()))
	} else {
		decisionStore = adminapi.NewMemoryDecisionStore()
		logger.Info("using in-memory decision store")
	}

	var publisher adminapi.DecisionPublisher = adminapi.NoopDecisionPublisher{}
	if len(kafkaBrokers) > 0 {
		kafkaPublisher, kafkaErr := adminapi.NewKafkaDecisionPublisher(kafkaBrokers, adminapi.DefaultDecisionTopic, logger)
		if kafkaErr != nil {
			return fmt.Errorf("%s: %w", configCodeKafkaInit, kafkaErr)
		}
		publisher = kafkaPublisher
		logger.Info("publishing decisions to kafka", zap.Strings("brokers", kafkaBrokers), zap.String("topic", adminapi.DefaultDecisionTopic))
	}
	defer func() { _ = publisher.Close() }()

	decisionService, serviceErr := adminapi.NewDecisionService(adminClient, decisionStore, publisher, logger)
	if serviceErr != nil {
		return serviceErr
	}

	templates, templatesErr := web.LoadTemplates(webassets.FS)
	if templatesErr != nil {
		return templatesErr
	}
	dashboard, dashboardErr := web.NewDashboard(adminClient, decisionService, templates, logger)
	if dashboardErr != nil {
		return dashboardErr
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if enableCORS {
		if len(nonEmpty(corsAllowedOrigins)) == 0 {
			return configError(configCodeMissingCORSOrigins, "cors_allowed_origins must be provided when enable_cors is true")
		}
		corsMiddleware, corsErr := web.ConfigureCORS(logger, corsAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	mountRoutes(router, logger, guard, identityClient, dashboard, registry)

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stopSignals)
		select {
		case <-stopSignals:
		case <-shutdownCtx.Done():
			return
		}
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr), zap.String("upstream", serverConfig.UpstreamBaseURL))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

// mountRoutes wires public routes, guarded pages (redirect mode) and guarded JSON routes (401 mode).
func mountRoutes(router *gin.Engine, logger *zap.Logger, guard *authkit.SessionGuard, identity authkit.IdentityProvider, dashboard *web.Dashboard, registry *prometheus.Registry) {
	configuration := guard.Configuration()

	router.GET("/healthz", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/static/*filepath", func(contextGin *gin.Context) {
		web.ServeEmbeddedStatic(contextGin, webassets.FS, contextGin.Param("filepath"))
	})
	router.GET("/config.js", func(contextGin *gin.Context) {
		web.ServeRuntimeConfig(contextGin, web.RuntimeConfig{LoginPath: configuration.LoginPath})
	})
	router.GET(configuration.LoginPath, dashboard.ShowLogin)

	authkit.MountAuthRoutes(router, guard, identity)

	pages := router.Group("/")
	pages.Use(guard.Middleware(authkit.GuardModeRedirect))
	dashboard.MountPages(pages)

	api := router.Group("/api")
	api.Use(guard.Middleware(authkit.GuardModeJSON))
	api.GET("/me", web.HandleWhoAmI(logger))
	dashboard.MountAPI(api.Group("/admin"))
}

func nonEmpty(values []string) []string {
	filtered := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			filtered = append(filtered, trimmed)
		}
	}
	return filtered
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
