// Observer server: the read-only plan explainer (spec C14). Exposes an `explain_plan`
// MCP tool over streamable HTTP and a thin `/healthz`, `/metrics`, `/explain/:id` HTTP
// surface. Never writes an artifact, never imports a broker client, never triggers
// execution.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/shadowtrader/platform/internal/audit"
	"github.com/shadowtrader/platform/internal/config"
	"github.com/shadowtrader/platform/internal/db"
	"github.com/shadowtrader/platform/internal/metrics"
	"github.com/shadowtrader/platform/internal/observer"
	"github.com/shadowtrader/platform/internal/telemetry"
)

type explainPlanInput struct {
	Plan map[string]any `json:"plan,omitempty"`
}

func main() {
	ambient, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load ambient config")
	}

	telemetry.InitLogger(ambient.App.LogLevel, ambient.App.LogFormat)
	logger := telemetry.NewServerLogger("observer")

	auditDir := ambient.Audit.ArtifactsDir
	decisionsBaseDir := ambient.Audit.DecisionsBaseDir
	stdoutLogPaths := ambient.Audit.StdoutLogPaths

	auditLogger := newAuditLogger(context.Background())

	explainPlan := func(ctx context.Context, req *mcp.CallToolRequest, in explainPlanInput) (*mcp.CallToolResult, any, error) {
		var exp observer.Explanation
		if len(in.Plan) > 0 {
			exp = observer.ExplainPlan(in.Plan, auditDir, decisionsBaseDir, stdoutLogPaths, time.Now())
		} else {
			exp = observer.ExplainLastOptionTrade(auditDir, decisionsBaseDir, stdoutLogPaths, time.Now())
		}
		if err := auditLogger.LogConfigViewed(ctx, exp.PlanID, exp.PlanID != ""); err != nil {
			logger.Error().Err(err).Msg("failed to record explain-plan audit event")
		}
		return nil, exp, nil
	}

	var mcpHandler http.Handler
	if ambient.Observer.MCPEnabled {
		mcpServer := mcp.NewServer(&mcp.Implementation{Name: "shadowtrader-observer", Version: "0.1.0"}, nil)
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        "explain_plan",
			Description: "Reconstruct why an options trade plan was created and how it was ultimately decided, reading only artifacts C4/C5/C7 already wrote.",
		}, explainPlan)

		mcpHandler = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return mcpServer
		}, nil)
	}

	if ambient.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/explain/:id", func(c *gin.Context) {
		planID := c.Param("id")
		exp := observer.ExplainLastOptionTrade(auditDir, decisionsBaseDir, stdoutLogPaths, time.Now())
		found := exp.PlanID != "" && exp.PlanID == planID
		if err := auditLogger.LogConfigViewed(c.Request.Context(), planID, found); err != nil {
			logger.Error().Err(err).Msg("failed to record explain-plan audit event")
		}
		if exp.PlanID != "" && exp.PlanID != planID {
			c.JSON(http.StatusNotFound, gin.H{"error": "plan not found", "plan_id": planID})
			return
		}
		c.JSON(http.StatusOK, exp)
	})
	if mcpHandler != nil {
		router.Any("/mcp", gin.WrapH(mcpHandler))
	}

	addr := ambient.Observer.GetObserverAddr()
	srv := &http.Server{Addr: addr, Handler: router}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Info().Str("addr", addr).Bool("mcp_enabled", ambient.Observer.MCPEnabled).Msg("observer server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("observer server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error shutting down observer server")
	}

	logger.Info().Msg("observer server stopped")
}

// newAuditLogger opens the durable audit trail when DATABASE_URL or Vault credentials
// are available, and falls back to a structured-log-only logger otherwise.
func newAuditLogger(ctx context.Context) *audit.Logger {
	conn, err := db.New(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("no audit database available, audit events will be logged but not persisted")
		return audit.NewLogger(nil, true)
	}
	return audit.NewLogger(conn, true)
}
