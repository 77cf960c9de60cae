package server

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	// Load env
	_ "github.com/joho/godotenv/autoload"

	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/controller/workflow"
	"github.com/YOYOrick-sudo/resto-spark-flow-sub001/internal/middleware"
)

// RegisterRoutes will register each http endpoint routes to bound MyServer instance
func (s *MyServer) RegisterRoutes() http.Handler {
	r := gin.Default()

	allowOrginsStr := os.Getenv("ALLOW_ORIGIN")
	allowOrgins := strings.Split(allowOrginsStr, ",")

	controller := workflow.NewWorkflowController(s.DB)

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrgins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(middleware.SafeHeader())

	r.GET("/health", s.healthHandler)

	v1 := r.Group("/api/v1")
	{
		needAuth := v1.Group("")
		{
			needAuth.Use(middleware.RequireServiceAuth(), middleware.EnvRateLimitMiddleware())

			agentRoute := needAuth.Group("/agent")
			{
				agentRoute.POST("event", controller.HandleLifecycleEvent)
			}

			schedulerRoute := needAuth.Group("/scheduler")
			{
				schedulerRoute.POST("run", controller.RunSweep)
			}

			candidateRoute := needAuth.Group("/candidates")
			{
				candidateRoute.GET(":id/events", controller.GetCandidateEvents)
			}
		}
	}

	return r
}

func (s *MyServer) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.DB.Health())
}
