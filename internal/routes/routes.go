package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tvloc02/EventVer1-sub000/internal/config"
	"github.com/tvloc02/EventVer1-sub000/internal/handlers"
	"github.com/tvloc02/EventVer1-sub000/internal/middleware"
	"github.com/tvloc02/EventVer1-sub000/internal/models"
)

func Register(router *gin.Engine, attendanceHandler *handlers.AttendanceHandler, cfg config.Config) {
	router.Use(corsMiddleware(cfg.AllowedOriginsRaw))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "event-attendance"})
	})

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	staff := middleware.RequireAnyRole(models.RoleAdmin, models.RoleOrganizer)
	anyone := middleware.RequireAnyRole(models.RoleAdmin, models.RoleOrganizer, models.RoleStudent)

	protected := router.Group("/api")
	protected.Use(middleware.AuthRequired(cfg.JwtSecret))
	{
		protected.POST("/registrations/:id/check-in", staff, attendanceHandler.CheckIn)
		protected.POST("/registrations/:id/check-out", staff, attendanceHandler.CheckOut)
		protected.GET("/registrations/:id/attendance/history", staff, attendanceHandler.History)
		protected.GET("/registrations/:id/qr", anyone, attendanceHandler.IssueQRCode)
		protected.POST("/attendance/qr-check-in", staff, attendanceHandler.QRCheckIn)

		protected.POST("/events/:id/bulk-check-in", staff, attendanceHandler.BulkCheckIn)
		protected.GET("/events/:id/attendance/summary", staff, attendanceHandler.Summary)
		protected.GET("/events/:id/attendance/report", staff, attendanceHandler.Report)
		protected.GET("/events/:id/attendance/analytics", staff, attendanceHandler.Analytics)
		protected.GET("/events/:id/attendance/export", staff, attendanceHandler.Export)

		protected.GET("/users/:id/attendance", anyone, attendanceHandler.UserAttendance)

		protected.GET("/ws/events/:id/attendance", staff, attendanceHandler.LiveFeed)
	}
}

func corsMiddleware(allowed string) gin.HandlerFunc {
	origins := []string{}
	for _, origin := range strings.Split(allowed, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}

	allowAll := len(origins) == 0

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowedOrigin := range origins {
				if origin == allowedOrigin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					c.Writer.Header().Set("Vary", "Origin")
					break
				}
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
