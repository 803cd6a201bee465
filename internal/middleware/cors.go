// internal/middleware/cors.go
package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the frontend origin only. Idempotency-Key must be listed or
// browsers strip it from preflighted requests.
func CORS(frontendOrigin string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{frontendOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "Idempotency-Key"},
		ExposeHeaders:    []string{"X-Request-ID", "X-Idempotency-Hit"},
		AllowCredentials: true,
		MaxAge:           5 * time.Minute,
	})
}
