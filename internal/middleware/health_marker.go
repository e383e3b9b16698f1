package middleware

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"stocktransfer-backend/internal/ledger"
	"stocktransfer-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Redis keys for request counters, read by the health handlers.
const (
	KeyReqTotal  = "health:ledger:req_total"
	KeyReqErrors = "health:ledger:req_errors"
	KeyResTime   = "health:ledger:res_time_total"
	KeyResCount  = "health:ledger:res_count"
	KeyStartTime = "health:ledger:start_time"
	KeyLastReq   = "health:ledger:last_request"
	KeyErrorLog  = "health:ledger:error_log"
)

// HealthMarker records request stats in Redis (skip /, /health*, favicon).
// The Stripe webhook is counted like any other route.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil {
			return c.Next()
		}
		path := c.Path()
		if path == "/" || strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/favicon") {
			return c.Next()
		}

		start := time.Now()
		lastReq := map[string]interface{}{
			"time":   time.Now(),
			"ip":     c.IP(),
			"path":   c.OriginalURL(),
			"method": c.Method(),
		}
		b, _ := json.Marshal(lastReq)
		ctx := c.UserContext()
		_, _ = rdb.Set(ctx, KeyLastReq, b, 0).Result()
		_, _ = rdb.Incr(ctx, KeyReqTotal).Result()

		err := c.Next()

		ms := time.Since(start).Milliseconds()
		_, _ = rdb.Incr(ctx, KeyResCount).Result()
		_, _ = rdb.IncrByFloat(ctx, KeyResTime, float64(ms)).Result()
		if status := statusOf(c, err); status >= fiber.StatusInternalServerError {
			_, _ = rdb.Incr(ctx, KeyReqErrors).Result()
			entry := map[string]interface{}{
				"time":     time.Now(),
				"method":   c.Method(),
				"path":     c.OriginalURL(),
				"status":   status,
				"trace_id": GetTraceID(c),
				"message":  errorMessage(err),
			}
			b, _ := json.Marshal(entry)
			_, _ = rdb.LPush(ctx, KeyErrorLog, b).Result()
			_, _ = rdb.LTrim(ctx, KeyErrorLog, 0, errorLogSize-1).Result()
		}
		return err
	}
}

const errorLogSize = 50

// statusOf predicts the status ErrorHandler will write for err.
func statusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	var le *ledger.Error
	if errors.As(err, &le) {
		return response.StatusFor(le.Kind)
	}
	return fiber.StatusInternalServerError
}

func errorMessage(err error) string {
	if err == nil {
		return "Internal Server Error"
	}
	return err.Error()
}
