package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/nikhilbhatia/commitcanvas/internal/pkg/errors"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/logger"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/utils"
)

// Recovery returns a middleware that recovers from handler panics.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error":      err,
						"stack":      string(debug.Stack()),
						"method":     r.Method,
						"path":       r.URL.Path,
						"request_id": GetRequestID(r),
					}).Error("Panic recovered")

					appErr := errors.Internal("internal server error", fmt.Errorf("panic: %v", err))
					utils.WriteError(w, appErr)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
