// Package middleware provides HTTP middleware components.
package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"

	"fireblue/internal/core/apperror"
	"fireblue/pkg/logger"
)

// Recovery turns a handler panic into a 500 envelope. It must be the first
// middleware: the panic unwinds ErrorHandler, so the body is written here.
// http.ErrAbortHandler is re-raised for net/http to handle.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}

			// A client that hung up mid-download cannot receive a body.
			if brokenPipe(err) {
				logger.Warn(c.Request.Context(), "client connection lost", "error", err)
				_ = c.Error(err)
				c.Abort()
				return
			}

			logger.Error(c.Request.Context(), "panic recovered",
				"error", err,
				"stack", string(debug.Stack()),
			)
			writeError(c, apperror.NewInternal(fmt.Errorf("panic: %w", err)))
		}()
		c.Next()
	}
}

func brokenPipe(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if errors.As(opErr, &sysErr) {
		if errors.Is(sysErr.Err, syscall.EPIPE) || errors.Is(sysErr.Err, syscall.ECONNRESET) {
			return true
		}
		msg := strings.ToLower(sysErr.Error())
		return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
	}
	return false
}
