package middleware

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"petshelter/internal/modules/auth"
	"petshelter/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const redacted = "[redacted]"

// ErrorLogger recovers panics into a 500 response and logs every failed request.
// Lines name the authenticated account and where its credential came from; credential
// values from the Authorization header and the auth cookies are never written.
func ErrorLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				response.Abort(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal Server Error")
				logFailure(c, start, "panic", fmt.Sprint(recovered), debug.Stack())
				return
			}

			for _, err := range c.Errors {
				logFailure(c, start, errorKind(err), err.Error(), nil)
			}
			if len(c.Errors) == 0 && c.Writer.Status() >= http.StatusInternalServerError {
				logFailure(c, start, "http_error", http.StatusText(c.Writer.Status()), nil)
			}
		}()

		c.Next()
	}
}

func logFailure(c *gin.Context, start time.Time, kind, message string, stack []byte) {
	scrub := credentialScrubber(c)

	line := fmt.Sprintf(
		"request_failed kind=%s status=%d method=%s route=%s account_id=%d role=%s credential=%s request_id=%s latency_ms=%d error=%q",
		kind,
		c.Writer.Status(),
		c.Request.Method,
		routeOf(c),
		c.GetInt64("user_id"),
		c.GetString("role"),
		credentialSource(c),
		requestID(c),
		time.Since(start).Milliseconds(),
		scrub.Replace(message),
	)
	if len(stack) > 0 {
		line += " stack=" + fmt.Sprintf("%q", scrub.Replace(string(stack)))
	}
	log.Print(line)
}

func errorKind(err *gin.Error) string {
	switch {
	case err.IsType(gin.ErrorTypeBind):
		return "bind"
	case err.IsType(gin.ErrorTypeRender):
		return "render"
	case err.IsType(gin.ErrorTypePublic):
		return "public"
	default:
		return "handler"
	}
}

// routeOf prefers the route template so ids in the path do not fan out log keys.
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}

// credentialSource names where the access credential was presented, if anywhere.
func credentialSource(c *gin.Context) string {
	if c.GetHeader("Authorization") != "" {
		if _, err := auth.AccessTokenFromRequest(c); err != nil {
			return "malformed_header"
		}
		return "bearer"
	}
	if _, err := c.Cookie(auth.AccessCookieName); err == nil {
		return "cookie"
	}
	return "none"
}

// credentialScrubber blanks every credential value the request carried, so an error
// message or panic value that echoes one does not leak it.
func credentialScrubber(c *gin.Context) *strings.Replacer {
	var secrets []string
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		secrets = append(secrets, header)
		if _, token, ok := strings.Cut(header, " "); ok {
			secrets = append(secrets, strings.TrimSpace(token))
		}
	}
	for _, name := range []string{auth.AccessCookieName, auth.RefreshCookieName} {
		if v, err := c.Cookie(name); err == nil {
			secrets = append(secrets, strings.TrimSpace(v))
		}
	}

	pairs := make([]string, 0, 2*len(secrets))
	for _, s := range secrets {
		if s != "" {
			pairs = append(pairs, s, redacted)
		}
	}
	return strings.NewReplacer(pairs...)
}

func requestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return c.Writer.Header().Get("X-Request-ID")
}
