package server

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"konnect/internal/crypto"
	"konnect/internal/domain"
	"konnect/internal/logger"
	"konnect/internal/metrics"
	"konnect/internal/services/request"
)

const identityKey = "konnect.identity"

// DevAuthenticator accepts a bearer token of the form "type:id" as that
// identity. It performs no verification.
func DevAuthenticator(token string) (domain.Identity, error) {
	return domain.ParseIdentity(token)
}

func caller(c *gin.Context) domain.Identity {
	who, _ := c.Get(identityKey)
	id, _ := who.(domain.Identity)
	return id
}

// authenticate resolves the bearer token to an identity or aborts with 401.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" {
			apiErrorf(c, http.StatusUnauthorized, "missing bearer token")
			return
		}
		who, err := s.auth(token)
		if err != nil {
			apiErrorf(c, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		c.Set(identityKey, who)
		c.Next()
	}
}

// accessLog writes one line per request.
func accessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithField("method", c.Request.Method).
			WithField("path", c.Request.URL.Path).
			WithField("status", c.Writer.Status()).
			WithField("bytes", c.Writer.Size()).
			WithField("duration", time.Since(start)).
			Infof("request")
	}
}

// bufferedWriter holds a handler's response so it can be sealed before it
// reaches the client.
type bufferedWriter struct {
	gin.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (w *bufferedWriter) WriteHeader(code int) { w.status = code }
func (w *bufferedWriter) WriteHeaderNow()      {}

func (w *bufferedWriter) Write(b []byte) (int, error) { return w.buf.Write(b) }

func (w *bufferedWriter) WriteString(s string) (int, error) { return w.buf.WriteString(s) }

func (w *bufferedWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *bufferedWriter) Size() int { return w.buf.Len() }

// decryptRequest opens an EncryptedRequest body in place. When the request
// carries a response key, a successful response is sealed to it; error
// responses are sent in clear.
func (s *Server) decryptRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req domain.EncryptedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		body, err := request.OpenRequest(req, s.keys.PrivateKey)
		if errors.Is(err, domain.ErrUnknownKeyID) {
			apiErrorf(c, http.StatusBadRequest, "%s", domain.ErrUnknownKeyID)
			return
		}
		if err != nil {
			metrics.DecryptFailures.WithLabelValues("request").Inc()
			apiErrorf(c, http.StatusBadRequest, "cannot open request")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Request.ContentLength = int64(len(body))

		if req.PublicKey == "" {
			c.Next()
			return
		}
		if _, err := crypto.ParsePublicKey(req.PublicKey); err != nil {
			apiErrorf(c, http.StatusBadRequest, "invalid response key")
			return
		}

		bw := &bufferedWriter{ResponseWriter: c.Writer}
		c.Writer = bw
		c.Next()
		c.Writer = bw.ResponseWriter

		status := bw.Status()
		if status >= http.StatusMultipleChoices || bw.buf.Len() == 0 {
			c.Writer.WriteHeader(status)
			_, _ = c.Writer.Write(bw.buf.Bytes())
			return
		}
		env, err := request.SealResponse(bw.buf.Bytes(), req.PublicKey)
		if err != nil {
			s.log.Errorf("seal response: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "cannot seal response"})
			return
		}
		metrics.EnvelopesEncrypted.Inc()
		c.JSON(status, env)
	}
}
