package bridge

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/simbridge/internal/channel"
	"github.com/danmuck/simbridge/internal/observability"
)

// HeaderSessionToken carries the session id issued by open. Holder
// verification happens in the channel on every operation; the header
// is transport for the token, not an authentication secret.
const HeaderSessionToken = "X-Session-Token"

func (s *Service) registerRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.started).String(),
			"component": "simbridge",
			"version":   version,
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":     true,
			"uptime":    time.Since(s.started).String(),
			"component": "simbridge",
			"version":   version,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/v1/status", func(c *gin.Context) {
		st := s.ch.Status()
		c.JSON(http.StatusOK, gin.H{
			"name":     s.cfg.Name,
			"emulator": s.cfg.Emulator,
			"uptime":   time.Since(s.started).String(),
			"channel":  st,
		})
	})

	router.POST("/v1/session", s.openSession)
	router.DELETE("/v1/session", s.closeSession)
	router.PUT("/v1/message", s.writeMessage)
	router.GET("/v1/message", s.readMessage)

	router.POST("/admin/release", s.adminRelease)
}

func (s *Service) openSession(c *gin.Context) {
	tok, err := s.ch.Open()
	switch {
	case errors.Is(err, channel.ErrBusy):
		observability.RecordSessionBusy()
		c.JSON(http.StatusConflict, gin.H{"error": "busy"})
		return
	case errors.Is(err, channel.ErrSealed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	observability.RecordSessionOpened()
	s.logger.Debug().Uint64("session", tok.ID()).Msg("session opened")
	c.JSON(http.StatusCreated, gin.H{"session": strconv.FormatUint(tok.ID(), 10)})
}

func (s *Service) closeSession(c *gin.Context) {
	tok, ok := sessionToken(c)
	if !ok {
		return
	}
	if err := s.ch.Close(tok); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "not session holder"})
		return
	}
	observability.RecordSessionClosed()
	s.logger.Debug().Uint64("session", tok.ID()).Msg("session closed")
	c.Status(http.StatusNoContent)
}

func (s *Service) writeMessage(c *gin.Context) {
	tok, ok := sessionToken(c)
	if !ok {
		return
	}

	accepted, staged, err := s.ch.WriteFrom(tok, c.Request.Body)
	truncated := false
	switch {
	case errors.Is(err, channel.ErrNotHolder):
		c.JSON(http.StatusConflict, gin.H{"error": "not session holder"})
		return
	case errors.Is(err, channel.ErrCopyFault):
		observability.RecordCopyFault()
		s.logger.Warn().Err(err).Uint64("session", tok.ID()).Msg("copy-in fault")
		c.JSON(http.StatusBadRequest, gin.H{"error": "copy fault"})
		return
	case errors.Is(err, channel.ErrTruncated):
		truncated = true
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	observability.RecordWrite(accepted, truncated)
	s.logger.Debug().
		Uint64("session", tok.ID()).
		Int("accepted", accepted).
		Bool("truncated", truncated).
		Msg("message written")

	// Chunked bodies declare no length; fall back to the staged count,
	// which sits just past capacity when the source was truncated.
	requested := int64(staged)
	if cl := c.Request.ContentLength; cl >= 0 {
		requested = cl
	}
	c.JSON(http.StatusOK, gin.H{
		"requested": requested,
		"accepted":  accepted,
		"truncated": truncated,
	})
}

func (s *Service) readMessage(c *gin.Context) {
	tok, ok := sessionToken(c)
	if !ok {
		return
	}

	dst := make([]byte, channel.Capacity)
	n, err := s.ch.Read(tok, dst)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "not session holder"})
		return
	}
	observability.RecordRead(n)
	s.logger.Debug().Uint64("session", tok.ID()).Int("delivered", n).Msg("message read")
	c.Data(http.StatusOK, "application/octet-stream", dst[:n])
}

// adminRelease evicts a stuck session holder. Guarded by the static
// admin token; always logged as an anomaly when a session was held.
func (s *Service) adminRelease(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if err := s.admin.Validate(token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, held := s.ch.Evict()
	if held {
		observability.RecordForcedRelease()
		s.logger.Warn().Uint64("session", id).Msg("forced release by admin")
	}
	c.JSON(http.StatusOK, gin.H{"released": held, "session": id})
}

// sessionToken extracts and parses the session header, responding 400
// itself when absent or malformed.
func sessionToken(c *gin.Context) (channel.Token, bool) {
	raw := strings.TrimSpace(c.GetHeader(HeaderSessionToken))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session token"})
		return channel.Token{}, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session token"})
		return channel.Token{}, false
	}
	return channel.SessionToken(id), true
}
