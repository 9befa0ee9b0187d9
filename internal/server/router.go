package server

import (
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
)

const (
	qrSize         = 256
	maxRoomNameLen = 30
)

// Options configures the HTTP surface
type Options struct {
	StaticDir      string
	AllowedOrigins []string
	PublicURL      string
}

func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // Non-browser clients don't send Origin
			}
			if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return u.Host == r.Host
		},
	}
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func corsConfig(allowed []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowed
	}
	return cfg
}

// NewRouter configures HTTP routes
func NewRouter(hub *Hub, opts Options, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery(), requestLogger(log))

	upgrader := newUpgrader(opts.AllowedOrigins)

	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"rooms":   hub.rooms.Count(),
			"clients": hub.ClientCount(),
		})
	})

	// WebSocket endpoint
	e.GET("/ws", func(c *gin.Context) {
		ip := extractIP(c.Request)
		if !hub.CanAccept(ip) {
			c.String(http.StatusServiceUnavailable, "too many connections")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug().Err(err).Msg("upgrade error")
			return
		}

		client := NewClient(hub, conn, ip)
		if !hub.enter(client) {
			conn.Close()
			return
		}
		hub.TrackConnect(ip)
		hub.rooms.Subscribe(client)

		go client.WritePump()
		go client.ReadPump()
	})

	api := e.Group("/api", cors.New(corsConfig(opts.AllowedOrigins)))
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, hub.rooms.List())
	})
	api.GET("/rooms/:name/qr", func(c *gin.Context) {
		name := c.Param("name")
		if name == "" || len(name) > maxRoomNameLen {
			c.String(http.StatusBadRequest, "bad room name")
			return
		}
		png, err := qrcode.Encode(InviteURL(opts.PublicURL, name), qrcode.Medium, qrSize)
		if err != nil {
			log.Error().Err(err).Str("room", name).Msg("qr encode")
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	})

	if opts.StaticDir != "" {
		// Serve static files with no-cache so browsers always revalidate
		fs := http.FileServer(http.Dir(opts.StaticDir))
		e.NoRoute(func(c *gin.Context) {
			c.Header("Cache-Control", "no-cache")
			if c.Request.URL.Path == "/" {
				c.File(filepath.Join(opts.StaticDir, "index.html"))
				return
			}
			fs.ServeHTTP(c.Writer, c.Request)
		})
	}

	return e
}

// InviteURL builds the link a QR invite points at
func InviteURL(publicURL, room string) string {
	return publicURL + "/?room=" + url.QueryEscape(room)
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/ws" {
			return
		}
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http")
	}
}
