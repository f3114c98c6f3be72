// Package server exposes the honeypot over HTTP: the inbound message
// endpoint, health and stats surfaces, the per-session debug view, and
// the Prometheus scrape endpoint.
package server

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/decoynet/honeypot/pkg/config"
	"github.com/decoynet/honeypot/pkg/llm"
	"github.com/decoynet/honeypot/pkg/safety"
	"github.com/decoynet/honeypot/pkg/session"
)

// fallbackReply is returned when the turn pipeline panics. The scammer
// must never see an error surface.
const fallbackReply = "I'm sorry, I didn't catch that. Could you repeat?"

var httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "honeypot",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by route and status.",
}, []string{"route", "status"})

func init() {
	prometheus.MustRegister(httpRequests)
}

// inboundMessage is the turn carried by an inbound request.
type inboundMessage struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// messageRequest is the inbound body. conversationHistory and metadata
// are accepted but advisory: the server's own history is authoritative,
// and the conversation language is classified from message content
// rather than taken from metadata.
type messageRequest struct {
	SessionID           string           `json:"sessionId"`
	Message             inboundMessage   `json:"message"`
	ConversationHistory []inboundMessage `json:"conversationHistory"`
	Metadata            map[string]any   `json:"metadata"`
}

// messageResponse is exactly two fields. Downstream consumers reject
// anything else.
type messageResponse struct {
	Status string `json:"status"`
	Reply  string `json:"reply"`
}

// Server wires the engine and its collaborators into a fiber app.
type Server struct {
	cfg    *config.Config
	engine *session.Engine
	fabric *safety.Fabric
	model  *llm.Client
	app    *fiber.App
}

// New builds the HTTP server. model may be nil when the service runs
// template-only.
func New(cfg *config.Config, engine *session.Engine, fabric *safety.Fabric, model *llm.Client) *Server {
	s := &Server{
		cfg:    cfg,
		engine: engine,
		fabric: fabric,
		model:  model,
		app: fiber.New(fiber.Config{
			AppName: "decoynet-honeypot",
		}),
	}
	s.routes()
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) routes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	keyed := s.requireAPIKey
	s.app.Post("/api/honeypot/message", keyed, s.handleMessage)
	s.app.Get("/stats", keyed, s.handleStats)
	s.app.Get("/debug/session/:id", keyed, s.handleDebugSession)
}

// requireAPIKey gates everything except health and metrics.
func (s *Server) requireAPIKey(c fiber.Ctx) error {
	if c.Get("x-api-key") != s.cfg.APIKey {
		count(c.Path(), fiber.StatusUnauthorized)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or missing api key"})
	}
	return c.Next()
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	count("/health", fiber.StatusOK)
	return c.JSON(fiber.Map{"status": "ok", "service": "honeypot"})
}

func (s *Server) handleMessage(c fiber.Ctx) error {
	var req messageRequest
	if err := c.Bind().Body(&req); err != nil {
		count("/api/honeypot/message", fiber.StatusBadRequest)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.SessionID == "" {
		count("/api/honeypot/message", fiber.StatusBadRequest)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "sessionId is required"})
	}
	if req.Message.Text == "" {
		count("/api/honeypot/message", fiber.StatusBadRequest)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message.text is required"})
	}

	if s.cfg.Debug() {
		log.Printf("[HTTP] %s: inbound message (%d chars)", req.SessionID, len(req.Message.Text))
	}

	reply := s.safeHandleTurn(c, req)
	count("/api/honeypot/message", fiber.StatusOK)
	return c.JSON(messageResponse{Status: "success", Reply: reply})
}

// safeHandleTurn converts a pipeline panic into the generic fallback so
// a single poisoned message cannot 500 the conversation.
func (s *Server) safeHandleTurn(c fiber.Ctx, req messageRequest) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[HTTP] %s: turn pipeline panic: %v", req.SessionID, r)
			reply = fallbackReply
		}
	}()
	return s.engine.HandleTurn(c.Context(), req.SessionID, req.Message.Text, req.Message.Timestamp)
}

func (s *Server) handleStats(c fiber.Ctx) error {
	stats := s.engine.Store().Stats()

	breakers := fiber.Map{}
	for _, m := range []safety.Module{safety.ModuleClassifier, safety.ModuleGenerator, safety.ModuleExtractor} {
		breakers[string(m)] = s.fabric.Breaker().State(string(m)).String()
	}

	out := fiber.Map{
		"sessions":      stats.Sessions,
		"scamsDetected": stats.ScamsDetected,
		"finalized":     stats.Finalized,
		"totalMessages": stats.TotalMessages,
		"states":        stats.States,
		"intelCounts":   stats.IntelCounts,
		"breakers":      breakers,
	}
	if s.model != nil {
		out["llm"] = fiber.Map{
			"enabled":   s.model.Enabled(),
			"semaphore": s.model.SemStats(),
		}
	} else {
		out["llm"] = fiber.Map{"enabled": false}
	}

	count("/stats", fiber.StatusOK)
	return c.JSON(out)
}

func (s *Server) handleDebugSession(c fiber.Ctx) error {
	id := c.Params("id")
	sess := s.engine.Store().Get(id)
	if sess == nil {
		count("/debug/session", fiber.StatusNotFound)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown session"})
	}
	count("/debug/session", fiber.StatusOK)
	return c.JSON(sess.Snapshot())
}

func count(route string, status int) {
	httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
