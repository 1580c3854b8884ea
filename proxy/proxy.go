// Package proxy provides the stream relay: it accepts a chat request from an
// allow-listed origin, opens one streaming Messages API call and re-frames the
// upstream events into the simplified wire format, then hands the finished
// answer to the variable store worker pool.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/hypedigitaly/streamer/pkg/credentials"
	"github.com/hypedigitaly/streamer/pkg/llm/anthropic"
	"github.com/hypedigitaly/streamer/pkg/logger"
	"github.com/hypedigitaly/streamer/pkg/utils"
	"github.com/hypedigitaly/streamer/pkg/variables"
	"github.com/hypedigitaly/streamer/pkg/wire"
	"github.com/hypedigitaly/streamer/proxy/header"
	"github.com/hypedigitaly/streamer/proxy/worker"
)

// Routes served by the proxy.
const (
	StreamPath         = "/api/claude-stream"
	VariableUpdatePath = "/api/voiceflow-variable-update"
	LegacyUpdatePath   = "/api/update-voiceflow-variables"
	HealthPath         = "/healthz"
)

// RequestIDHeader carries the id the proxy assigns to each stream.
const RequestIDHeader = "X-Request-Id"

const (
	msgMethodNotAllowed = "Method not allowed"
	msgAccessDenied     = "Access denied - domain not whitelisted"
	msgMissingParams    = "Missing required parameters"
	msgUpdateFailed     = "Failed to update Voiceflow variables"
)

type errorResponse struct {
	Error string `json:"error"`
}

// Proxy relays streaming completions to widget clients.
type Proxy struct {
	config     Config
	gate       *header.Gate
	keys       worker.KeyResolver
	llm        *anthropic.Client
	variables  *variables.Client
	workerPool *worker.Pool
	logger     *slog.Logger
	server     *fiber.App
}

// New creates a new Proxy. keys selects upstream and variable store
// credentials, normally a *credentials.Resolver.
func New(config Config, keys worker.KeyResolver, l *slog.Logger) (*Proxy, error) {
	if keys == nil {
		return nil, errors.New("key resolver is required")
	}
	if l == nil {
		l = logger.Nop()
	}
	config.applyDefaults()

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	vc := variables.NewClient(variables.Config{
		Endpoint:  config.Variables.Endpoint,
		VersionID: config.Variables.VersionID,
	}, l)

	p := &Proxy{
		config:    config,
		gate:      header.NewGate(config.AllowedOrigins),
		keys:      keys,
		variables: vc,
		logger:    l,
		server:    app,
		llm: anthropic.New(
			anthropic.WithBaseURL(config.AnthropicUpstream),
			anthropic.WithVersion(config.AnthropicVersion),
			anthropic.WithLogger(l),
		),
	}

	if config.Variables.Enabled {
		wp, err := worker.NewPool(&worker.Config{
			Keys:      keys,
			Updater:   vc,
			Publisher: config.Publisher,
			Logger:    l,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create worker pool: %w", err)
		}
		p.workerPool = wp
	}

	if p.gate.Disabled() {
		l.Warn("origin allow-list is empty, accepting every origin")
	}

	app.Get(HealthPath, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.All(StreamPath, p.guard, p.handleStream)
	app.All("/", p.guard, p.handleStream)
	app.All(VariableUpdatePath, p.guard, p.handleVariableUpdate)
	app.All(LegacyUpdatePath, p.guard, p.handleLegacyUpdate)

	return p, nil
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		"listen", p.config.ListenAddr,
		"allowed_origins", p.gate.Domains(),
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		"listen", listener.Addr().String(),
		"allowed_origins", p.gate.Domains(),
	)

	return p.server.Listener(listener)
}

// Handler exposes the proxy as a net/http handler for function runtimes.
func (p *Proxy) Handler() http.Handler {
	return adaptor.FiberApp(p.server)
}

// SetAllowedOrigins swaps the origin allow-list while serving.
func (p *Proxy) SetAllowedOrigins(domains []string) {
	p.gate.SetDomains(domains)
	p.logger.Info("origin allow-list updated", "allowed_origins", p.gate.Domains())
	if p.gate.Disabled() {
		p.logger.Warn("origin allow-list is empty, accepting every origin")
	}
}

// Close gracefully shuts down the proxy and waits for the worker pool to drain
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	if p.workerPool != nil {
		p.workerPool.Close()
	} else if p.config.Publisher != nil {
		if cerr := p.config.Publisher.Close(); cerr != nil {
			p.logger.Warn("closing event publisher", "error", cerr)
		}
	}
	return err
}

// guard applies the origin gate, writes CORS headers, answers preflights and
// rejects methods other than POST.
func (p *Proxy) guard(c *fiber.Ctx) error {
	origin := c.Get(fiber.HeaderOrigin)
	if !p.gate.Allowed(origin) {
		p.logger.Warn("origin rejected", "origin", origin, "path", c.Path())
		return c.Status(fiber.StatusForbidden).JSON(errorResponse{Error: msgAccessDenied})
	}

	header.SetCORS(c, origin)

	switch c.Method() {
	case fiber.MethodOptions:
		return c.SendStatus(fiber.StatusOK)
	case fiber.MethodPost:
		return c.Next()
	default:
		p.logger.Error("invalid method", "method", c.Method(), "path", c.Path())
		return c.Status(fiber.StatusMethodNotAllowed).JSON(errorResponse{Error: msgMethodNotAllowed})
	}
}

// handleStream relays one streaming completion.
func (p *Proxy) handleStream(c *fiber.Ctx) error {
	start := time.Now()
	requestID := uuid.NewString()

	header.SetStreamHeaders(c)
	c.Set(RequestIDHeader, requestID)

	var req wire.Request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		p.logger.Warn("invalid request body", "request_id", requestID, "error", err)
		return sendErrorFrame(c, "invalid request body")
	}

	log := p.logger.With(
		"request_id", requestID,
		"origin", c.Get(fiber.HeaderOrigin),
		"project", req.Selector(),
	)

	if err := req.Validate(); err != nil {
		log.Warn("rejecting request", "error", err)
		return sendErrorFrame(c, err.Error())
	}

	apiKey, err := p.keys.Resolve(credentials.ProviderAnthropic, req.Selector())
	if err != nil {
		log.Error("no upstream credential", "error", err)
		return sendErrorFrame(c, err.Error())
	}

	msgReq := p.messagesRequest(&req)
	if req.Debug() {
		log.Info("received stream request",
			"model", msgReq.Model,
			"max_tokens", msgReq.MaxTokens,
			"temperature", *msgReq.Temperature,
			"system_prompt", utils.Truncate(req.SystemPrompt, 100),
			"user_id", req.UserID,
		)
	}

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the relay runs in a
	// separate goroutine and needs the upstream connection to remain open.
	ctx, cancel := context.WithTimeout(context.Background(), p.config.UpstreamTimeout)

	var counter *byteCounter
	var tee io.Writer
	if req.Debug() {
		counter = &byteCounter{}
		tee = counter
	}

	stream, err := p.llm.Stream(ctx, apiKey, msgReq, tee)
	if err != nil {
		cancel()
		log.Error("upstream request failed", "model", msgReq.Model, "error", err)
		return sendErrorFrame(c, err.Error())
	}

	r := &relay{
		proxy:     p,
		stream:    stream,
		cancel:    cancel,
		log:       log,
		counter:   counter,
		start:     start,
		requestID: requestID,
		req:       req,
		model:     msgReq.Model,
	}

	// io.Pipe gives per-frame flushing: pw.Write blocks until fasthttp's
	// chunked body writer has consumed the frame and flushed it to the socket.
	pr, pw := io.Pipe()
	go r.run(pw)

	// Unknown size (-1) selects chunked transfer encoding.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// messagesRequest applies the configured defaults to a client request.
func (p *Proxy) messagesRequest(req *wire.Request) *anthropic.MessagesRequest {
	model := req.Model
	if model == "" {
		model = p.config.DefaultModel
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.DefaultMaxTokens
	}

	temperature := p.config.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	return &anthropic.MessagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		Messages:    []anthropic.Message{{Role: "user", Content: req.UserData}},
		System:      anthropic.EphemeralSystem(req.SystemPrompt),
	}
}

// enqueueAnswer hands a finished answer to the worker pool.
func (p *Proxy) enqueueAnswer(log *slog.Logger, job worker.Job) {
	if p.workerPool == nil || job.UserID == "" {
		return
	}
	if job.Answer == "" {
		log.Debug("empty answer, skipping variable store update")
		return
	}
	if job.VariableName == "" {
		job.VariableName = p.config.Variables.VariableName
	}
	p.workerPool.Enqueue(job)
}

type variableUpdateRequest struct {
	UserID      string         `json:"user_id"`
	ProjectName string         `json:"projectName"`
	Variables   map[string]any `json:"variables"`
	DebugMode   int            `json:"debugMode"`
}

type variableUpdateResponse struct {
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// handleVariableUpdate writes arbitrary variables for a user.
func (p *Proxy) handleVariableUpdate(c *fiber.Ctx) error {
	var req variableUpdateRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.UserID == "" || req.Variables == nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: msgMissingParams})
	}

	log := p.logger.With("user_id", req.UserID, "project", req.ProjectName)

	apiKey, err := p.keys.Resolve(credentials.ProviderVoiceflow, req.ProjectName)
	if err != nil {
		log.Error("no variable store credential", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
	}

	if req.DebugMode == 1 {
		keys := make([]string, 0, len(req.Variables))
		for k := range req.Variables {
			keys = append(keys, k)
		}
		log.Info("variable update request", "variables", keys)
	}

	res, err := p.variables.Update(c.UserContext(), apiKey, req.UserID, req.Variables)
	if err != nil {
		var se *variables.StatusError
		if errors.As(err, &se) {
			log.Error("variable update rejected", "status", se.StatusCode, "body", se.Body)
			return c.Status(se.StatusCode).JSON(variableUpdateResponse{
				Error:   msgUpdateFailed,
				Status:  se.StatusCode,
				Message: se.Body,
			})
		}
		log.Error("variable update failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
	}

	msg := res.Body
	if strings.TrimSpace(msg) == "" {
		msg = "Variables updated successfully"
	}
	if req.DebugMode == 1 {
		log.Info("variable update succeeded", "status", res.StatusCode)
	}

	return c.JSON(variableUpdateResponse{
		Success: true,
		Status:  res.StatusCode,
		Message: msg,
	})
}

type legacyUpdateRequest struct {
	UserID   string `json:"user_id"`
	Response string `json:"response"`
}

// handleLegacyUpdate writes the main response variable, selecting the
// project from the X-Project-Name header.
func (p *Proxy) handleLegacyUpdate(c *fiber.Ctx) error {
	var req legacyUpdateRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: msgUpdateFailed})
	}

	project := c.Get(header.ProjectNameHeader)
	log := p.logger.With("user_id", req.UserID, "project", project)

	apiKey, err := p.keys.Resolve(credentials.ProviderVoiceflow, project)
	if err != nil {
		log.Error("no variable store credential", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: msgUpdateFailed})
	}

	if _, err := p.variables.SetAnswer(c.UserContext(), apiKey, req.UserID, variables.DefaultVariable, req.Response); err != nil {
		log.Error("legacy variable update failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: msgUpdateFailed})
	}

	return c.JSON(fiber.Map{"success": true})
}

// sendErrorFrame answers a stream request with a single error frame.
func sendErrorFrame(c *fiber.Ctx, msg string) error {
	var buf bytes.Buffer
	if err := wire.WriteError(&buf, msg); err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}
