package mgmt

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/studio-agent/internal/conversation"
	perrors "github.com/p-blackswan/studio-agent/internal/errors"
	"github.com/p-blackswan/studio-agent/internal/health"
	"github.com/p-blackswan/studio-agent/internal/metrics"
	"github.com/p-blackswan/studio-agent/internal/project"
	"github.com/p-blackswan/studio-agent/internal/store"
)

const maxMessageLen = 2000

// ProjectStore is the read side the API serves directly.
type ProjectStore interface {
	ListProjects(ctx context.Context) ([]project.Project, error)
	ListAudit(ctx context.Context, limit int) ([]store.AuditEntry, error)
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	conversations *conversation.Service
	projects      ProjectStore
	checker       *health.Checker
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	startTime     time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(conversations *conversation.Service, projects ProjectStore, checker *health.Checker, m *metrics.Metrics, logger zerolog.Logger) *Handlers {
	return &Handlers{
		conversations: conversations,
		projects:      projects,
		checker:       checker,
		metrics:       m,
		logger:        logger.With().Str("component", "handlers").Logger(),
		startTime:     time.Now(),
	}
}

// PostMessage handles POST /api/v1/conversations/:id/messages.
func (h *Handlers) PostMessage(c *fiber.Ctx) error {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_text", "Bad Request",
			"Text is required")
	}
	if len(req.Text) > maxMessageLen {
		return problemResponse(c, fiber.StatusRequestEntityTooLarge,
			"text_too_long", "Payload Too Large",
			"Text exceeds 2000 bytes")
	}

	convID := c.Params("id")
	res, err := h.conversations.Handle(c.UserContext(), convID, req.Text)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(MessageResponse{
		ConversationID: convID,
		Kind:           res.Kind(),
		Text:           res.Text(),
		Result:         res,
	})
}

// ConfirmAction handles POST /api/v1/actions/:id/confirm.
func (h *Handlers) ConfirmAction(c *fiber.Ctx) error {
	id := c.Params("id")
	applied, err := h.conversations.Confirm(c.UserContext(), id, actorOf(c))
	if err != nil {
		return h.errorResponse(c, err)
	}
	h.logger.Info().
		Str("action_id", id).
		Str("actor", actorOf(c)).
		Int("updated", len(applied.Updated)).
		Msg("action confirmed")
	return c.JSON(ConfirmResponse{
		ActionID: id,
		Message:  applied.Message,
		Updated:  applied.Updated,
	})
}

// CancelAction handles DELETE /api/v1/actions/:id.
func (h *Handlers) CancelAction(c *fiber.Ctx) error {
	if err := h.conversations.Cancel(c.UserContext(), c.Params("id"), actorOf(c)); err != nil {
		return h.errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListProjects handles GET /api/v1/projects.
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	projects, err := h.projects.ListProjects(c.UserContext())
	if err != nil {
		return h.errorResponse(c, err)
	}
	if projects == nil {
		projects = []project.Project{}
	}
	return c.JSON(ProjectListResponse{Projects: projects, Total: len(projects)})
}

// CreateProject handles POST /api/v1/projects.
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	var req CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	d, err := req.draft()
	if err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_deadline", "Bad Request",
			"Deadline must use the YYYY-MM-DD format")
	}
	p, err := h.conversations.Create(c.UserContext(), d)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// ListAudit handles GET /api/v1/audit.
func (h *Handlers) ListAudit(c *fiber.Ctx) error {
	entries, err := h.projects.ListAudit(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return h.errorResponse(c, err)
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	return c.JSON(AuditListResponse{Entries: entries})
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	report := h.checker.Run(c.UserContext())
	resp := ReadinessResponse{
		Status: "ready",
		Checks: make(map[string]string, len(report.Checks)),
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
	}
	for name, s := range report.Checks {
		resp.Checks[name] = string(s)
	}
	if !report.Ready {
		resp.Status = "not_ready"
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}

// errorResponse maps service errors onto problem responses.
func (h *Handlers) errorResponse(c *fiber.Ctx, err error) error {
	var conflict *perrors.ConflictError
	switch {
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(ProblemDetail{
			Type:       "conflict",
			Title:      "Conflict",
			Status:     fiber.StatusConflict,
			Detail:     conversation.UserMessage(err),
			Instance:   c.Path(),
			RequestID:  requestIDOf(c),
			ProjectIDs: conflict.ProjectIDs,
		})
	case errors.Is(err, perrors.ErrExpired):
		return problemResponse(c, fiber.StatusGone, "action_expired", "Gone", conversation.UserMessage(err))
	case errors.Is(err, perrors.ErrNotFound):
		return problemResponse(c, fiber.StatusNotFound, "not_found", "Not Found", err.Error())
	case errors.Is(err, perrors.ErrInvalidInput):
		return problemResponse(c, fiber.StatusBadRequest, "invalid_input", "Bad Request", err.Error())
	case errors.Is(err, perrors.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		h.metrics.RecordError("mgmt", "unavailable")
		return problemResponse(c, fiber.StatusServiceUnavailable, "unavailable", "Service Unavailable",
			"The store is busy. Please retry.")
	}
	h.metrics.RecordError("mgmt", "internal")
	h.logger.Error().Err(err).Str("path", c.Path()).Str("request_id", requestIDOf(c)).Msg("request failed")
	return problemResponse(c, fiber.StatusInternalServerError, "internal_error", "Internal Server Error",
		"An internal error occurred")
}

// problemResponse returns an RFC 7807 Problem Detail error response.
func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:      errType,
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  c.Path(),
		RequestID: requestIDOf(c),
	})
}
