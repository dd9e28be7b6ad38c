package controller

import (
	"errors"
	"strconv"

	"legal-review-client/internal/api"
	"legal-review-client/internal/approval"
	"legal-review-client/internal/channel"
	"legal-review-client/internal/dto"
	"legal-review-client/internal/pkg/logger"
	"legal-review-client/internal/pkg/serverutils"
	"legal-review-client/internal/service"
	"legal-review-client/internal/session"
	"legal-review-client/internal/view"
	internalWS "legal-review-client/internal/websocket"
	"legal-review-client/internal/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IReviewController interface {
	RegisterRoutes(r fiber.Router, middleware ...fiber.Handler)
	GetState(ctx *fiber.Ctx) error
	StartAnalysis(ctx *fiber.Ctx) error
	Decide(ctx *fiber.Ctx) error
	Edit(ctx *fiber.Ctx) error
	ApproveAll(ctx *fiber.Ctx) error
	RejectAll(ctx *fiber.Ctx) error
	Submit(ctx *fiber.Ctx) error
	RefreshCatalog(ctx *fiber.Ctx) error
	SelectDocument(ctx *fiber.Ctx) error
	SelectFile(ctx *fiber.Ctx) error
	ClearSelection(ctx *fiber.Ctx) error
	DocumentPDF(ctx *fiber.Ctx) error
	PageImage(ctx *fiber.Ctx) error
	AuditHistory(ctx *fiber.Ctx) error
	ServeWs(ctx *fiber.Ctx) error
}

type reviewController struct {
	service service.IReviewService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewReviewController(service service.IReviewService, hub *internalWS.Hub, log logger.ILogger) IReviewController {
	return &reviewController{service: service, hub: hub, logger: log}
}

func (c *reviewController) RegisterRoutes(r fiber.Router, middleware ...fiber.Handler) {
	h := r.Group("/review", middleware...)
	h.Get("/state", c.GetState)
	h.Post("/analysis", c.StartAnalysis)

	a := h.Group("/approval")
	a.Post("/decisions", c.Decide)
	a.Post("/edits", c.Edit)
	a.Post("/approve-all", c.ApproveAll)
	a.Post("/reject-all", c.RejectAll)
	a.Post("/submit", c.Submit)

	h.Post("/documents/refresh", c.RefreshCatalog)
	h.Post("/documents/:id/select", c.SelectDocument)
	h.Get("/documents/:id/pdf", c.DocumentPDF)
	h.Get("/documents/:id/pages/:page/image", c.PageImage)
	h.Post("/files/select", c.SelectFile)
	h.Delete("/selection", c.ClearSelection)
	h.Get("/audit", c.AuditHistory)

	h.Get("/ws", c.ServeWs)
}

func (c *reviewController) GetState(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Review state", c.service.Snapshot()))
}

func (c *reviewController) StartAnalysis(ctx *fiber.Ctx) error {
	var req dto.StartAnalysisRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.StartAnalysis(ctx.Context(), &req); err != nil {
		return c.fail(ctx, err)
	}
	return c.state(ctx, "Analysis started")
}

func (c *reviewController) Decide(ctx *fiber.Ctx) error {
	var req dto.DecisionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.Decide(ctx.Context(), &req); err != nil {
		return c.fail(ctx, err)
	}
	return c.state(ctx, "Decision recorded")
}

func (c *reviewController) Edit(ctx *fiber.Ctx) error {
	var req dto.EditRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.Edit(ctx.Context(), &req); err != nil {
		return c.fail(ctx, err)
	}
	return c.state(ctx, "Edit recorded")
}

func (c *reviewController) ApproveAll(ctx *fiber.Ctx) error {
	if err := c.service.ApproveAll(ctx.Context()); err != nil {
		return c.fail(ctx, err)
	}
	return c.state(ctx, "All actions approved")
}

func (c *reviewController) RejectAll(ctx *fiber.Ctx) error {
	if err := c.service.RejectAll(ctx.Context()); err != nil {
		return c.fail(ctx, err)
	}
	return c.state(ctx, "All actions rejected")
}

func (c *reviewController) Submit(ctx *fiber.Ctx) error {
	if err := c.service.Submit(ctx.Context()); err != nil {
		return c.fail(ctx, err)
	}
	return c.state(ctx, "Decisions submitted")
}

func (c *reviewController) RefreshCatalog(ctx *fiber.Ctx) error {
	if err := c.service.RefreshCatalog(ctx.Context()); err != nil {
		return c.fail(ctx, err)
	}
	return c.state(ctx, "Catalog refreshed")
}

// SelectDocument answers with the snapshot even when the detail failed to
// load; the error is part of the document panel state.
func (c *reviewController) SelectDocument(ctx *fiber.Ctx) error {
	docID, err := strconv.Atoi(ctx.Params("id"))
	if err != nil || docID < 1 {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid document id"))
	}

	if err := c.service.SelectDocument(ctx.Context(), docID); err != nil {
		c.logger.Warn("ReviewController", "Document detail failed to load", map[string]interface{}{"doc_id": docID, "error": err.Error()})
	}
	return c.state(ctx, "Document selected")
}

func (c *reviewController) SelectFile(ctx *fiber.Ctx) error {
	var req dto.SelectFileRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.SelectFile(ctx.Context(), &req); err != nil {
		return c.fail(ctx, err)
	}
	return c.state(ctx, "File selected")
}

func (c *reviewController) ClearSelection(ctx *fiber.Ctx) error {
	c.service.ClearSelection(ctx.Context())
	return c.state(ctx, "Selection cleared")
}

func (c *reviewController) DocumentPDF(ctx *fiber.Ctx) error {
	docID, err := strconv.Atoi(ctx.Params("id"))
	if err != nil || docID < 1 {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid document id"))
	}

	bin, err := c.service.DocumentPDF(ctx.Context(), docID)
	if err != nil {
		return c.fail(ctx, err)
	}
	return sendBinary(ctx, bin, "application/pdf")
}

func (c *reviewController) PageImage(ctx *fiber.Ctx) error {
	var params dto.PageImageParams
	if err := ctx.ParamsParser(&params); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid document or page"))
	}
	if err := serverutils.ValidateRequest(params); err != nil {
		return err
	}

	bin, err := c.service.PageImage(ctx.Context(), &params)
	if err != nil {
		return c.fail(ctx, err)
	}
	return sendBinary(ctx, bin, "image/png")
}

func (c *reviewController) AuditHistory(ctx *fiber.Ctx) error {
	var query dto.AuditHistoryQuery
	if err := ctx.QueryParser(&query); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid limit"))
	}
	if err := serverutils.ValidateRequest(query); err != nil {
		return err
	}

	audits, err := c.service.AuditHistory(ctx.Context(), &query)
	if err != nil {
		return c.fail(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Decision history", audits))
}

func (c *reviewController) ServeWs(ctx *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(ctx) {
		return websocket.New(func(conn *websocket.Conn) {
			c.logger.Info("ReviewController", "State stream opened", map[string]interface{}{"remote": conn.RemoteAddr().String()})
			internalWS.ServeWs(c.hub, conn, func() interface{} { return c.service.Snapshot() })
			c.logger.Info("ReviewController", "State stream closed", nil)
		})(ctx)
	}
	return fiber.ErrUpgradeRequired
}

func (c *reviewController) state(ctx *fiber.Ctx, message string) error {
	return ctx.JSON(serverutils.SuccessResponse(message, c.service.Snapshot()))
}

func (c *reviewController) fail(ctx *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		c.logger.Error("ReviewController", "Request failed", map[string]interface{}{"path": ctx.Path(), "error": err.Error()})
	}
	return ctx.Status(code).JSON(serverutils.ErrorResponse(code, err.Error()))
}

func statusFor(err error) int {
	var verr *approval.ValidationError
	var serr *api.StatusError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, approval.ErrIndexOutOfRange),
		errors.Is(err, workflow.ErrEmptyMessage):
		return fiber.StatusBadRequest
	case errors.Is(err, approval.ErrDecisionNotAllowed):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, approval.ErrNoPendingRequest),
		errors.Is(err, approval.ErrIncomplete),
		errors.Is(err, workflow.ErrAnalysisInProgress),
		errors.Is(err, session.ErrNotBootstrapped):
		return fiber.StatusConflict
	case errors.Is(err, view.ErrFileNotFound), errors.Is(err, api.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, channel.ErrNotConnected):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &serr):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func sendBinary(ctx *fiber.Ctx, bin *api.Binary, fallback string) error {
	contentType := bin.ContentType
	if contentType == "" {
		contentType = fallback
	}
	ctx.Set(fiber.HeaderContentType, contentType)
	return ctx.Send(bin.Data)
}
