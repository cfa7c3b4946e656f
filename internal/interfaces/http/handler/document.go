package handler

import (
	appeinvoice "github.com/einvoice/backend/internal/application/einvoice"
	"github.com/einvoice/backend/internal/domain/einvoice"
	"github.com/einvoice/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentHandler handles document exchange API endpoints
type DocumentHandler struct {
	BaseHandler
	documents   *appeinvoice.DocumentService
	submissions *appeinvoice.SubmissionService
	reconciler  *appeinvoice.BulkReconcileService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(
	documents *appeinvoice.DocumentService,
	submissions *appeinvoice.SubmissionService,
	reconciler *appeinvoice.BulkReconcileService,
) *DocumentHandler {
	return &DocumentHandler{
		documents:   documents,
		submissions: submissions,
		reconciler:  reconciler,
	}
}

// RegisterRoutes registers all document routes
func (h *DocumentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	docs := rg.Group("/documents")
	{
		docs.POST("", h.Create)
		docs.GET("", h.List)
		docs.POST("/reconcile", h.Reconcile)
		docs.GET("/:id", h.GetByID)
		docs.PUT("/:id/payload", h.AttachPayload)
		docs.POST("/:id/submit", h.Submit)
		docs.POST("/:id/confirm-resend", h.ConfirmResend)
		docs.POST("/:id/cancel-resend", h.CancelResend)
		docs.POST("/:id/check-status", h.CheckStatus)
	}
}

// Create godoc
// @ID           createDocument
// @Summary      Register a new document
// @Description  Register a draft document for later submission to the exchange provider
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body CreateDocumentRequest true "Document registration request"
// @Success      201 {object} APIResponse[DocumentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	appReq := appeinvoice.CreateDocumentRequest{
		InvoiceNumber:    req.InvoiceNumber,
		CounterpartName:  req.CounterpartName,
		CounterpartTaxID: req.CounterpartTaxID,
		TotalAmount:      decimal.NewFromFloat(req.TotalAmount),
		Currency:         req.Currency,
	}
	if req.Profile != nil {
		profile := einvoice.Profile(*req.Profile)
		appReq.Profile = &profile
	}

	doc, err := h.documents.Create(c.Request.Context(), tenantID, appReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toDocumentResponse(doc))
}

// GetByID godoc
// @ID           getDocumentById
// @Summary      Get document by ID
// @Description  Retrieve a document with its current submission state
// @Tags         documents
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} APIResponse[DocumentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /documents/{id} [get]
func (h *DocumentHandler) GetByID(c *gin.Context) {
	tenantID, documentID, ok := h.tenantAndDocument(c)
	if !ok {
		return
	}

	doc, err := h.documents.GetByID(c.Request.Context(), tenantID, documentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toDocumentResponse(doc))
}

// List godoc
// @ID           listDocuments
// @Summary      List documents
// @Description  Retrieve a paginated list of documents with optional filtering
// @Tags         documents
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        search query string false "Search term (invoice number, counterpart name, tax id)"
// @Param        status query string false "Document status" Enums(draft, sending, sent, delivered, error)
// @Param        profile query string false "Submission profile" Enums(E_INVOICE, E_ARCHIVE)
// @Param        external_ref_id query string false "Provider-assigned reference"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]DocumentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req ListDocumentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Search:   req.Search,
		Filters:  map[string]interface{}{},
	}
	if req.Status != "" {
		filter.Filters["status"] = req.Status
	}
	if req.Profile != "" {
		filter.Filters["profile"] = req.Profile
	}
	if req.ExternalRefID != "" {
		filter.Filters["external_ref_id"] = req.ExternalRefID
	}

	documents, total, err := h.documents.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	responses := make([]DocumentResponse, len(documents))
	for i := range documents {
		responses[i] = toDocumentResponse(&documents[i])
	}

	h.SuccessWithMeta(c, responses, total, req.Page, req.PageSize)
}

// AttachPayload godoc
// @ID           attachDocumentPayload
// @Summary      Attach the transfer payload to a document
// @Description  Store the prepared transfer file the provider will receive on submission
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Document ID" format(uuid)
// @Param        request body AttachPayloadRequest true "Payload upload request"
// @Success      204 "No Content"
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /documents/{id}/payload [put]
func (h *DocumentHandler) AttachPayload(c *gin.Context) {
	tenantID, documentID, ok := h.tenantAndDocument(c)
	if !ok {
		return
	}

	var req AttachPayloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.documents.AttachPayload(c.Request.Context(), tenantID, documentID, req.FileName, req.Content); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// Submit godoc
// @ID           submitDocument
// @Summary      Submit a document to the exchange provider
// @Description  Send the document's payload to the provider. A possible duplicate submission answers with needs_confirmation instead of sending.
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Document ID" format(uuid)
// @Param        request body SubmitDocumentRequest false "Submission options"
// @Success      200 {object} APIResponse[SubmitOutcomeResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /documents/{id}/submit [post]
func (h *DocumentHandler) Submit(c *gin.Context) {
	tenantID, documentID, ok := h.tenantAndDocument(c)
	if !ok {
		return
	}

	var req SubmitDocumentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	opts := appeinvoice.SubmitOptions{
		ForceResend:     req.ForceResend,
		DeliveryChannel: req.DeliveryChannel,
		NotifyAddresses: req.NotifyAddresses,
	}
	if req.Profile != nil {
		profile := einvoice.Profile(*req.Profile)
		opts.Profile = &profile
	}

	outcome, err := h.submissions.Submit(c.Request.Context(), tenantID, documentID, opts)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toSubmitOutcomeResponse(outcome))
}

// ConfirmResend godoc
// @ID           confirmDocumentResend
// @Summary      Confirm a held duplicate submission
// @Description  Resolve an open confirmation and resend the document with the duplicate guard bypassed
// @Tags         documents
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} APIResponse[SubmitOutcomeResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /documents/{id}/confirm-resend [post]
func (h *DocumentHandler) ConfirmResend(c *gin.Context) {
	tenantID, documentID, ok := h.tenantAndDocument(c)
	if !ok {
		return
	}

	outcome, err := h.submissions.ConfirmResend(c.Request.Context(), tenantID, documentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toSubmitOutcomeResponse(outcome))
}

// CancelResend godoc
// @ID           cancelDocumentResend
// @Summary      Cancel a held duplicate submission
// @Description  Resolve an open confirmation without resending; the document keeps its current status
// @Tags         documents
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Document ID" format(uuid)
// @Success      204 "No Content"
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /documents/{id}/cancel-resend [post]
func (h *DocumentHandler) CancelResend(c *gin.Context) {
	tenantID, documentID, ok := h.tenantAndDocument(c)
	if !ok {
		return
	}

	if err := h.submissions.CancelResend(c.Request.Context(), tenantID, documentID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// CheckStatus godoc
// @ID           checkDocumentStatus
// @Summary      Check provider status for a document
// @Description  Run one on-demand status lookup against the exchange provider
// @Tags         documents
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Document ID" format(uuid)
// @Success      200 {object} APIResponse[CheckOutcomeResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /documents/{id}/check-status [post]
func (h *DocumentHandler) CheckStatus(c *gin.Context) {
	tenantID, documentID, ok := h.tenantAndDocument(c)
	if !ok {
		return
	}

	outcome, err := h.submissions.CheckStatus(c.Request.Context(), tenantID, documentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toCheckOutcomeResponse(outcome))
}

// Reconcile godoc
// @ID           reconcileDocuments
// @Summary      Run a bulk reconciliation pass
// @Description  Check every non-terminal submitted document against the provider and settle final states
// @Tags         documents
// @Produce      json
// @Success      200 {object} APIResponse[appeinvoice.ReconcileResult]
// @Failure      500 {object} ErrorResponse
// @Router       /documents/reconcile [post]
func (h *DocumentHandler) Reconcile(c *gin.Context) {
	result, err := h.reconciler.Reconcile(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// tenantAndDocument extracts and validates the tenant and document ids,
// writing the error response itself when either is invalid.
func (h *DocumentHandler) tenantAndDocument(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return uuid.Nil, uuid.Nil, false
	}

	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return uuid.Nil, uuid.Nil, false
	}

	return tenantID, documentID, true
}
