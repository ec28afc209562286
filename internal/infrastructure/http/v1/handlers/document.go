package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"warelog/internal/core/apperror"
	"warelog/internal/core/id"
	"warelog/internal/domain/documents"
	"warelog/internal/infrastructure/http/v1/dto"
)

// DocumentHandler handles warehouse document endpoints.
// All ten document types go through the same routes; per-type behavior
// lives in the workflow engine.
type DocumentHandler struct {
	*BaseHandler
	service *documents.Service
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(base *BaseHandler, service *documents.Service) *DocumentHandler {
	return &DocumentHandler{
		BaseHandler: base,
		service:     service,
	}
}

// List handles GET /documents.
func (h *DocumentHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var query dto.ListDocumentsQuery
	if !h.BindQuery(c, &query) {
		return
	}

	filter, err := query.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(result, dto.FromDocument))
}

// Get handles GET /documents/:id.
func (h *DocumentHandler) Get(c *gin.Context) {
	docID, ok := h.paramID(c)
	if !ok {
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(doc))
}

// Create handles POST /documents - creates an open document with
// provisional stock effects. INW counts go through POST /documents/inventory.
func (h *DocumentHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromDocument(doc))
}

// Update handles PUT /documents/:id - edits an open document,
// re-applying its provisional effects.
func (h *DocumentHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	docID, ok := h.paramID(c)
	if !ok {
		return
	}

	var req dto.UpdateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.GetByID(ctx, docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := req.ApplyTo(doc); err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Update(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(doc))
}

// Close handles POST /documents/:id/close - finalizes the document,
// making its stock effects permanent.
func (h *DocumentHandler) Close(c *gin.Context) {
	docID, ok := h.paramID(c)
	if !ok {
		return
	}

	doc, err := h.service.Close(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(doc))
}

// Delete handles DELETE /documents/:id - removes an open document and
// reverses its provisional effects.
func (h *DocumentHandler) Delete(c *gin.Context) {
	docID, ok := h.paramID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Link handles POST /documents/:id/link - derives the financial document
// (FVZ from PZ, FS from WZ) from a closed goods document.
func (h *DocumentHandler) Link(c *gin.Context) {
	docID, ok := h.paramID(c)
	if !ok {
		return
	}

	var req dto.LinkDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	linked, err := h.service.LinkFinancialDocument(c.Request.Context(), docID, req.ToOptions())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromDocument(linked))
}

// ProcessInventory handles POST /documents/inventory - creates and
// immediately closes an INW count, applying variances.
func (h *DocumentHandler) ProcessInventory(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.Type = documents.TypeINW

	doc, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.ProcessInventory(ctx, doc); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromDocument(doc))
}

// GetByOrder handles GET /documents/by-order/:ref - finds the latest
// document of a type linked to an external order.
func (h *DocumentHandler) GetByOrder(c *gin.Context) {
	docType := documents.Type(c.DefaultQuery("type", string(documents.TypeWZ)))

	doc, err := h.service.GetByRelatedOrder(c.Request.Context(), c.Param("ref"), docType)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(doc))
}

// Types handles GET /documents/types - the document type behavior table.
func (h *DocumentHandler) Types(c *gin.Context) {
	defs := documents.All()
	items := make([]gin.H, 0, len(defs))
	for _, def := range defs {
		items = append(items, gin.H{
			"type":          def.Type,
			"label":         def.Label,
			"financial":     def.Financial,
			"immediate":     def.Immediate,
			"required":      def.Required,
			"requiresItems": def.RequiresItems,
		})
	}
	h.OK(c, gin.H{"items": items})
}

func (h *BaseHandler) paramID(c *gin.Context) (id.ID, bool) {
	parsed, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return id.Nil(), false
	}
	return parsed, true
}
