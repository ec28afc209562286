package dto

import (
	"time"

	"warelog/internal/core/apperror"
	"warelog/internal/core/id"
	"warelog/internal/core/types"
	"warelog/internal/domain/documents"
)

// --- Request DTOs ---

// DocumentItemRequest is one goods line in a document request.
type DocumentItemRequest struct {
	VariantID string         `json:"variantId" binding:"required,uuid"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
	PriceNet  types.Money    `json:"priceNet"`
	TaxRateID *string        `json:"taxRateId" binding:"omitempty,uuid"`
}

// InventoryItemRequest is one count line in an inventory count request.
// Expected quantity and difference are computed server side.
type InventoryItemRequest struct {
	VariantID string         `json:"variantId" binding:"required,uuid"`
	Counted   types.Quantity `json:"countedQuantity"`
	UnitCost  types.Money    `json:"unitCost"`
}

// CreateDocumentRequest is the request body for creating a document.
// WarehouseID is a convenience for single-sided types; MM transfers must
// set source and target explicitly.
type CreateDocumentRequest struct {
	Type         documents.Type `json:"type" binding:"required"`
	DocumentDate *time.Time     `json:"documentDate"`
	IssueDate    *time.Time     `json:"issueDate"`

	WarehouseID       *string `json:"warehouseId" binding:"omitempty,uuid"`
	SourceWarehouseID *string `json:"sourceWarehouseId" binding:"omitempty,uuid"`
	TargetWarehouseID *string `json:"targetWarehouseId" binding:"omitempty,uuid"`

	SupplierID *string `json:"supplierId" binding:"omitempty,uuid"`
	CustomerID *string `json:"customerId" binding:"omitempty,uuid"`

	RelatedOrderID *string `json:"relatedOrderId"`

	DeliveryDate  *time.Time `json:"deliveryDate"`
	PaymentDate   *time.Time `json:"paymentDate"`
	PaymentMethod string     `json:"paymentMethod"`
	Comment       string     `json:"comment"`

	Items          []DocumentItemRequest  `json:"items"`
	InventoryItems []InventoryItemRequest `json:"inventoryItems"`
	Attachments    []AttachmentRequest    `json:"attachments"`
}

// AttachmentRequest references an already uploaded file.
type AttachmentRequest struct {
	FileName string `json:"fileName" binding:"required"`
	MediaID  string `json:"mediaId" binding:"required"`
}

// ToEntity converts DTO to a domain document.
func (r *CreateDocumentRequest) ToEntity() (*documents.Document, error) {
	doc := documents.NewDocument(r.Type)

	if r.DocumentDate != nil {
		doc.DocumentDate = *r.DocumentDate
		doc.IssueDate = *r.DocumentDate
	}
	if r.IssueDate != nil {
		doc.IssueDate = *r.IssueDate
	}

	if r.WarehouseID != nil {
		whID, err := parseID("warehouseId", *r.WarehouseID)
		if err != nil {
			return nil, err
		}
		doc.SetWarehouse(whID)
	}
	var err error
	if doc.SourceWarehouseID, err = parseIDPtr("sourceWarehouseId", r.SourceWarehouseID, doc.SourceWarehouseID); err != nil {
		return nil, err
	}
	if doc.TargetWarehouseID, err = parseIDPtr("targetWarehouseId", r.TargetWarehouseID, doc.TargetWarehouseID); err != nil {
		return nil, err
	}
	if doc.SupplierID, err = parseIDPtr("supplierId", r.SupplierID, nil); err != nil {
		return nil, err
	}
	if doc.CustomerID, err = parseIDPtr("customerId", r.CustomerID, nil); err != nil {
		return nil, err
	}

	doc.RelatedOrderID = r.RelatedOrderID
	doc.DeliveryDate = r.DeliveryDate
	doc.PaymentDate = r.PaymentDate
	doc.PaymentMethod = r.PaymentMethod
	doc.Comment = r.Comment

	for _, line := range r.Items {
		variantID, err := parseID("variantId", line.VariantID)
		if err != nil {
			return nil, err
		}
		taxRateID, err := parseIDPtr("taxRateId", line.TaxRateID, nil)
		if err != nil {
			return nil, err
		}
		doc.AddItem(variantID, line.Quantity, line.PriceNet, taxRateID)
	}

	for _, line := range r.InventoryItems {
		variantID, err := parseID("variantId", line.VariantID)
		if err != nil {
			return nil, err
		}
		doc.InventoryItems = append(doc.InventoryItems, documents.InventoryItem{
			ID:         id.New(),
			DocumentID: doc.ID,
			VariantID:  variantID,
			Counted:    line.Counted,
			UnitCost:   line.UnitCost,
		})
	}

	for _, a := range r.Attachments {
		doc.AddAttachment(a.FileName, a.MediaID)
	}

	return doc, nil
}

// UpdateDocumentRequest is the request body for updating an open document.
// Line items replace the stored set wholesale.
type UpdateDocumentRequest struct {
	DocumentDate *time.Time `json:"documentDate"`
	IssueDate    *time.Time `json:"issueDate"`

	WarehouseID       *string `json:"warehouseId" binding:"omitempty,uuid"`
	SourceWarehouseID *string `json:"sourceWarehouseId" binding:"omitempty,uuid"`
	TargetWarehouseID *string `json:"targetWarehouseId" binding:"omitempty,uuid"`

	SupplierID *string `json:"supplierId" binding:"omitempty,uuid"`
	CustomerID *string `json:"customerId" binding:"omitempty,uuid"`

	RelatedOrderID *string `json:"relatedOrderId"`

	DeliveryDate  *time.Time `json:"deliveryDate"`
	PaymentDate   *time.Time `json:"paymentDate"`
	PaymentMethod string     `json:"paymentMethod"`
	Comment       string     `json:"comment"`

	Items []DocumentItemRequest `json:"items"`

	// Attachments only adds references; existing ones are kept
	Attachments []AttachmentRequest `json:"attachments"`

	Version int `json:"version" binding:"required,min=1"`
}

// ApplyTo applies update DTO to a loaded document.
func (r *UpdateDocumentRequest) ApplyTo(doc *documents.Document) error {
	if r.DocumentDate != nil {
		doc.DocumentDate = *r.DocumentDate
	}
	if r.IssueDate != nil {
		doc.IssueDate = *r.IssueDate
	}

	if r.WarehouseID != nil {
		whID, err := parseID("warehouseId", *r.WarehouseID)
		if err != nil {
			return err
		}
		doc.SetWarehouse(whID)
	}
	var err error
	if doc.SourceWarehouseID, err = parseIDPtr("sourceWarehouseId", r.SourceWarehouseID, doc.SourceWarehouseID); err != nil {
		return err
	}
	if doc.TargetWarehouseID, err = parseIDPtr("targetWarehouseId", r.TargetWarehouseID, doc.TargetWarehouseID); err != nil {
		return err
	}
	if doc.SupplierID, err = parseIDPtr("supplierId", r.SupplierID, doc.SupplierID); err != nil {
		return err
	}
	if doc.CustomerID, err = parseIDPtr("customerId", r.CustomerID, doc.CustomerID); err != nil {
		return err
	}

	if r.RelatedOrderID != nil {
		doc.RelatedOrderID = r.RelatedOrderID
	}
	if r.DeliveryDate != nil {
		doc.DeliveryDate = r.DeliveryDate
	}
	if r.PaymentDate != nil {
		doc.PaymentDate = r.PaymentDate
	}
	if r.PaymentMethod != "" {
		doc.PaymentMethod = r.PaymentMethod
	}
	if r.Comment != "" {
		doc.Comment = r.Comment
	}

	doc.Items = nil
	for _, line := range r.Items {
		variantID, err := parseID("variantId", line.VariantID)
		if err != nil {
			return err
		}
		taxRateID, err := parseIDPtr("taxRateId", line.TaxRateID, nil)
		if err != nil {
			return err
		}
		doc.AddItem(variantID, line.Quantity, line.PriceNet, taxRateID)
	}

	for _, a := range r.Attachments {
		doc.AddAttachment(a.FileName, a.MediaID)
	}

	doc.Version = r.Version
	return nil
}

// LinkDocumentRequest is the request body for deriving a financial document
// (FVZ from PZ, FS from WZ) from a closed goods document.
type LinkDocumentRequest struct {
	DocumentDate  *time.Time `json:"documentDate"`
	PaymentDate   *time.Time `json:"paymentDate"`
	DeliveryDate  *time.Time `json:"deliveryDate"`
	PaymentMethod string     `json:"paymentMethod"`
	Comment       string     `json:"comment"`
}

// ToOptions converts DTO to link options.
func (r *LinkDocumentRequest) ToOptions() documents.LinkOptions {
	return documents.LinkOptions{
		DocumentDate:  r.DocumentDate,
		PaymentDate:   r.PaymentDate,
		DeliveryDate:  r.DeliveryDate,
		PaymentMethod: r.PaymentMethod,
		Comment:       r.Comment,
	}
}

// ListDocumentsQuery contains document list parameters.
type ListDocumentsQuery struct {
	ListQuery

	Type        string     `form:"type"`
	WarehouseID string     `form:"warehouseId"`
	SupplierID  string     `form:"supplierId"`
	CustomerID  string     `form:"customerId"`
	Status      string     `form:"status" binding:"omitempty,oneof=open closed"`
	DateFrom    *time.Time `form:"dateFrom" time_format:"2006-01-02"`
	DateTo      *time.Time `form:"dateTo" time_format:"2006-01-02"`
}

// ToFilter converts query parameters to a document list filter.
func (q *ListDocumentsQuery) ToFilter() (documents.ListFilter, error) {
	f := documents.DefaultListFilter()
	f.Search = q.Search
	for _, raw := range q.IDs {
		parsed, err := parseID("ids", raw)
		if err != nil {
			return f, err
		}
		f.IDs = append(f.IDs, parsed)
	}
	if q.OrderBy != "" {
		f.OrderBy = q.OrderBy
	}
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	f.Offset = q.Offset

	if q.Type != "" {
		t := documents.Type(q.Type)
		f.Type = &t
	}
	var err error
	if f.WarehouseID, err = parseIDQuery("warehouseId", q.WarehouseID); err != nil {
		return f, err
	}
	if f.SupplierID, err = parseIDQuery("supplierId", q.SupplierID); err != nil {
		return f, err
	}
	if f.CustomerID, err = parseIDQuery("customerId", q.CustomerID); err != nil {
		return f, err
	}
	f.OnlyOpen = q.Status == "open"
	f.OnlyClosed = q.Status == "closed"
	f.DateFrom = q.DateFrom
	f.DateTo = q.DateTo
	return f, nil
}

// --- Response DTOs ---

// DocumentItemResponse is one goods line in a document response.
type DocumentItemResponse struct {
	ID         string         `json:"id"`
	VariantID  string         `json:"variantId"`
	Quantity   types.Quantity `json:"quantity"`
	PriceNet   types.Money    `json:"priceNet"`
	PriceGross types.Money    `json:"priceGross"`
	TaxRateID  *string        `json:"taxRateId,omitempty"`
}

// InventoryItemResponse is one count line in an inventory document response.
type InventoryItemResponse struct {
	ID         string         `json:"id"`
	VariantID  string         `json:"variantId"`
	Expected   types.Quantity `json:"expectedQuantity"`
	Counted    types.Quantity `json:"countedQuantity"`
	Difference types.Quantity `json:"difference"`
	UnitCost   types.Money    `json:"unitCost"`
}

// DocumentResponse is the response body for a document.
type DocumentResponse struct {
	ID           string         `json:"id"`
	Type         documents.Type `json:"type"`
	Number       string         `json:"number"`
	DocumentDate time.Time      `json:"documentDate"`
	IssueDate    time.Time      `json:"issueDate"`
	ClosedAt     *time.Time     `json:"closedAt,omitempty"`

	SourceWarehouseID *string `json:"sourceWarehouseId,omitempty"`
	TargetWarehouseID *string `json:"targetWarehouseId,omitempty"`
	SupplierID        *string `json:"supplierId,omitempty"`
	CustomerID        *string `json:"customerId,omitempty"`
	RelatedDocumentID *string `json:"relatedDocumentId,omitempty"`
	RelatedOrderID    *string `json:"relatedOrderId,omitempty"`

	DeliveryDate *time.Time `json:"deliveryDate,omitempty"`
	PaymentDate  *time.Time `json:"paymentDate,omitempty"`

	TotalNet   types.Money `json:"totalNet"`
	TotalGross types.Money `json:"totalGross"`

	Paid          bool        `json:"paid"`
	PaidAmount    types.Money `json:"paidAmount"`
	PaymentMethod string      `json:"paymentMethod,omitempty"`

	Comment string `json:"comment,omitempty"`
	Version int    `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
	UpdatedBy string    `json:"updatedBy,omitempty"`

	Items          []DocumentItemResponse  `json:"items,omitempty"`
	InventoryItems []InventoryItemResponse `json:"inventoryItems,omitempty"`
	Attachments    []AttachmentResponse    `json:"attachments,omitempty"`
}

// AttachmentResponse is one file reference in a document response.
type AttachmentResponse struct {
	ID        string    `json:"id"`
	FileName  string    `json:"fileName"`
	MediaID   string    `json:"mediaId"`
	CreatedAt time.Time `json:"createdAt"`
}

// FromDocument creates response DTO from domain entity.
func FromDocument(doc *documents.Document) *DocumentResponse {
	resp := &DocumentResponse{
		ID:                doc.ID.String(),
		Type:              doc.Type,
		Number:            doc.Number,
		DocumentDate:      doc.DocumentDate,
		IssueDate:         doc.IssueDate,
		ClosedAt:          doc.ClosedAt,
		SourceWarehouseID: idString(doc.SourceWarehouseID),
		TargetWarehouseID: idString(doc.TargetWarehouseID),
		SupplierID:        idString(doc.SupplierID),
		CustomerID:        idString(doc.CustomerID),
		RelatedDocumentID: idString(doc.RelatedDocumentID),
		RelatedOrderID:    doc.RelatedOrderID,
		DeliveryDate:      doc.DeliveryDate,
		PaymentDate:       doc.PaymentDate,
		TotalNet:          doc.TotalNet,
		TotalGross:        doc.TotalGross,
		Paid:              doc.Paid,
		PaidAmount:        doc.PaidAmount,
		PaymentMethod:     doc.PaymentMethod,
		Comment:           doc.Comment,
		Version:           doc.Version,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
		CreatedBy:         doc.CreatedBy,
		UpdatedBy:         doc.UpdatedBy,
	}

	for _, item := range doc.Items {
		resp.Items = append(resp.Items, DocumentItemResponse{
			ID:         item.ID.String(),
			VariantID:  item.VariantID.String(),
			Quantity:   item.Quantity,
			PriceNet:   item.PriceNet,
			PriceGross: item.PriceGross,
			TaxRateID:  idString(item.TaxRateID),
		})
	}
	for _, line := range doc.InventoryItems {
		resp.InventoryItems = append(resp.InventoryItems, InventoryItemResponse{
			ID:         line.ID.String(),
			VariantID:  line.VariantID.String(),
			Expected:   line.Expected,
			Counted:    line.Counted,
			Difference: line.Difference,
			UnitCost:   line.UnitCost,
		})
	}
	for _, a := range doc.Attachments {
		resp.Attachments = append(resp.Attachments, AttachmentResponse{
			ID:        a.ID.String(),
			FileName:  a.FileName,
			MediaID:   a.MediaID,
			CreatedAt: a.CreatedAt,
		})
	}
	return resp
}

// --- helpers ---

func parseID(field, value string) (id.ID, error) {
	parsed, err := id.Parse(value)
	if err != nil {
		return id.Nil(), apperror.NewValidation("invalid identifier").
			WithDetail("field", field).
			WithDetail("value", value)
	}
	return parsed, nil
}

func parseIDPtr(field string, value *string, fallback *id.ID) (*id.ID, error) {
	if value == nil {
		return fallback, nil
	}
	parsed, err := parseID(field, *value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseIDQuery(field, value string) (*id.ID, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := parseID(field, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func idString(v *id.ID) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}
