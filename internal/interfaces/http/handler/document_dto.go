package handler

import (
	"time"

	appeinvoice "github.com/einvoice/backend/internal/application/einvoice"
	"github.com/einvoice/backend/internal/domain/einvoice"
)

// CreateDocumentRequest represents a request to register a draft document
// @Description Request body for registering a new document
type CreateDocumentRequest struct {
	InvoiceNumber    string   `json:"invoice_number" binding:"required,min=1,max=50" example:"INV-2026-0042"`
	CounterpartName  string   `json:"counterpart_name" binding:"max=200" example:"Acme Wholesale Ltd"`
	CounterpartTaxID string   `json:"counterpart_tax_id" binding:"max=20" example:"1234567890"`
	TotalAmount      float64  `json:"total_amount" binding:"gte=0" example:"1250.75"`
	Currency         string   `json:"currency" binding:"omitempty,len=3" example:"TRY"`
	Profile          *string  `json:"profile" binding:"omitempty,oneof=E_INVOICE E_ARCHIVE" example:"E_INVOICE"`
}

// SubmitDocumentRequest represents a request to submit a document to the
// exchange provider
// @Description Request body for submitting a document
type SubmitDocumentRequest struct {
	Profile         *string  `json:"profile" binding:"omitempty,oneof=E_INVOICE E_ARCHIVE" example:"E_INVOICE"`
	ForceResend     bool     `json:"force_resend" example:"false"`
	DeliveryChannel string   `json:"delivery_channel" binding:"max=50" example:"portal"`
	NotifyAddresses []string `json:"notify_addresses" binding:"omitempty,dive,email"`
}

// AttachPayloadRequest represents a request to attach the prepared transfer
// file to a document
// @Description Request body for uploading a document payload
type AttachPayloadRequest struct {
	FileName string `json:"file_name" binding:"required,max=200" example:"INV-2026-0042.zip"`
	Content  []byte `json:"content" binding:"required" swaggertype:"string" format:"base64"`
}

// DocumentResponse represents a document in API responses
type DocumentResponse struct {
	ID                string     `json:"id"`
	InvoiceNumber     string     `json:"invoice_number"`
	CounterpartName   string     `json:"counterpart_name"`
	CounterpartTaxID  string     `json:"counterpart_tax_id"`
	TotalAmount       string     `json:"total_amount"`
	Currency          string     `json:"currency"`
	Profile           string     `json:"profile,omitempty"`
	Status            string     `json:"status"`
	ExternalRefID     string     `json:"external_ref_id,omitempty"`
	ProviderStateCode *int       `json:"provider_state_code,omitempty"`
	ProviderStateName string     `json:"provider_state_name,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	LastStatusCheckAt *time.Time `json:"last_status_check_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// toDocumentResponse converts a domain document to its API representation
func toDocumentResponse(doc *einvoice.Document) DocumentResponse {
	resp := DocumentResponse{
		ID:                doc.ID.String(),
		InvoiceNumber:     doc.InvoiceNumber,
		CounterpartName:   doc.CounterpartName,
		CounterpartTaxID:  doc.CounterpartTaxID,
		TotalAmount:       doc.TotalAmount.String(),
		Currency:          doc.Currency,
		Profile:           doc.Profile.String(),
		Status:            doc.Status.String(),
		ExternalRefID:     doc.ExternalRefID,
		ProviderStateCode: doc.ProviderStateCode,
		ErrorMessage:      doc.ErrorMessage,
		LastStatusCheckAt: doc.LastStatusCheckAt,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
	if doc.ProviderStateCode != nil {
		resp.ProviderStateName = einvoice.StateName(*doc.ProviderStateCode)
	}
	return resp
}

// StatusSnapshotResponse represents the provider-reported state of a document
type StatusSnapshotResponse struct {
	StateCode          int    `json:"state_code"`
	StateName          string `json:"state_name"`
	UserFriendlyStatus string `json:"user_friendly_status"`
}

// SubmitOutcomeResponse represents the result of a submission attempt
type SubmitOutcomeResponse struct {
	DocumentID        string                  `json:"document_id"`
	Status            string                  `json:"status"`
	Kind              string                  `json:"kind"`
	ExternalRefID     string                  `json:"external_ref_id,omitempty"`
	NeedsConfirmation bool                    `json:"needs_confirmation"`
	Snapshot          *StatusSnapshotResponse `json:"snapshot,omitempty"`
	Message           string                  `json:"message,omitempty"`
}

// toSubmitOutcomeResponse converts a submission outcome to its API representation
func toSubmitOutcomeResponse(out *appeinvoice.SubmitOutcome) SubmitOutcomeResponse {
	resp := SubmitOutcomeResponse{
		DocumentID:        out.DocumentID.String(),
		Status:            out.Status.String(),
		Kind:              string(out.Kind),
		ExternalRefID:     out.ExternalRefID,
		NeedsConfirmation: out.NeedsConfirmation,
		Message:           out.Message,
	}
	if out.Snapshot != nil {
		resp.Snapshot = &StatusSnapshotResponse{
			StateCode:          out.Snapshot.StateCode,
			StateName:          out.Snapshot.StateName,
			UserFriendlyStatus: out.Snapshot.UserFriendlyStatus,
		}
	}
	return resp
}

// CheckOutcomeResponse represents the result of an on-demand status check
type CheckOutcomeResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Kind       string `json:"kind"`
	StateCode  *int   `json:"state_code,omitempty"`
	StateName  string `json:"state_name,omitempty"`
	Message    string `json:"message,omitempty"`
}

// toCheckOutcomeResponse converts a check outcome to its API representation
func toCheckOutcomeResponse(out *appeinvoice.CheckOutcome) CheckOutcomeResponse {
	resp := CheckOutcomeResponse{
		DocumentID: out.DocumentID.String(),
		Status:     out.Status.String(),
		Kind:       string(out.Kind),
		StateCode:  out.StateCode,
		Message:    out.Message,
	}
	if out.StateCode != nil {
		resp.StateName = einvoice.StateName(*out.StateCode)
	}
	return resp
}

// ListDocumentsRequest represents document list query parameters
type ListDocumentsRequest struct {
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PageSize      int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy       string `form:"order_by" binding:"omitempty,oneof=created_at updated_at invoice_number status last_status_check_at"`
	OrderDir      string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search        string `form:"search"`
	Status        string `form:"status" binding:"omitempty,oneof=draft sending sent delivered error"`
	Profile       string `form:"profile" binding:"omitempty,oneof=E_INVOICE E_ARCHIVE"`
	ExternalRefID string `form:"external_ref_id"`
}
