package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/carepay/backend/internal/services"
	"github.com/go-chi/chi/v5"
)

type QRHandler struct {
	service   *services.QRService
	validator *services.ValidationHelper
}

func NewQRHandler(service *services.QRService) *QRHandler {
	return &QRHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GenerateQR renders a voucher code as a QR image
// @Summary Generate voucher QR code
// @Description Render an unclaimed voucher's code as a scannable QR image
// @Tags QR
// @Produce json
// @Security BearerAuth
// @Param shortenHash path string true "Voucher code"
// @Success 200 {object} object{qrCode=string,qrImage=string}
// @Failure 404 {object} services.ErrorResponse
// @Router /vouchers/{shortenHash}/qr [post]
func (h *QRHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	shortenHash := chi.URLParam(r, "shortenHash")
	if len(shortenHash) != 8 {
		services.SendErrorResponse(w, "Invalid voucher code", http.StatusBadRequest, nil)
		return
	}

	qrCode, qrImage, err := h.service.GenerateVoucherQR(r.Context(), shortenHash)
	if err != nil {
		services.RenderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"qrCode":  qrCode,
		"qrImage": qrImage,
	})
}

// ProcessQR processes a scanned voucher QR code
// @Summary Process voucher QR code
// @Description Resolve a scanned QR payload back to the voucher code
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{qrData=string} true "QR processing request"
// @Success 200 {object} object{data=object}
// @Failure 400 {object} services.ErrorResponse
// @Router /qr/process [post]
func (h *QRHandler) ProcessQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QRData string `json:"qrData" validate:"required"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.ProcessVoucherQR(r.Context(), req.QRData)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    result,
	})
}
