package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/submission"
)

// ErrorResponse описывает тело ответа с ошибкой.
type ErrorResponse struct {
	Error   string               `json:"error"`
	Code    string               `json:"code,omitempty"`
	Fields  checkout.FieldErrors `json:"fields,omitempty"`
	OrderID string               `json:"orderId,omitempty"`
	Stage   submission.Stage     `json:"stage,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// decodeJSON читает тело запроса; пустое тело не ошибка.
func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// handleError переводит ошибку домена в HTTP-ответ с коротким сообщением для покупателя.
func handleError(w http.ResponseWriter, logger *log.Entry, err error) {
	var (
		validation *submission.ValidationError
		partial    *submission.PartialFailureError
		stage      *submission.StageError
	)

	switch {
	case errors.As(err, &validation):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  validation.Error(),
			Code:   "validation_failed",
			Fields: validation.Fields,
			Stage:  submission.StageValidation,
		})
	case errors.As(err, &partial):
		logger.WithError(err).WithFields(log.Fields{
			"order_id": partial.OrderID,
			"stage":    partial.Stage,
		}).Warn("order created with unfinished follow-up")
		respondJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "your order was created but could not be finished, please retry",
			Code:    "partial_failure",
			OrderID: partial.OrderID,
			Stage:   partial.Stage,
		})
	case errors.As(err, &stage):
		respondJSON(w, http.StatusBadGateway, ErrorResponse{
			Error: "we could not create your order, please try again",
			Code:  "order_create_failed",
			Stage: stage.Stage,
		})
	case errors.Is(err, domain.ErrSubmissionInProgress):
		respondError(w, http.StatusConflict, "submission_in_progress", "your order is already being submitted")
	case errors.Is(err, domain.ErrNothingToResume):
		respondError(w, http.StatusConflict, "nothing_to_resume", err.Error())
	case errors.Is(err, domain.ErrSessionRequired):
		respondError(w, http.StatusBadRequest, "session_required", "missing X-Session-ID header")
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrProductRequired),
		errors.Is(err, domain.ErrItemPriceInvalid),
		errors.Is(err, domain.ErrPromoCodeRequired),
		errors.Is(err, domain.ErrStepOutOfRange),
		errors.Is(err, domain.ErrOrderIDRequired):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, domain.ErrComboSelectionInvalid):
		respondError(w, http.StatusUnprocessableEntity, "combo_selection_invalid", err.Error())
	case domain.IsNotFound(err):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrPersistFailed):
		logger.WithError(err).Warn("cart storage unavailable")
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "your cart could not be saved, please try again")
	case domain.IsTemporary(err):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "service temporarily unavailable")
	case errors.Is(err, domain.ErrBackendRejected):
		respondError(w, http.StatusUnprocessableEntity, "rejected", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.WithError(err).Error("unhandled error")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
