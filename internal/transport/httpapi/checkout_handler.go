package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/reconcile"
	"github.com/vladislavdragonenkov/storefront/internal/session"
	"github.com/vladislavdragonenkov/storefront/internal/submission"
)

// CheckoutResponse — экран оформления: шаги, суммы и состояние отправки.
type CheckoutResponse struct {
	checkout.View
	Totals       domain.Totals     `json:"totals"`
	TotalsSource reconcile.Source  `json:"totalsSource"`
	PendingOrder string            `json:"pendingOrderId,omitempty"`
	Submission   submission.Status `json:"submission"`
}

// StepResponse — результат попытки перехода.
type StepResponse struct {
	Accepted bool `json:"accepted"`
	checkout.View
}

// SubmitResponse — результат отправки заказа.
type SubmitResponse struct {
	submission.Outcome
	PrintError string `json:"printError,omitempty"`
}

type formRequest struct {
	Form    json.RawMessage `json:"form"`
	Touched []string        `json:"touched"`
}

func checkoutView(sess *session.Session, result reconcile.Result) CheckoutResponse {
	resp := CheckoutResponse{
		View:         sess.Checkout.View(),
		Totals:       result.DisplayTotals(sess.Cart.Totals()),
		TotalsSource: result.Source,
		Submission:   sess.Submission.Status(),
	}
	if result.Snapshot != nil {
		resp.PendingOrder = result.Snapshot.OrderID
	}
	return resp
}

// GetCheckout отдаёт экран оформления. Каждый вызов сверяет снимок отложенной оплаты.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	result := sess.Reconcile(r.Context())
	respondJSON(w, http.StatusOK, checkoutView(sess, result))
}

// UpdateForm накладывает присланные поля на форму. Поля из touched теряют ошибки проверки.
func (h *Handler) UpdateForm(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req formRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	form := sess.Checkout.Form()
	if len(req.Form) > 0 {
		if err := json.Unmarshal(req.Form, &form); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid form")
			return
		}
	}
	sess.Checkout.UpdateForm(func(f *checkout.FormState) { *f = form }, req.Touched...)
	respondJSON(w, http.StatusOK, sess.Checkout.View())
}

// GoToStep переходит на шаг по номеру или имени.
func (h *Handler) GoToStep(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	step, err := parseStep(chi.URLParam(r, "step"))
	if err != nil {
		handleError(w, h.requestLogger(r), err)
		return
	}
	respondStep(w, sess.Checkout.GoToStep(step), sess.Checkout.View())
}

// NextStep переходит на следующий шаг.
func (h *Handler) NextStep(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	respondStep(w, sess.Checkout.NextStep(), sess.Checkout.View())
}

// PrevStep возвращается на шаг назад без проверок.
func (h *Handler) PrevStep(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.Checkout.PrevStep()
	respondStep(w, true, sess.Checkout.View())
}

func respondStep(w http.ResponseWriter, accepted bool, view checkout.View) {
	status := http.StatusOK
	if !accepted {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, StepResponse{Accepted: accepted, View: view})
}

func parseStep(raw string) (checkout.Step, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		step := checkout.Step(n)
		if !step.Valid() {
			return 0, domain.ErrStepOutOfRange
		}
		return step, nil
	}
	for step := checkout.StepDelivery; step.Valid(); step++ {
		if step.String() == raw {
			return step, nil
		}
	}
	return 0, domain.ErrStepOutOfRange
}

// Submit отправляет заказ по текущей форме. Отключение клиента отправку не прерывает:
// созданный на бэкенде заказ иначе остался бы незамеченным.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	outcome, err := sess.Submission.Submit(context.WithoutCancel(r.Context()), sess.Checkout.Form())
	if err != nil {
		var validation *submission.ValidationError
		if errors.As(err, &validation) && !validation.Fields.Empty() {
			sess.Checkout.SetErrors(validation.Fields)
		}
		handleError(w, h.requestLogger(r), err)
		return
	}
	h.respondOutcome(w, r, sess, outcome)
}

// Resume продолжает отправку после частичного сбоя.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	outcome, err := sess.Submission.Resume(context.WithoutCancel(r.Context()))
	if err != nil {
		handleError(w, h.requestLogger(r), err)
		return
	}
	h.respondOutcome(w, r, sess, outcome)
}

func (h *Handler) respondOutcome(w http.ResponseWriter, r *http.Request, sess *session.Session, outcome submission.Outcome) {
	resp := SubmitResponse{Outcome: outcome}
	if outcome.PrintErr != nil {
		h.requestLogger(r).WithError(outcome.PrintErr).WithField("order_id", outcome.OrderID).Warn("order completed without print job")
		resp.PrintError = "the kitchen ticket could not be printed"
	}
	if outcome.TrackingOrderID != "" {
		sess.Checkout.Reset()
	}
	respondJSON(w, http.StatusCreated, resp)
}

// SubmissionStatus отдаёт состояние отправки.
func (h *Handler) SubmissionStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, sessionFrom(r.Context()).Submission.Status())
}
