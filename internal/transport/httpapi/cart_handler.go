package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/storefront/internal/combo"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

// CartResponse — корзина вместе с производными суммами.
type CartResponse struct {
	Cart   domain.CartState `json:"cart"`
	Totals domain.Totals    `json:"totals"`
}

// LineResponse — изменённая строка и корзина после мутации.
type LineResponse struct {
	Line domain.LineItem `json:"line"`
	CartResponse
}

type addItemRequest struct {
	ProductID      string                `json:"productId"`
	Quantity       int                   `json:"quantity"`
	Customizations domain.Customizations `json:"customizations"`
}

type addComboRequest struct {
	ComboID string       `json:"comboId"`
	Picks   []combo.Pick `json:"picks"`
}

type updateQuantityRequest struct {
	Quantity       int                   `json:"quantity"`
	Customizations domain.Customizations `json:"customizations"`
}

type removeItemRequest struct {
	Customizations domain.Customizations `json:"customizations"`
}

type promoRequest struct {
	Code string `json:"code"`
}

type storeRequest struct {
	StoreID string `json:"storeId"`
}

type deliveryRequest struct {
	Zone          string `json:"zone"`
	EstimatedTime string `json:"estimatedTime"`
}

func cartView(sess *session.Session) CartResponse {
	return CartResponse{Cart: sess.Cart.State(), Totals: sess.Cart.Totals()}
}

// GetCart отдаёт корзину сессии.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, cartView(sessionFrom(r.Context())))
}

// AddItem добавляет товар каталога. Цена берётся из каталога, не из запроса.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		handleError(w, h.requestLogger(r), domain.ErrProductRequired)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	product, err := h.catalog.Product(r.Context(), req.ProductID)
	if err != nil {
		handleError(w, h.requestLogger(r), err)
		return
	}
	line, err := sess.Cart.AddItem(r.Context(), domain.ProductFromCatalog(product), req.Quantity, req.Customizations, false)
	if err != nil {
		handleError(w, h.requestLogger(r), err)
		return
	}
	respondJSON(w, http.StatusCreated, LineResponse{Line: line, CartResponse: cartView(sess)})
}

// AddCombo собирает комбо из выбора покупателя и добавляет его отдельной строкой.
func (h *Handler) AddCombo(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req addComboRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	catalog, err := h.catalog.LoadCatalog(r.Context())
	if err != nil {
		handleError(w, h.requestLogger(r), err)
		return
	}
	def, err := h.catalog.Combo(r.Context(), req.ComboID)
	if err != nil {
		handleError(w, h.requestLogger(r), err)
		return
	}
	product, err := combo.NewBuilder(catalog.Products).Build(def, req.Picks)
	if err != nil {
		handleError(w, h.requestLogger(r), err)
		return
	}
	line, err := sess.Cart.AddItem(r.Context(), product, 1, nil, true)
	if err != nil {
		handleError(w, h.requestLogger(r), err)
		return
	}
	respondJSON(w, http.StatusCreated, LineResponse{Line: line, CartResponse: cartView(sess)})
}

// UpdateQuantity меняет количество строки; 0 удаляет её.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req updateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := sess.Cart.UpdateQuantity(r.Context(), chi.URLParam(r, "itemID"), req.Customizations, req.Quantity); err != nil {
		handleError(w, h.requestLogger(r), err)
		return
	}
	respondJSON(w, http.StatusOK, cartView(sess))
}

// RemoveItem удаляет строку. Опции обычного товара передаются в теле.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req removeItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := sess.Cart.RemoveItem(r.Context(), chi.URLParam(r, "itemID"), req.Customizations); err != nil {
		handleError(w, h.requestLogger(r), err)
		return
	}
	respondJSON(w, http.StatusOK, cartView(sess))
}

// ClearCart очищает корзину.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := sess.Cart.ClearCart(r.Context()); err != nil {
		handleError(w, h.requestLogger(r), err)
		return
	}
	respondJSON(w, http.StatusOK, cartView(sess))
}

// ApplyPromo сохраняет промокод.
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req promoRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if _, err := sess.Cart.ApplyPromoCode(r.Context(), req.Code); err != nil {
		handleError(w, h.requestLogger(r), err)
		return
	}
	respondJSON(w, http.StatusOK, cartView(sess))
}

// RemovePromo снимает промокод.
func (h *Handler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := sess.Cart.RemovePromoCode(r.Context()); err != nil {
		handleError(w, h.requestLogger(r), err)
		return
	}
	respondJSON(w, http.StatusOK, cartView(sess))
}

// SelectStore выбирает точку продаж из каталога; пустой storeId снимает выбор.
func (h *Handler) SelectStore(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req storeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	var selected *domain.Store
	if strings.TrimSpace(req.StoreID) != "" {
		store, err := h.catalog.Store(r.Context(), req.StoreID)
		if err != nil {
			handleError(w, h.requestLogger(r), err)
			return
		}
		selected = &store
	}
	if err := sess.Cart.UpdateStore(r.Context(), selected); err != nil {
		handleError(w, h.requestLogger(r), err)
		return
	}
	respondJSON(w, http.StatusOK, cartView(sess))
}

// UpdateDelivery задаёт зону доставки; пустая зона сбрасывает её.
func (h *Handler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req deliveryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	var info *domain.DeliveryInfo
	if strings.TrimSpace(req.Zone) != "" {
		info = &domain.DeliveryInfo{Zone: req.Zone, EstimatedTime: req.EstimatedTime}
	}
	if err := sess.Cart.UpdateDeliveryInfo(r.Context(), info); err != nil {
		handleError(w, h.requestLogger(r), err)
		return
	}
	respondJSON(w, http.StatusOK, cartView(sess))
}
