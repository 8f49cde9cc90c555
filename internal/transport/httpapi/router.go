// Package httpapi отдаёт корзину и оформление заказа витрине по HTTP.
// Сессия определяется заголовком X-Session-ID.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

// SessionHeader несёт идентификатор сессии.
const SessionHeader = "X-Session-ID"

// DefaultRequestTimeout ограничивает обработку запроса.
const DefaultRequestTimeout = 30 * time.Second

// Catalog ищет по каталогу для обработчиков.
type Catalog interface {
	LoadCatalog(ctx context.Context) (domain.Catalog, error)
	Product(ctx context.Context, id string) (domain.Product, error)
	Combo(ctx context.Context, id string) (domain.Combo, error)
	Store(ctx context.Context, id string) (domain.Store, error)
}

// Sessions выдаёт сессию по идентификатору.
type Sessions interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// Handler обслуживает API витрины.
type Handler struct {
	sessions Sessions
	catalog  Catalog
	logger   *log.Entry
	timeout  time.Duration
}

// NewHandler создаёт обработчики.
func NewHandler(sessions Sessions, catalog Catalog, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "httpapi")
	}
	return &Handler{
		sessions: sessions,
		catalog:  catalog,
		logger:   logger,
		timeout:  DefaultRequestTimeout,
	}
}

// Routes собирает роутер с трассировкой запросов.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.timeout))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/catalog", h.GetCatalog)

		r.Group(func(r chi.Router) {
			r.Use(h.withSession)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Delete("/", h.ClearCart)
				r.Post("/items", h.AddItem)
				r.Patch("/items/{itemID}", h.UpdateQuantity)
				r.Delete("/items/{itemID}", h.RemoveItem)
				r.Post("/combos", h.AddCombo)
				r.Put("/promo", h.ApplyPromo)
				r.Delete("/promo", h.RemovePromo)
				r.Put("/store", h.SelectStore)
				r.Put("/delivery", h.UpdateDelivery)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", h.GetCheckout)
				r.Patch("/form", h.UpdateForm)
				r.Post("/steps/{step}", h.GoToStep)
				r.Post("/next", h.NextStep)
				r.Post("/prev", h.PrevStep)
				r.Post("/submit", h.Submit)
				r.Post("/resume", h.Resume)
				r.Get("/status", h.SubmissionStatus)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront-http")
}

type sessionKey struct{}

// withSession находит или создаёт сессию по заголовку и кладёт её в контекст.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.sessions.Get(r.Context(), r.Header.Get(SessionHeader))
		if err != nil {
			handleError(w, h.logger, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey{}).(*session.Session)
	return sess
}

func (h *Handler) requestLogger(r *http.Request) *log.Entry {
	entry := h.logger.WithField("request_id", middleware.GetReqID(r.Context()))
	if sess := sessionFrom(r.Context()); sess != nil {
		entry = entry.WithField("session_id", sess.ID)
	}
	return entry
}

// GetCatalog отдаёт каталог.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.catalog.LoadCatalog(r.Context())
	if err != nil {
		handleError(w, h.requestLogger(r), err)
		return
	}
	respondJSON(w, http.StatusOK, catalog)
}
