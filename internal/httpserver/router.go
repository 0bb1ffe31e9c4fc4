package httpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"serenity-booking/internal/config"
	"serenity-booking/internal/domain"
	"serenity-booking/internal/payment"
	orderrepo "serenity-booking/internal/repository/order"
	visitorrepo "serenity-booking/internal/repository/visitor"
	"serenity-booking/internal/service/admin"
	"serenity-booking/internal/service/cart"
	"serenity-booking/internal/service/checkout"
	ordersvc "serenity-booking/internal/service/order"
	"serenity-booking/internal/service/reconcile"
	"serenity-booking/internal/service/visitor"
	"serenity-booking/internal/session"
)

var (
	errAdminNotConfigured = domain.NewError(domain.KindNotConfigured, "admin access not configured", nil)
	errMissingBearer      = fmt.Errorf("%w: missing bearer token", admin.ErrInvalidToken)
)

type catalogService interface {
	List() []domain.Service
	Currency() string
}

type visitorService interface {
	Open(ctx context.Context, sess visitor.Session) (*domain.VisitorProfile, error)
	UpdateProfile(ctx context.Context, sess visitor.Session, in visitor.ProfileInput) (*domain.VisitorProfile, error)
	SetPreferences(ctx context.Context, sess visitor.Session, prefs domain.Preferences) (*domain.VisitorProfile, error)
	Clear(ctx context.Context, sess visitor.Session) error
}

type cartService interface {
	Get(ctx context.Context, sess visitor.Session) (cart.View, error)
	AddItem(ctx context.Context, sess visitor.Session, serviceID string, quantity int) (cart.View, error)
	UpdateQuantity(ctx context.Context, sess visitor.Session, serviceID string, quantity int) (cart.View, error)
	RemoveItem(ctx context.Context, sess visitor.Session, serviceID string) (cart.View, error)
	Clear(ctx context.Context, sess visitor.Session) (cart.View, error)
}

type checkoutService interface {
	Submit(ctx context.Context, sess visitor.Session, in checkout.SubmitInput) (checkout.State, error)
	Confirm(ctx context.Context, sess visitor.Session, in checkout.ConfirmInput) (checkout.State, error)
	Resume(ctx context.Context, sess visitor.Session, rp checkout.ReturnParams) (checkout.State, error)
	Lookup(ctx context.Context, intentID string) (checkout.State, error)
	Schedule(ctx context.Context, orderID string, in checkout.ScheduleInput) (checkout.State, error)
}

type webhookParser interface {
	Configured() bool
	Parse(payload []byte, header string) (*payment.WebhookEvent, error)
}

type webhookHandler interface {
	Handle(ctx context.Context, ev *payment.WebhookEvent) (reconcile.Outcome, error)
}

type orderService interface {
	Create(ctx context.Context, in ordersvc.CreateInput) (*domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	ForCustomer(ctx context.Context, email string) (*ordersvc.Dashboard, error)
	AdminList(ctx context.Context, f orderrepo.Filter) (*ordersvc.Dashboard, error)
	Patch(ctx context.Context, id string, p domain.OrderPatch) (*domain.Order, error)
}

type customerService interface {
	Upsert(ctx context.Context, in domain.CustomerDetails) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
}

type adminAuth interface {
	Login(username, password string) (string, time.Time, error)
	Verify(token string) (*jwt.RegisteredClaims, error)
}

// Deps groups the services the API serves. Admin may be nil.
type Deps struct {
	Catalog   catalogService
	Visitors  visitorService
	Carts     cartService
	Checkout  checkoutService
	Webhooks  webhookParser
	Reconcile webhookHandler
	Orders    orderService
	Customers customerService
	Admin     adminAuth

	// VisitorStore is the durable half of the visitor session; nil keeps
	// profiles in cookies only.
	VisitorStore  visitorrepo.Repository
	SecureCookies bool
	// CookieSigner signs the visitor data cookie; nil uses a per-process key.
	CookieSigner *session.Signer
	StoreTimeout time.Duration

	Flags          config.Flags
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

type handlers struct {
	deps   Deps
	logger *zap.Logger
}

// session builds the visitor session for one request.
func (h *handlers) session(c *gin.Context) visitor.Session {
	return session.NewDual(h.deps.VisitorStore, newGinJar(c, h.deps.SecureCookies), h.deps.CookieSigner, h.logger.Named("session"), h.deps.StoreTimeout)
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if deps.Catalog == nil || deps.Visitors == nil || deps.Carts == nil || deps.Checkout == nil ||
		deps.Orders == nil || deps.Customers == nil {
		return nil, fmt.Errorf("httpserver: missing service dependency")
	}
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	h := &handlers{deps: deps, logger: logger.Named("http")}
	if h.deps.CookieSigner == nil {
		h.logger.Warn("SESSION_SECRET not set, visitor cookies are signed with a per-process key")
		h.deps.CookieSigner = session.RandomSigner()
	}

	router := gin.New()
	router.Use(requestLogger(h.logger), recovery(h.logger))
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	limited := rateLimit(newIPLimiters(deps.RateLimitRPS, deps.RateLimitBurst))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	api := router.Group("/api")
	api.GET("/services", h.listServices)
	api.GET("/env-check", h.envCheck)

	api.GET("/visitor", h.getVisitor)
	api.PUT("/visitor", h.updateVisitor)
	api.DELETE("/visitor", h.clearVisitor)

	api.GET("/cart", h.getCart)
	api.POST("/cart/items", h.addCartItem)
	api.PATCH("/cart/items/:serviceId", h.updateCartItem)
	api.DELETE("/cart/items/:serviceId", h.removeCartItem)
	api.DELETE("/cart", h.clearCart)

	co := api.Group("/checkout")
	co.POST("", limited, h.submitCheckout)
	co.POST("/confirm", limited, h.confirmCheckout)
	co.GET("/return", h.resumeCheckout)
	co.GET("/intents/:intentId", h.lookupCheckout)
	co.PATCH("/orders/:id/schedule", h.scheduleOrder)
	api.GET("/verify-payment", h.verifyPayment)

	api.POST("/webhooks/stripe", limited, h.stripeWebhook)

	api.POST("/orders", limited, h.createOrder)
	api.GET("/orders", h.customerOrders)
	api.GET("/orders/:id", h.getOrder)
	api.PATCH("/orders/:id", h.patchOrder)

	api.POST("/users", h.upsertUser)
	api.GET("/users", h.getUser)

	api.POST("/admin/token", limited, h.adminToken)
	adm := api.Group("/admin", h.adminOnly)
	adm.GET("/orders", h.adminOrders)

	return router, nil
}
