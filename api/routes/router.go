package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CarlusInnocent/HotPOS/api/controllers"
	"github.com/CarlusInnocent/HotPOS/api/middleware"
	"github.com/CarlusInnocent/HotPOS/internal/auth"
	"github.com/CarlusInnocent/HotPOS/internal/branches"
	"github.com/CarlusInnocent/HotPOS/internal/catalog"
	"github.com/CarlusInnocent/HotPOS/internal/partners"
	"github.com/CarlusInnocent/HotPOS/internal/purchases"
	"github.com/CarlusInnocent/HotPOS/internal/refunds"
	"github.com/CarlusInnocent/HotPOS/internal/reports"
	"github.com/CarlusInnocent/HotPOS/internal/returns"
	"github.com/CarlusInnocent/HotPOS/internal/sales"
	"github.com/CarlusInnocent/HotPOS/internal/serials"
	"github.com/CarlusInnocent/HotPOS/internal/stock"
	"github.com/CarlusInnocent/HotPOS/internal/transfers"
	"github.com/CarlusInnocent/HotPOS/internal/users"
	"github.com/CarlusInnocent/HotPOS/pkg/auth/session"
	"github.com/CarlusInnocent/HotPOS/pkg/config"
	"github.com/CarlusInnocent/HotPOS/pkg/db"
	"github.com/CarlusInnocent/HotPOS/pkg/enums"
	"github.com/CarlusInnocent/HotPOS/pkg/logger"
	"github.com/CarlusInnocent/HotPOS/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// Deps bundles everything the router needs. Optional entries (redis,
// metrics) may be nil, the dependent surfaces degrade gracefully.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DBPinger db.Pinger
	Redis    *redis.Client
	Sessions sessionManager
	Metrics  *prometheus.Registry

	Auth      auth.Service
	Users     users.Service
	Branches  branches.Service
	Catalog   catalog.Service
	Partners  partners.Service
	Stock     stock.Ledger
	Serials   serials.Service
	Purchases purchases.Service
	Sales     sales.Service
	Transfers transfers.Service
	Returns   returns.Service
	Refunds   refunds.Service
	Reports   reports.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy("login", time.Minute, 20, 5)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, deps.Redis))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, deps.Sessions, logg)).Post("/logout", controllers.AuthLogout(deps.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		// Self-service endpoints, open to every authenticated role.
		r.Get("/me", controllers.GetCurrentUser(deps.Users, logg))
		r.Post("/me/password", controllers.ChangePassword(deps.Users, logg))

		r.Route("/branches", func(r chi.Router) {
			r.Get("/", controllers.ListBranches(deps.Branches, logg))
			r.Get("/{id}", controllers.GetBranch(deps.Branches, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
				r.Post("/", controllers.CreateBranch(deps.Branches, logg))
				r.Put("/{id}", controllers.UpdateBranch(deps.Branches, logg))
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Post("/", controllers.CreateUser(deps.Users, logg))
			r.Get("/", controllers.ListUsers(deps.Users, logg))
			r.Get("/{id}", controllers.GetUser(deps.Users, logg))
			r.Put("/{id}", controllers.UpdateUser(deps.Users, logg))
			r.Post("/{id}/reset-password", controllers.ResetUserPassword(deps.Users, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.ListCategories(deps.Catalog, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleManager))
				r.Post("/", controllers.CreateCategory(deps.Catalog, logg))
				r.Put("/{id}", controllers.UpdateCategory(deps.Catalog, logg))
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.Catalog, logg))
			r.Get("/lookup", controllers.FindProduct(deps.Catalog, logg))
			r.Get("/{id}", controllers.GetProduct(deps.Catalog, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleManager))
				r.Post("/", controllers.CreateProduct(deps.Catalog, logg))
				r.Put("/{id}", controllers.UpdateProduct(deps.Catalog, logg))
			})
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", controllers.ListSuppliers(deps.Partners, logg))
			r.Get("/{id}", controllers.GetSupplier(deps.Partners, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleManager))
				r.Post("/", controllers.CreateSupplier(deps.Partners, logg))
				r.Put("/{id}", controllers.UpdateSupplier(deps.Partners, logg))
			})
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", controllers.SearchCustomers(deps.Partners, logg))
			r.Get("/{id}", controllers.GetCustomer(deps.Partners, logg))
			r.Post("/", controllers.CreateCustomer(deps.Partners, logg))
			r.Put("/{id}", controllers.UpdateCustomer(deps.Partners, logg))
		})

		r.Route("/stock", func(r chi.Router) {
			r.Get("/", controllers.ListBranchStock(deps.Stock, logg))
			r.Get("/{productID}/availability", controllers.StockAvailability(deps.Stock, logg))
			r.Get("/{productID}/movements", controllers.StockMovements(deps.Stock, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleManager))
				r.Post("/corrections", controllers.CorrectStock(deps.Stock, logg))
				r.Put("/price", controllers.SetStockPrice(deps.Stock, logg))
			})
		})

		r.Route("/serials", func(r chi.Router) {
			r.Get("/lookup", controllers.LookupSerial(deps.Serials, logg))
			r.Get("/stats", controllers.SerialStats(deps.Serials, logg))
			r.Get("/stock-items/{stockItemID}", controllers.ListSerialsByStockItem(deps.Serials, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleManager)).Post("/defective", controllers.MarkSerialDefective(deps.Serials, logg))
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleManager))
			r.Post("/", controllers.CreatePurchase(deps.Purchases, logg))
			r.Get("/", controllers.ListPurchases(deps.Purchases, logg))
			r.Get("/{id}", controllers.GetPurchase(deps.Purchases, logg))
			r.Post("/{id}/receive", controllers.ReceivePurchase(deps.Purchases, logg))
		})

		r.Route("/sales", func(r chi.Router) {
			r.With(middleware.RequireBranch(logg)).Post("/", controllers.CreateSale(deps.Sales, logg))
			r.Get("/", controllers.ListSales(deps.Sales, logg))
			r.Get("/lookup", controllers.FindSaleByNumber(deps.Sales, logg))
			r.Get("/{id}", controllers.GetSale(deps.Sales, logg))
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", controllers.ListTransfers(deps.Transfers, logg))
			r.Get("/{id}", controllers.GetTransfer(deps.Transfers, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleManager))
				r.Post("/", controllers.CreateTransfer(deps.Transfers, logg))
				r.Post("/{id}/send", controllers.SendTransfer(deps.Transfers, logg))
				r.Post("/{id}/receive", controllers.ReceiveTransfer(deps.Transfers, logg))
				r.Post("/{id}/reject", controllers.RejectTransfer(deps.Transfers, logg))
			})
		})

		r.Route("/returns", func(r chi.Router) {
			r.Get("/", controllers.ListReturns(deps.Returns, logg))
			r.Get("/{id}", controllers.GetReturn(deps.Returns, logg))
			r.Post("/", controllers.CreateReturn(deps.Returns, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleManager))
				r.Post("/{id}/approve", controllers.ApproveReturn(deps.Returns, logg))
				r.Post("/{id}/reject", controllers.RejectReturn(deps.Returns, logg))
			})
		})

		r.Route("/refunds", func(r chi.Router) {
			r.Get("/", controllers.ListRefunds(deps.Refunds, logg))
			r.Get("/{id}", controllers.GetRefund(deps.Refunds, logg))
			r.Post("/", controllers.CreateRefund(deps.Refunds, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleManager))
				r.Post("/{id}/approve", controllers.ApproveRefund(deps.Refunds, logg))
				r.Post("/{id}/reject", controllers.RejectRefund(deps.Refunds, logg))
			})
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/dashboard", controllers.Dashboard(deps.Reports, logg))
			r.Get("/low-stock", controllers.LowStockReport(deps.Reports, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleManager)).Get("/sales-summary", controllers.SalesSummary(deps.Reports, logg))
		})
	})

	return r
}
