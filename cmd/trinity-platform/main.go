package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trinity-shop/trinity-platform/internal/api/handlers"
	"github.com/trinity-shop/trinity-platform/internal/api/middleware"
	"github.com/trinity-shop/trinity-platform/internal/config"
	"github.com/trinity-shop/trinity-platform/internal/health"
	"github.com/trinity-shop/trinity-platform/internal/metrics"
	"github.com/trinity-shop/trinity-platform/internal/models"
	repository "github.com/trinity-shop/trinity-platform/internal/repositories"
	service "github.com/trinity-shop/trinity-platform/internal/services"
	"github.com/trinity-shop/trinity-platform/pkg/paypal"
	"github.com/trinity-shop/trinity-platform/pkg/pdfgen"
	"github.com/trinity-shop/trinity-platform/pkg/sendgrid"
	"github.com/trinity-shop/trinity-platform/pkg/stripe"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.MustLoad()

	repos, err := repository.New(cfg)
	if err != nil {
		slog.Error("Error accessing the database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if err := repos.Close(); err != nil {
			slog.Error("Error closing database connection", slog.String("error", err.Error()))
		}
	}()

	if err := repos.Migrate(cfg); err != nil {
		slog.Error("Error running database migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	redisClient, err := repository.NewRedisClient(cfg)
	if err != nil {
		slog.Error("Error accessing the redis instance", slog.String("error", err.Error()))
		os.Exit(1)
	}

	redisRepo := repository.NewRedisRepo(redisClient, cfg)

	stripeClient := stripe.NewStripeClient(cfg.Stripe.SecretKey)

	paypalClient, err := paypal.NewPaypalClient(
		cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, cfg.PayPal.APIBase,
		cfg.PayPal.ReturnURL, cfg.PayPal.CancelURL)
	if err != nil {
		slog.Error("Error connecting to paypal", slog.String("error", err.Error()))
		os.Exit(1)
	}

	notifier := sendgrid.NewEmailService(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)
	renderer := pdfgen.NewRenderer(cfg.SendGrid.FromName)

	gateways := map[models.PaymentMethod]service.PaymentGateway{
		models.PaymentMethodCash:   service.NewCashGateway(),
		models.PaymentMethodStripe: service.NewStripeGateway(stripeClient, &cfg.Stripe),
		models.PaymentMethodPaypal: service.NewPaypalGateway(paypalClient, &cfg.PayPal),
	}

	settlement := service.NewSettlementEngine(repos, redisRepo, renderer, notifier, logger)

	userService := service.NewUserService(repos.User, redisRepo, cfg.Security.JWTKey, logger)
	productService := service.NewProductService(repos.Product)
	cartService := service.NewCartService(repos.Cart, repos.Product, repos.Coupon, logger)
	couponService := service.NewCouponService(repos.Coupon, repos.Product, repos.User)
	checkoutService := service.NewCheckoutService(cartService, gateways, settlement, logger)
	captureService := service.NewCaptureService(repos.Cart, repos.Coupon, gateways, settlement, logger)
	invoiceService := service.NewInvoiceService(repos, gateways, renderer, logger)

	userHandler := handlers.NewUserHandler(userService)
	productHandler := handlers.NewProductHandler(productService)
	cartHandler := handlers.NewCartHandler(cartService, checkoutService, captureService)
	couponHandler := handlers.NewCouponHandler(couponService)
	invoiceHandler := handlers.NewInvoiceHandler(invoiceService)
	authMiddleware := middleware.NewAuthMiddleware([]byte(cfg.Security.JWTKey))

	healthHandler, err := health.NewHealthHandler(cfg, &health.Endpoints{DB: repos.DB, RedisClient: redisClient})
	if err != nil {
		slog.Error("Error creating health handler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("storage initialized", slog.String("env", cfg.Env), slog.String("version", "1.0.0"))

	routerMux := http.NewServeMux()

	routerMux.HandleFunc("POST /api/v1/users/register", userHandler.Register())
	routerMux.HandleFunc("POST /api/v1/users/login", userHandler.Login())
	routerMux.HandleFunc("GET /api/v1/users/profile", authMiddleware.Authenticate(userHandler.GetProfile()))

	routerMux.HandleFunc("POST /api/v1/products", authMiddleware.Authenticate(authMiddleware.RequireAdmin(productHandler.CreateProduct())))
	routerMux.HandleFunc("GET /api/v1/products/{id}", productHandler.GetProduct())
	routerMux.HandleFunc("PUT /api/v1/products/{id}", authMiddleware.Authenticate(authMiddleware.RequireAdmin(productHandler.UpdateProduct())))
	routerMux.HandleFunc("GET /api/v1/products", productHandler.ListProducts())

	routerMux.HandleFunc("GET /api/v1/carts", authMiddleware.Authenticate(cartHandler.GetCart()))
	routerMux.HandleFunc("POST /api/v1/carts/items", authMiddleware.Authenticate(cartHandler.AddItem()))
	routerMux.HandleFunc("PUT /api/v1/carts/items", authMiddleware.Authenticate(cartHandler.UpdateQuantity()))
	routerMux.HandleFunc("DELETE /api/v1/carts/items/{id}", authMiddleware.Authenticate(cartHandler.RemoveItem()))
	routerMux.HandleFunc("DELETE /api/v1/carts", authMiddleware.Authenticate(cartHandler.ClearCart()))
	routerMux.HandleFunc("POST /api/v1/carts/coupon", authMiddleware.Authenticate(cartHandler.ApplyCoupon()))
	routerMux.HandleFunc("DELETE /api/v1/carts/coupon", authMiddleware.Authenticate(cartHandler.RemoveCoupon()))
	routerMux.HandleFunc("POST /api/v1/carts/checkout", authMiddleware.Authenticate(cartHandler.Checkout()))
	// Capture endpoints are called back by the payment provider and carry no
	// bearer token. The cart correlation check and the PENDING->PAID guard
	// inside settlement authorize and deduplicate them.
	routerMux.HandleFunc("POST /api/v1/carts/capture/paypal", cartHandler.CapturePaypal())
	routerMux.HandleFunc("POST /api/v1/carts/capture/stripe", cartHandler.CaptureStripe())

	routerMux.HandleFunc("POST /api/v1/coupons", authMiddleware.Authenticate(authMiddleware.RequireAdmin(couponHandler.CreateCoupon())))
	routerMux.HandleFunc("GET /api/v1/coupons", authMiddleware.Authenticate(authMiddleware.RequireAdmin(couponHandler.ListCoupons())))
	routerMux.HandleFunc("GET /api/v1/coupons/{code}", authMiddleware.Authenticate(couponHandler.GetCouponByCode()))
	routerMux.HandleFunc("DELETE /api/v1/coupons/{id}", authMiddleware.Authenticate(authMiddleware.RequireAdmin(couponHandler.DeleteCoupon())))

	routerMux.HandleFunc("GET /api/v1/invoices", authMiddleware.Authenticate(authMiddleware.RequireAdmin(invoiceHandler.ListInvoices())))
	routerMux.HandleFunc("GET /api/v1/invoices/me", authMiddleware.Authenticate(invoiceHandler.ListMyInvoices()))
	routerMux.HandleFunc("GET /api/v1/invoices/{id}", authMiddleware.Authenticate(invoiceHandler.GetInvoice()))
	routerMux.HandleFunc("GET /api/v1/invoices/{id}/pdf", authMiddleware.Authenticate(invoiceHandler.GetInvoicePDF()))
	routerMux.HandleFunc("POST /api/v1/invoices", authMiddleware.Authenticate(authMiddleware.RequireAdmin(invoiceHandler.CreateManualInvoice())))
	routerMux.HandleFunc("POST /api/v1/invoices/{id}/refund", authMiddleware.Authenticate(authMiddleware.RequireAdmin(invoiceHandler.RefundInvoice())))
	routerMux.HandleFunc("POST /api/v1/invoices/{id}/refund/partial", authMiddleware.Authenticate(authMiddleware.RequireAdmin(invoiceHandler.PartialRefundInvoice())))

	routerMux.Handle("GET /health", healthHandler.Handler())
	routerMux.Handle("GET /metrics", metrics.Handler())

	var handler http.Handler = routerMux
	handler = metrics.Middleware(handler)
	handler = middleware.Logging(handler)

	server := http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	slog.Info("Server is starting", slog.String("address", cfg.Addr))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("Failed to start server", slog.String("error", err.Error()))
		}
	}()

	<-done

	slog.Warn("Shutdown signal received. Preparing to stop the server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown encountered an issue", slog.String("error", err.Error()))
	} else {
		slog.Info("Server shut down gracefully")
	}
}
