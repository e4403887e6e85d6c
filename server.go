package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/gananathtech/inventory_backend/config"
	"bitbucket.org/gananathtech/inventory_backend/middlewares"
	"bitbucket.org/gananathtech/inventory_backend/models"
	"bitbucket.org/gananathtech/inventory_backend/render"
	"bitbucket.org/gananathtech/inventory_backend/utils"
	"bitbucket.org/gananathtech/inventory_backend/workflow"
)

const defaultPort = "8080"

// apiServer carries the dependencies handlers need. db stays nil until the
// connection is established; the readiness gate returns 503 before that.
type apiServer struct {
	db       *gorm.DB
	logger   *logrus.Logger
	company  config.CompanyProfile
	renderer render.Renderer
}

func (s *apiServer) ready() bool {
	return s.db != nil
}

// writeOperationError maps the engine error taxonomy onto HTTP statuses.
// Conflicts are retryable by the caller; validation failures are not.
func writeOperationError(c *gin.Context, err error) {
	switch {
	case utils.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case utils.IsConflictError(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound) || errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func writeBindError(c *gin.Context, err error) {
	if fields := utils.ProcessValidationErrors(err); len(fields) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (s *apiServer) signInHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.SignIn
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindError(c, err)
			return
		}
		token, err := models.Authenticate(c.Request.Context(), s.db, &input)
		if err != nil {
			if utils.IsValidationError(err) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
				return
			}
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

func (s *apiServer) createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindError(c, err)
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), s.db, &input)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

func (s *apiServer) updateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindError(c, err)
			return
		}
		product, err := models.UpdateProduct(c.Request.Context(), s.db, id, &input)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func (s *apiServer) deleteProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		product, err := models.DeleteProduct(c.Request.Context(), s.db, id)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func (s *apiServer) getProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		product, err := models.GetProduct(c.Request.Context(), s.db, id)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func (s *apiServer) listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var company, category *string
		if v := c.Query("company"); v != "" {
			company = &v
		}
		if v := c.Query("category"); v != "" {
			category = &v
		}
		products, err := models.GetProductsAll(c.Request.Context(), s.db, company, category)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

func (s *apiServer) createSellerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSeller
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindError(c, err)
			return
		}
		seller, err := models.CreateSeller(c.Request.Context(), s.db, &input)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusCreated, seller)
	}
}

func (s *apiServer) updateSellerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewSeller
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindError(c, err)
			return
		}
		seller, err := models.UpdateSeller(c.Request.Context(), s.db, id, &input)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusOK, seller)
	}
}

func (s *apiServer) getSellerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		seller, err := models.GetSeller(c.Request.Context(), s.db, id)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusOK, seller)
	}
}

func (s *apiServer) listSellersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var name *string
		if v := c.Query("name"); v != "" {
			name = &v
		}
		sellers, err := models.GetSellersAll(c.Request.Context(), s.db, name)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusOK, sellers)
	}
}

func (s *apiServer) sellerTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		transactions, err := models.GetSellerTransactions(c.Request.Context(), s.db, id)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusOK, transactions)
	}
}

func (s *apiServer) recordSellerPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewSellerPayment
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindError(c, err)
			return
		}
		// The path is authoritative for the seller.
		input.SellerId = id
		transaction, err := models.RecordSellerPayment(c.Request.Context(), s.db, &input)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusCreated, transaction)
	}
}

func (s *apiServer) createInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindError(c, err)
			return
		}
		invoice, err := models.CreateInvoice(c.Request.Context(), s.db, &input)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

func (s *apiServer) getInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		invoice, err := models.GetInvoice(c.Request.Context(), s.db, id)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func (s *apiServer) listInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var sellerId *int
		if v := c.Query("seller_id"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid seller_id"})
				return
			}
			sellerId = &n
		}
		fromDate, ok := queryDate(c, "from_date")
		if !ok {
			return
		}
		toDate, ok := queryDate(c, "to_date")
		if !ok {
			return
		}
		invoices, err := models.GetInvoicesAll(c.Request.Context(), s.db, sellerId, fromDate, toDate)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoices)
	}
}

func queryDate(c *gin.Context, key string) (*time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key + ", expected YYYY-MM-DD"})
		return nil, false
	}
	return &t, true
}

// invoiceDocumentHandler renders the invoice document, persists the artifact
// path on the invoice, and streams the document back.
func (s *apiServer) invoiceDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		invoice, err := models.GetInvoice(ctx, s.db, id)
		if err != nil {
			writeOperationError(c, err)
			return
		}

		document, err := s.renderer.RenderHTML(render.BuildRenderInput(invoice, s.company))
		if err != nil {
			config.LogError(s.logger, "server.go", "invoiceDocumentHandler", "RenderHTML", invoice.InvoiceNumber, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render invoice"})
			return
		}

		dir := os.Getenv("INVOICE_DOCUMENT_DIR")
		if dir == "" {
			dir = "invoices"
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			config.LogError(s.logger, "server.go", "invoiceDocumentHandler", "os.MkdirAll", dir, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store invoice document"})
			return
		}
		filename := fmt.Sprintf("%s_%s.html", invoice.InvoiceNumber, time.Now().Format("20060102150405"))
		path := filepath.Join(dir, filename)
		if err := os.WriteFile(path, document, 0o644); err != nil {
			config.LogError(s.logger, "server.go", "invoiceDocumentHandler", "os.WriteFile", path, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store invoice document"})
			return
		}
		if err := models.UpdateInvoicePdfPath(ctx, s.db, invoice.ID, path); err != nil {
			writeOperationError(c, err)
			return
		}

		c.Header("Content-Disposition", "inline; filename="+filename)
		c.Data(http.StatusOK, "text/html; charset=utf-8", document)
	}
}

func (s *apiServer) salesReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		topN := 10
		if v := c.Query("top"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid top"})
				return
			}
			topN = n
		}
		report, err := models.BuildSalesReport(c.Request.Context(), s.db, topN)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func (s *apiServer) salesReportExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := models.BuildSalesReport(c.Request.Context(), s.db, 10)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		content, err := models.ExportSalesReportXlsx(report)
		if err != nil {
			config.LogError(s.logger, "server.go", "salesReportExportHandler", "ExportSalesReportXlsx", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export report"})
			return
		}
		filename := "sales_report_" + time.Now().Format("20060102") + ".xlsx"
		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content)
	}
}

func (s *apiServer) sellerCreditSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := models.BuildSellerCreditSummary(c.Request.Context(), s.db)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// Ops tooling: dependency state for debugging a live deployment. The redis
// field distinguishes "never configured" from "configured but unreachable".
func (s *apiServer) statusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		redisState := "disabled"
		if rdb := config.GetRedisDB(); rdb != nil {
			redisState = "ok"
			if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
				redisState = "unreachable"
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"database": "ok",
			"redis":    redisState,
		})
	}
}

// Ops tooling (admin only): recompute seller balances from the ledger and
// report rows where the cached balance drifted.
func (s *apiServer) reconcileSellerCreditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		mismatches, err := workflow.RunSellerCreditReconciliation(c.Request.Context(), s.db, s.logger)
		if err != nil {
			writeOperationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"checked_at": time.Now().UTC(),
			"mismatches": mismatches,
		})
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		for _, ginErr := range c.Errors {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			userId, _ := utils.GetUserIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"path":           c.Request.URL.Path,
				"correlation_id": cid,
				"user_id":        userId,
			}).Error(ginErr.Error())
		}
	}
}

// ensureAdminUser seeds the login user from env on first boot. Safe to run on
// every startup; an existing username is left untouched.
func ensureAdminUser(ctx context.Context, db *gorm.DB, logger *logrus.Logger) {
	username := strings.TrimSpace(os.Getenv("ADMIN_USERNAME"))
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		return
	}
	_, err := models.CreateUser(ctx, db, username, password)
	if err != nil {
		if utils.IsValidationError(err) {
			// already seeded
			return
		}
		config.LogError(logger, "server.go", "ensureAdminUser", "CreateUser", username, err)
		return
	}
	logger.WithFields(logrus.Fields{"username": username}).Info("seeded admin user")
}

func main() {
	// .env is optional; real deployments inject env directly.
	_ = godotenv.Load()

	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	api := &apiServer{
		logger:   logger,
		company:  config.GetCompanyProfile(),
		renderer: render.NewHTMLRenderer(),
	}

	// Start the HTTP server ASAP so the platform considers the revision
	// healthy. Until the DB is ready, app endpoints return 503.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if !api.ready() {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production requires an explicit allowlist via CORS_ALLOWED_ORIGINS
	// (comma-separated); non-production allows all for developer convenience.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/signin", api.signInHandler())

	authorized := r.Group("/", middlewares.Auth())
	{
		authorized.POST("/products", api.createProductHandler())
		authorized.GET("/products", api.listProductsHandler())
		authorized.GET("/products/:id", api.getProductHandler())
		authorized.PUT("/products/:id", api.updateProductHandler())
		authorized.DELETE("/products/:id", api.deleteProductHandler())

		authorized.POST("/sellers", api.createSellerHandler())
		authorized.GET("/sellers", api.listSellersHandler())
		authorized.GET("/sellers/:id", api.getSellerHandler())
		authorized.PUT("/sellers/:id", api.updateSellerHandler())
		authorized.GET("/sellers/:id/transactions", api.sellerTransactionsHandler())
		authorized.POST("/sellers/:id/payments", api.recordSellerPaymentHandler())

		authorized.POST("/invoices", api.createInvoiceHandler())
		authorized.GET("/invoices", api.listInvoicesHandler())
		authorized.GET("/invoices/:id", api.getInvoiceHandler())
		authorized.GET("/invoices/:id/document", api.invoiceDocumentHandler())

		authorized.GET("/reports/sales", api.salesReportHandler())
		authorized.GET("/reports/sales/export", api.salesReportExportHandler())
		authorized.GET("/reports/seller-credit", api.sellerCreditSummaryHandler())

		authorized.GET("/internal/ops/status", api.statusHandler())
		authorized.POST("/internal/ops/reconcile-seller-credit", api.reconcileSellerCreditHandler())
	}

	// Start listening immediately (startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	db := config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable(db)
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	ensureAdminUser(sigCtx, db, logger)

	// Invoice finalization depends on locked re-reads seeing committed stock.
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<minInt(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	// Routes are live only after this; earlier requests saw 503.
	api.db = db

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
