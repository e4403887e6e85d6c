package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/gananathtech/inventory_backend/config"
	"bitbucket.org/gananathtech/inventory_backend/models"
	"bitbucket.org/gananathtech/inventory_backend/utils"
	"bitbucket.org/gananathtech/inventory_backend/workflow"
	"gorm.io/gorm"
)

// Regression: finalize must be all-or-nothing. A committed invoice implies
// decremented stock, a reserved invoice number, and (for credit sales) a
// ledger entry; a failed finalize leaves none of those behind.
func TestCreateInvoice_FinalizeIsAtomic(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := testContext()

	product := seedProduct(t, ctx, db, "BRK-001", 10)
	seller := models.NewSeller{Name: "Ravi Traders", Phone: "NA", Address: "14 Market Road"}

	invoice, err := models.CreateInvoice(ctx, db, &models.NewInvoice{
		InvoiceDate:   time.Now(),
		Seller:        seller,
		PaymentStatus: models.PaymentStatusCredit,
		Items: []models.NewInvoiceItem{{
			ItemCode:           "BRK-001",
			Quantity:           2,
			UnitPrice:          decimal.NewFromInt(100),
			DiscountPercentage: decimal.NewFromInt(10),
			GstPercentage:      decimal.NewFromInt(12),
		}},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	if invoice.InvoiceNumber != "INV-0001" {
		t.Fatalf("first invoice expected INV-0001, got %s", invoice.InvoiceNumber)
	}
	if got := invoice.FinalAmount.StringFixed(2); got != "201.60" {
		t.Fatalf("final amount expected 201.60, got %s", got)
	}

	refreshed, err := models.GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if refreshed.Quantity != 8 {
		t.Fatalf("stock expected 8 after selling 2 of 10, got %d", refreshed.Quantity)
	}

	transactions, err := models.GetSellerTransactions(ctx, db, invoice.SellerId)
	if err != nil {
		t.Fatalf("GetSellerTransactions: %v", err)
	}
	if len(transactions) != 1 || transactions[0].TransactionType != models.TransactionTypeCredit {
		t.Fatalf("credit sale must append exactly one credit entry, got %+v", transactions)
	}
	if !transactions[0].Amount.Equal(invoice.FinalAmount) {
		t.Fatalf("ledger amount %s != invoice final %s", transactions[0].Amount, invoice.FinalAmount)
	}

	// A failed finalize must not burn a number or touch stock.
	_, err = models.CreateInvoice(ctx, db, &models.NewInvoice{
		InvoiceDate:   time.Now(),
		Seller:        seller,
		PaymentStatus: models.PaymentStatusPaid,
		Items: []models.NewInvoiceItem{{
			ItemCode:  "BRK-001",
			Quantity:  100,
			UnitPrice: decimal.NewFromInt(100),
		}},
	})
	if err == nil {
		t.Fatal("expected finalize to fail on insufficient stock")
	}
	if !utils.IsValidationError(err) {
		t.Fatalf("insufficient stock at call time is a validation error, got %T: %v", err, err)
	}

	second, err := models.CreateInvoice(ctx, db, &models.NewInvoice{
		InvoiceDate:   time.Now(),
		Seller:        seller,
		PaymentStatus: models.PaymentStatusPaid,
		Items: []models.NewInvoiceItem{{
			ItemCode:  "BRK-001",
			Quantity:  1,
			UnitPrice: decimal.NewFromInt(100),
		}},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if second.InvoiceNumber != "INV-0002" {
		t.Fatalf("numbers must be sequential with no reuse; expected INV-0002, got %s", second.InvoiceNumber)
	}
	// Paid sale: no new ledger entry.
	transactions, err = models.GetSellerTransactions(ctx, db, second.SellerId)
	if err != nil {
		t.Fatalf("GetSellerTransactions: %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("paid sale must not touch the ledger, got %d entries", len(transactions))
	}
}

// Regression: concurrent finalizes over the same stock must never oversell,
// and every committed invoice must carry a distinct number.
func TestCreateInvoice_ConcurrentFinalize(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := testContext()

	seedProduct(t, ctx, db, "OIL-110", 5)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]error, workers)
	numbers := make([]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			invoice, err := models.CreateInvoice(ctx, db, &models.NewInvoice{
				InvoiceDate:   time.Now(),
				Seller:        models.NewSeller{Name: fmt.Sprintf("Seller %d", i), Phone: "NA", Address: "addr"},
				PaymentStatus: models.PaymentStatusPaid,
				Items: []models.NewInvoiceItem{{
					ItemCode:  "OIL-110",
					Quantity:  1,
					UnitPrice: decimal.NewFromInt(450),
				}},
			})
			results[i] = err
			if err == nil {
				numbers[i] = invoice.InvoiceNumber
			}
		}(i)
	}
	wg.Wait()

	succeeded := 0
	seen := map[string]bool{}
	for i, err := range results {
		if err == nil {
			succeeded++
			if seen[numbers[i]] {
				t.Fatalf("invoice number %s issued twice", numbers[i])
			}
			seen[numbers[i]] = true
			continue
		}
		if !utils.IsValidationError(err) && !utils.IsConflictError(err) {
			t.Fatalf("unexpected error class %T: %v", err, err)
		}
	}
	if succeeded != 5 {
		t.Fatalf("5 units in stock, expected exactly 5 committed invoices, got %d", succeeded)
	}

	product, err := models.GetProductByItemCode(ctx, db, "OIL-110")
	if err != nil {
		t.Fatalf("GetProductByItemCode: %v", err)
	}
	if product.Quantity != 0 {
		t.Fatalf("expected stock drained to 0, got %d", product.Quantity)
	}
}

// Regression: a payment may never exceed the ledger-derived pending balance,
// and recorded payments must keep the cached balance consistent with the
// ledger (verified via reconciliation).
func TestRecordSellerPayment_BoundsAndBalance(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := testContext()

	seedProduct(t, ctx, db, "CHN-21", 10)
	invoice, err := models.CreateInvoice(ctx, db, &models.NewInvoice{
		InvoiceDate:   time.Now(),
		Seller:        models.NewSeller{Name: "Chain Depot", Phone: "NA", Address: "7 Ring Road"},
		PaymentStatus: models.PaymentStatusCredit,
		Items: []models.NewInvoiceItem{{
			ItemCode:  "CHN-21",
			Quantity:  4,
			UnitPrice: decimal.NewFromInt(250),
		}},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	// 4 x 250 = 1000 outstanding.

	_, err = models.RecordSellerPayment(ctx, db, &models.NewSellerPayment{
		SellerId: invoice.SellerId,
		Amount:   decimal.NewFromInt(1500),
		Date:     time.Now(),
	})
	if err == nil || !utils.IsValidationError(err) {
		t.Fatalf("overpayment must be rejected as validation error, got %v", err)
	}

	_, err = models.RecordSellerPayment(ctx, db, &models.NewSellerPayment{
		SellerId: invoice.SellerId,
		Amount:   decimal.NewFromInt(-5),
		Date:     time.Now(),
	})
	if err == nil || !utils.IsValidationError(err) {
		t.Fatalf("non-positive payment must be rejected, got %v", err)
	}

	if _, err := models.RecordSellerPayment(ctx, db, &models.NewSellerPayment{
		SellerId: invoice.SellerId,
		Amount:   decimal.NewFromInt(600),
		Date:     time.Now(),
	}); err != nil {
		t.Fatalf("RecordSellerPayment: %v", err)
	}

	seller, err := models.GetSeller(ctx, db, invoice.SellerId)
	if err != nil {
		t.Fatalf("GetSeller: %v", err)
	}
	if !seller.TotalCredit.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("cached balance expected 400, got %s", seller.TotalCredit)
	}

	mismatches, err := workflow.RunSellerCreditReconciliation(ctx, db, config.GetLogger())
	if err != nil {
		t.Fatalf("RunSellerCreditReconciliation: %v", err)
	}
	if len(mismatches) != 0 {
		t.Fatalf("cached balances must match the ledger, got %+v", mismatches)
	}
}

func testContext() context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUsernameInContext(ctx, "test@local")
	return ctx
}

func seedProduct(t *testing.T, ctx context.Context, db *gorm.DB, itemCode string, quantity int) *models.Product {
	t.Helper()
	product, err := models.CreateProduct(ctx, db, &models.NewProduct{
		Company:      "Hero",
		Category:     "Spares",
		ItemName:     "Item " + itemCode,
		ItemCode:     itemCode,
		BuyingPrice:  decimal.NewFromInt(80),
		SellingPrice: decimal.NewFromInt(100),
		Quantity:     quantity,
	})
	if err != nil {
		t.Fatalf("CreateProduct(%s): %v", itemCode, err)
	}
	return product
}

func setupIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "inventory_test")

	db := config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable(db)
	return db
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("inventory-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("inventory-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=inventory_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
