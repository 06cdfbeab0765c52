package utils

import (
	"os"
	"testing"

	"github.com/donatehub/donatehub/config"
	"github.com/donatehub/donatehub/models"
	"github.com/google/uuid"
)

// TestSetup initializes the database-backed test environment. Suites
// that exercise the ledger call this first; when DB_HOST is not
// configured the test skips, so the pure-logic suites stay runnable
// without a database.
func TestSetup(t *testing.T) {
	t.Helper()

	if os.Getenv("DB_HOST") == "" {
		_, _ = config.LoadConfig()
	}
	if os.Getenv("DB_HOST") == "" {
		t.Skip("DB_HOST not configured, skipping database-backed test")
	}

	if config.DB == nil {
		config.InitDB()
	}

	ClearTestData()
}

// TestTeardown cleans up test environment
func TestTeardown(t *testing.T) {
	t.Helper()
	ClearTestData()
}

// ClearTestData clears all test data from the database
func ClearTestData() {
	config.DB.Exec("TRUNCATE TABLE payment_logs CASCADE")
	config.DB.Exec("TRUNCATE TABLE donations CASCADE")
	config.DB.Exec("TRUNCATE TABLE transactions CASCADE")
	config.DB.Exec("TRUNCATE TABLE partner_merchants CASCADE")
	config.DB.Exec("TRUNCATE TABLE project_stages CASCADE")
	config.DB.Exec("TRUNCATE TABLE projects CASCADE")
	config.DB.Exec("TRUNCATE TABLE fundraisers CASCADE")
	config.DB.Exec("TRUNCATE TABLE organizations CASCADE")
	config.DB.Exec("TRUNCATE TABLE admins CASCADE")
}

// CreateTestOrganization creates an organization wired to the sandbox
// provider.
func CreateTestOrganization(t *testing.T) *models.Organization {
	t.Helper()

	org := &models.Organization{
		Name:            "Test Organization",
		Slug:            "test-org-" + uuid.New().String()[:8],
		EnabledGateways: "test",
		ReceiptEmail:    "receipts@example.com",
	}
	if err := config.DB.Create(org).Error; err != nil {
		t.Fatalf("Failed to create test organization: %v", err)
	}
	return org
}

// CreateTestProject creates a project under the organization
func CreateTestProject(t *testing.T, orgID uint) *models.Project {
	t.Helper()

	project := &models.Project{
		OrganizationID: orgID,
		Title:          "Test Project",
		TargetAmount:   1000000,
	}
	if err := config.DB.Create(project).Error; err != nil {
		t.Fatalf("Failed to create test project: %v", err)
	}
	return project
}

// CreateTestTransaction inserts a transaction row directly. Tests that
// exercise the ledger transition path start from the pending fixture
// this produces.
func CreateTestTransaction(t *testing.T, txn *models.Transaction) *models.Transaction {
	t.Helper()

	if txn.TransactionID == "" {
		txn.TransactionID = uuid.New().String()
	}
	if txn.PaymentMethod == "" {
		txn.PaymentMethod = "test"
	}
	if txn.Provider == "" {
		txn.Provider = "test"
	}
	if txn.Currency == "" {
		txn.Currency = "RUB"
	}
	if txn.Status == "" {
		txn.Status = models.TransactionStatusPending
	}
	if err := config.DB.Create(txn).Error; err != nil {
		t.Fatalf("Failed to create test transaction: %v", err)
	}
	return txn
}
