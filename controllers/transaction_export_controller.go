package controllers

import (
	"fmt"
	"strings"
	"time"

	"github.com/donatehub/donatehub/config"
	"github.com/donatehub/donatehub/models"
	"github.com/donatehub/donatehub/utils"
	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"
)

// ListTransactions returns a paginated admin view of the ledger with
// optional status, provider and organization filters.
func ListTransactions(c *gin.Context) {
	utils.LogInfo("ListTransactions called")

	pagination := utils.NewPagination(c)
	query := config.DB.Model(&models.Transaction{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if provider := c.Query("provider"); provider != "" {
		query = query.Where("provider = ?", provider)
	}
	if orgID := c.Query("organization_id"); orgID != "" {
		query = query.Where("organization_id = ?", orgID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.LogError("Transaction count failed: %v", err)
		utils.InternalServerError(c, "Failed to count transactions", nil)
		return
	}
	pagination.SetTotal(total)

	var txns []models.Transaction
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset).Limit(pagination.Limit).
		Find(&txns).Error; err != nil {
		utils.LogError("Transaction list failed: %v", err)
		utils.InternalServerError(c, "Failed to fetch transactions", nil)
		return
	}

	items := make([]gin.H, 0, len(txns))
	for _, txn := range txns {
		items = append(items, gin.H{
			"transaction_id":  txn.TransactionID,
			"organization_id": txn.OrganizationID,
			"provider":        txn.Provider,
			"payment_method":  txn.PaymentMethod,
			"amount":          utils.FormatMinorUnits(txn.Amount),
			"refunded_amount": utils.FormatMinorUnits(txn.RefundedAmount),
			"currency":        txn.Currency,
			"status":          txn.Status,
			"created_at":      txn.CreatedAt.Format(time.RFC3339),
		})
	}

	utils.SuccessWithPagination(c, "Transactions retrieved", gin.H{"transactions": items},
		total, pagination.Page, pagination.Limit)
}

type exportSummary struct {
	TotalCount     int
	CompletedCount int
	RefundedCount  int
	GrossAmount    int64
	RefundedAmount int64
	NetAmount      int64
}

// DownloadTransactionsExcel exports the ledger for a period as an
// Excel workbook with a trailing summary block.
func DownloadTransactionsExcel(c *gin.Context) {
	utils.LogInfo("DownloadTransactionsExcel called")

	period := c.DefaultQuery("period", "day")
	utils.LogDebug("Generating Excel export for period: %s", period)

	now := time.Now()
	var startDate, endDate time.Time

	switch period {
	case "day":
		startDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		endDate = time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 999999999, now.Location())
	case "week":
		endDate = time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 999999999, now.Location())
		startDate = endDate.AddDate(0, 0, -6)
		startDate = time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, startDate.Location())
	case "month":
		startDate = now.AddDate(0, 0, -30).Truncate(24 * time.Hour)
		endDate = now.Add(24 * time.Hour)
	default:
		utils.LogError("Invalid period specified: %s", period)
		utils.BadRequest(c, "Invalid period", "Period must be day, week, or month")
		return
	}

	query := config.DB.Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Order("created_at DESC")
	if orgID := c.Query("organization_id"); orgID != "" {
		query = query.Where("organization_id = ?", orgID)
	}

	var txns []models.Transaction
	if err := query.Find(&txns).Error; err != nil {
		utils.LogError("Failed to fetch transactions: %v", err)
		utils.InternalServerError(c, "Failed to fetch transactions", err.Error())
		return
	}
	utils.LogDebug("Retrieved %d transactions for Excel export", len(txns))

	var summary exportSummary
	for _, txn := range txns {
		summary.TotalCount++
		switch txn.Status {
		case models.TransactionStatusCompleted:
			summary.CompletedCount++
			summary.GrossAmount += txn.Amount
			summary.RefundedAmount += txn.RefundedAmount
		case models.TransactionStatusRefunded:
			summary.RefundedCount++
			summary.GrossAmount += txn.Amount
			summary.RefundedAmount += txn.RefundedAmount
		}
	}
	summary.NetAmount = summary.GrossAmount - summary.RefundedAmount

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Transactions")
	if err != nil {
		utils.LogError("Failed to create Excel sheet: %v", err)
		utils.InternalServerError(c, "Failed to create Excel sheet", err.Error())
		return
	}

	titleRow := sheet.AddRow()
	titleRow.AddCell().SetString("DONATEHUB - Transaction Export")
	titleRow = sheet.AddRow()
	titleRow.AddCell().SetString("Period: " + strings.ToUpper(period) + " | " + startDate.Format("2006-01-02") + " to " + endDate.Format("2006-01-02"))
	sheet.AddRow() // spacing

	headers := []string{"Transaction ID", "Org ID", "Provider", "Method", "Amount", "Refunded", "Currency", "Status", "Donor", "Created", "Paid"}
	headerRow := sheet.AddRow()
	for _, h := range headers {
		cell := headerRow.AddCell()
		cell.SetString(h)
		style := xlsx.NewStyle()
		font := xlsx.DefaultFont()
		font.Bold = true
		style.Font = *font
		cell.SetStyle(style)
	}

	for _, txn := range txns {
		paidAt := ""
		if txn.PaidAt != nil {
			paidAt = txn.PaidAt.Format("2006-01-02 15:04")
		}
		row := sheet.AddRow()
		row.AddCell().SetString(txn.TransactionID)
		row.AddCell().SetInt(int(txn.OrganizationID))
		row.AddCell().SetString(txn.Provider)
		row.AddCell().SetString(txn.PaymentMethod)
		row.AddCell().SetString(utils.FormatMinorUnits(txn.Amount))
		row.AddCell().SetString(utils.FormatMinorUnits(txn.RefundedAmount))
		row.AddCell().SetString(txn.Currency)
		row.AddCell().SetString(string(txn.Status))
		row.AddCell().SetString(txn.PaymentDetails.DonorName)
		row.AddCell().SetString(txn.CreatedAt.Format("2006-01-02 15:04"))
		row.AddCell().SetString(paidAt)
	}

	sheet.AddRow() // spacing

	summaryRow := sheet.AddRow()
	summaryRow.AddCell().SetString("Summary")
	style := xlsx.NewStyle()
	font := xlsx.DefaultFont()
	font.Bold = true
	style.Font = *font
	summaryRow.Cells[0].SetStyle(style)

	summaryData := [][]string{
		{"Total Transactions", fmt.Sprintf("%d", summary.TotalCount)},
		{"Completed", fmt.Sprintf("%d", summary.CompletedCount)},
		{"Refunded", fmt.Sprintf("%d", summary.RefundedCount)},
		{"Gross Amount", utils.FormatMinorUnits(summary.GrossAmount)},
		{"Refunded Amount", utils.FormatMinorUnits(summary.RefundedAmount)},
		{"Net Amount", utils.FormatMinorUnits(summary.NetAmount)},
	}
	for _, data := range summaryData {
		row := sheet.AddRow()
		row.AddCell().SetString(data[0])
		row.AddCell().SetString(data[1])
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=transactions_%s.xlsx", period))
	if err := file.Write(c.Writer); err != nil {
		utils.LogError("Failed to write Excel file: %v", err)
		utils.InternalServerError(c, "Failed to write Excel file", err.Error())
		return
	}
	utils.LogInfo("Successfully generated Excel export for period %s", period)
}
