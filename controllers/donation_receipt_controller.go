package controllers

import (
	"fmt"
	"strconv"

	"github.com/donatehub/donatehub/config"
	"github.com/donatehub/donatehub/models"
	"github.com/donatehub/donatehub/utils"
	"github.com/gin-gonic/gin"
	"github.com/jung-kurt/gofpdf"
)

// DownloadDonationReceipt generates and returns a PDF receipt for a
// completed donation.
func DownloadDonationReceipt(c *gin.Context) {
	utils.LogInfo("DownloadDonationReceipt called")

	donationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.LogError("Invalid donation ID format in receipt request: %v", err)
		utils.BadRequest(c, "Invalid donation ID", nil)
		return
	}

	var donation models.Donation
	if err := config.DB.First(&donation, donationID).Error; err != nil {
		utils.LogError("Donation not found for receipt - Donation ID: %d", donationID)
		utils.NotFound(c, "Donation not found")
		return
	}

	var txn models.Transaction
	if err := config.DB.First(&txn, donation.TransactionID).Error; err != nil {
		utils.LogError("Transaction not found for donation %d", donationID)
		utils.NotFound(c, "Transaction not found")
		return
	}

	var org models.Organization
	if err := config.DB.First(&org, donation.OrganizationID).Error; err != nil {
		utils.LogError("Organization not found for donation %d", donationID)
		utils.NotFound(c, "Organization not found")
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(100, 10, org.Name)
	pdf.SetFont("Arial", "", 12)
	pdf.Ln(8)
	if org.ReceiptEmail != "" {
		pdf.Cell(100, 8, "Email: "+org.ReceiptEmail)
		pdf.Ln(8)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(100, 10, "DONATION RECEIPT")
	pdf.Ln(12)
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(60, 8, "Receipt No: "+strconv.Itoa(int(donation.ID)))
	pdf.Cell(80, 8, "Date: "+donation.CreatedAt.Format("2006-01-02 15:04:05"))
	pdf.Ln(8)
	pdf.Cell(60, 8, "Reference: "+txn.TransactionID)
	pdf.Ln(8)
	pdf.Cell(60, 8, "Payment Method: "+txn.PaymentMethod)
	pdf.Cell(80, 8, "Status: "+string(txn.Status))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(100, 8, "Received From:")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 12)
	donorName := donation.DonorName
	if donorName == "" {
		donorName = "Anonymous donor"
	}
	pdf.Cell(100, 8, donorName)
	pdf.Ln(6)
	if donation.DonorEmail != "" {
		pdf.Cell(100, 8, donation.DonorEmail)
		pdf.Ln(6)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(110, 8, "Description", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 8, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 12)
	description := "Donation to " + org.Name
	if donation.RecurringPeriod != "" {
		description += fmt.Sprintf(" (%s recurring)", donation.RecurringPeriod)
	}
	pdf.CellFormat(110, 8, description, "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, utils.FormatAmountDisplay(donation.Amount, txn.Currency), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(110, 8, "Total:", "", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, utils.FormatAmountDisplay(donation.Amount, txn.Currency), "", 1, "R", false, 0, "")

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 10)
	pdf.Cell(0, 8, "Thank you for your support.")

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt_%d.pdf", donation.ID))
	if err := pdf.Output(c.Writer); err != nil {
		utils.LogError("Failed to write PDF receipt: %v", err)
		utils.InternalServerError(c, "Failed to generate receipt", nil)
		return
	}
	utils.LogInfo("Receipt generated for donation %d", donation.ID)
}
