package controllers

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/ganeshai/ganesh-ai/models"
	"github.com/ganeshai/ganesh-ai/payments"
	"github.com/ganeshai/ganesh-ai/utils"
	"github.com/gin-gonic/gin"
	"github.com/jung-kurt/gofpdf"
)

// ReceiptController renders PDF receipts for settled payment orders.
type ReceiptController struct {
	Orchestrator *payments.Orchestrator
}

// NewReceiptController wires a receipt controller.
func NewReceiptController(orchestrator *payments.Orchestrator) *ReceiptController {
	return &ReceiptController{Orchestrator: orchestrator}
}

// DownloadReceipt generates and returns a PDF receipt for a paid order.
func (rc *ReceiptController) DownloadReceipt(c *gin.Context) {
	utils.LogInfo("DownloadReceipt called")
	user, ok := currentUser(c)
	if !ok {
		return
	}

	orderID := c.Param("order_id")
	order, err := rc.Orchestrator.GetOrder(c.Request.Context(), orderID, user.ID)
	if err != nil {
		if errors.Is(err, payments.ErrOrderNotFound) {
			utils.NotFound(c, "Payment order not found")
			return
		}
		utils.LogError("Failed to load order %s for receipt: %v", orderID, err)
		utils.InternalServerError(c, "Failed to load order", nil)
		return
	}
	if order.Status != models.OrderStatusPaid {
		utils.BadRequest(c, "Receipt is only available for paid orders", gin.H{"status": order.Status})
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(100, 10, "Ganesh AI")
	pdf.SetFont("Arial", "", 12)
	pdf.Ln(8)
	pdf.Cell(100, 8, "Email: support@ganesh.ai")
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(100, 10, "PAYMENT RECEIPT")
	pdf.Ln(12)
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(60, 8, "Order ID: "+order.OrderID)
	pdf.Ln(8)
	pdf.Cell(60, 8, "Paid On: "+order.UpdatedAt.Format("2006-01-02 15:04:05"))
	pdf.Ln(8)
	pdf.Cell(60, 8, "Gateway: "+order.Provider)
	pdf.Ln(8)
	if order.ProviderPaymentID != "" {
		pdf.Cell(100, 8, "Payment Reference: "+order.ProviderPaymentID)
		pdf.Ln(8)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(100, 8, "Billed To:")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(100, 8, user.Username)
	pdf.Ln(6)
	pdf.Cell(100, 8, user.Email)
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(90, 8, "Description", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 8, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(90, 8, order.Purpose, "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, utils.FormatMinor(order.Amount)+" "+order.Currency, "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(90, 10, "Total Paid:", "", 0, "L", false, 0, "")
	pdf.CellFormat(60, 10, utils.FormatMinor(order.Amount)+" "+order.Currency, "", 1, "R", false, 0, "")

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 12)
	pdf.Cell(0, 10, "Thank you for using Ganesh AI!")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		utils.LogError("Failed to render receipt for order %s: %v", order.OrderID, err)
		utils.InternalServerError(c, "Failed to generate receipt", nil)
		return
	}
	utils.LogInfo("Receipt generated for order %s", order.OrderID)

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", "attachment; filename=receipt_"+order.OrderID+".pdf")
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
