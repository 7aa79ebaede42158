package controllers

import (
	"fmt"
	"strings"
	"time"

	"github.com/ganeshai/ganesh-ai/models"
	"github.com/ganeshai/ganesh-ai/utils"
	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"
	"gorm.io/gorm"
)

// AdminEarningsController reports on settled payments and payouts for admins.
type AdminEarningsController struct {
	DB *gorm.DB
}

// NewAdminEarningsController wires an admin earnings controller.
func NewAdminEarningsController(db *gorm.DB) *AdminEarningsController {
	return &AdminEarningsController{DB: db}
}

// reportWindow resolves a period query parameter to a date range.
func reportWindow(period string) (time.Time, time.Time, bool) {
	now := time.Now()
	switch period {
	case "day":
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 999999999, now.Location())
		return start, end, true
	case "week":
		end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 999999999, now.Location())
		start := end.AddDate(0, 0, -6)
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
		return start, end, true
	case "month":
		start := now.AddDate(0, 0, -30).Truncate(24 * time.Hour)
		end := now.Add(24 * time.Hour)
		return start, end, true
	}
	return time.Time{}, time.Time{}, false
}

type earningsSummary struct {
	TotalOrders    int
	TotalRevenue   int64 // paise
	TotalCustomers int
	TotalPayouts   int64 // paise
	ByProvider     map[string]int64
	ByPurpose      map[string]int64
}

func (ac *AdminEarningsController) buildSummary(orders []models.PaymentOrder, payouts []models.WithdrawalRequest) earningsSummary {
	summary := earningsSummary{
		ByProvider: make(map[string]int64),
		ByPurpose:  make(map[string]int64),
	}
	customerSet := make(map[uint]bool)
	for _, order := range orders {
		summary.TotalOrders++
		summary.TotalRevenue += order.Amount
		summary.ByProvider[order.Provider] += order.Amount
		summary.ByPurpose[order.Purpose] += order.Amount
		customerSet[order.UserID] = true
	}
	summary.TotalCustomers = len(customerSet)
	for _, w := range payouts {
		if w.Status != models.WithdrawalStatusRejected {
			summary.TotalPayouts += w.Amount
		}
	}
	return summary
}

func (ac *AdminEarningsController) fetchWindow(c *gin.Context) ([]models.PaymentOrder, []models.WithdrawalRequest, string, bool) {
	period := c.DefaultQuery("period", "day")
	startDate, endDate, ok := reportWindow(period)
	if !ok {
		utils.LogError("Invalid period specified: %s", period)
		utils.BadRequest(c, "Invalid period", "Period must be day, week, or month")
		return nil, nil, "", false
	}

	var orders []models.PaymentOrder
	if err := ac.DB.Where("status = ? AND updated_at >= ? AND updated_at <= ?", models.OrderStatusPaid, startDate, endDate).
		Order("updated_at DESC").
		Find(&orders).Error; err != nil {
		utils.LogError("Failed to fetch paid orders: %v", err)
		utils.InternalServerError(c, "Failed to fetch orders", err.Error())
		return nil, nil, "", false
	}

	var payouts []models.WithdrawalRequest
	if err := ac.DB.Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Find(&payouts).Error; err != nil {
		utils.LogError("Failed to fetch withdrawals: %v", err)
		utils.InternalServerError(c, "Failed to fetch withdrawals", err.Error())
		return nil, nil, "", false
	}

	return orders, payouts, period, true
}

// GetEarnings returns an aggregate view of settled payments for the period.
func (ac *AdminEarningsController) GetEarnings(c *gin.Context) {
	utils.LogInfo("GetEarnings called")
	orders, payouts, period, ok := ac.fetchWindow(c)
	if !ok {
		return
	}
	summary := ac.buildSummary(orders, payouts)

	byProvider := gin.H{}
	for provider, amount := range summary.ByProvider {
		byProvider[provider] = gin.H{"amount": amount, "display": utils.FormatRupees(amount)}
	}
	byPurpose := gin.H{}
	for purpose, amount := range summary.ByPurpose {
		byPurpose[purpose] = gin.H{"amount": amount, "display": utils.FormatRupees(amount)}
	}

	utils.Success(c, "Earnings summary", gin.H{
		"period":          period,
		"total_orders":    summary.TotalOrders,
		"total_revenue":   summary.TotalRevenue,
		"revenue_display": utils.FormatRupees(summary.TotalRevenue),
		"total_customers": summary.TotalCustomers,
		"total_payouts":   summary.TotalPayouts,
		"payouts_display": utils.FormatRupees(summary.TotalPayouts),
		"by_provider":     byProvider,
		"by_purpose":      byPurpose,
	})
}

// ExportEarnings downloads the period's settled payments as an Excel sheet.
func (ac *AdminEarningsController) ExportEarnings(c *gin.Context) {
	utils.LogInfo("ExportEarnings called")
	orders, payouts, period, ok := ac.fetchWindow(c)
	if !ok {
		return
	}
	summary := ac.buildSummary(orders, payouts)

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Earnings Report")
	if err != nil {
		utils.LogError("Failed to create Excel sheet: %v", err)
		utils.InternalServerError(c, "Failed to create Excel sheet", err.Error())
		return
	}

	titleRow := sheet.AddRow()
	titleRow.AddCell().SetString("GANESH AI - Earnings Report")
	periodRow := sheet.AddRow()
	periodRow.AddCell().SetString("Period: " + strings.ToUpper(period))
	sheet.AddRow() // spacing

	headers := []string{"Order ID", "User ID", "Provider", "Purpose", "Amount", "Currency", "Settled At"}
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

	for _, order := range orders {
		row := sheet.AddRow()
		row.AddCell().SetString(order.OrderID)
		row.AddCell().SetInt(int(order.UserID))
		row.AddCell().SetString(order.Provider)
		row.AddCell().SetString(order.Purpose)
		row.AddCell().SetString(utils.FormatMinor(order.Amount))
		row.AddCell().SetString(order.Currency)
		row.AddCell().SetString(order.UpdatedAt.Format("2006-01-02 15:04"))
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
		{"Total Orders", fmt.Sprintf("%d", summary.TotalOrders)},
		{"Total Revenue", utils.FormatMinor(summary.TotalRevenue)},
		{"Total Customers", fmt.Sprintf("%d", summary.TotalCustomers)},
		{"Total Payouts", utils.FormatMinor(summary.TotalPayouts)},
	}
	for _, data := range summaryData {
		row := sheet.AddRow()
		row.AddCell().SetString(data[0])
		row.AddCell().SetString(data[1])
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=earnings_report_%s.xlsx", period))
	if err := file.Write(c.Writer); err != nil {
		utils.LogError("Failed to write Excel file: %v", err)
		utils.InternalServerError(c, "Failed to write Excel file", err.Error())
		return
	}
	utils.LogInfo("Earnings report exported for period %s", period)
}
