package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"billing-service/middleware"
	"billing-service/models"
)

// Billing raises and lists bills.
type Billing interface {
	CreateBill(ctx context.Context, req *models.CreateBillRequest) (*models.Bill, error)
	RaiseApplicationFee(ctx context.Context, studentID string) (*models.Bill, error)
	RaiseSemesterBills(ctx context.Context, req *models.RaiseSemesterBillsRequest) ([]models.Bill, error)
	RaiseCourseRegistrationBills(ctx context.Context, req *models.RaiseCourseBillsRequest) ([]models.Bill, error)
	ListBills(ctx context.Context, studentID string, isPaid *bool) ([]models.Bill, error)
}

// BillHandler handles HTTP requests for bills
type BillHandler struct {
	billing Billing
}

// NewBillHandler creates a new bill handler
func NewBillHandler(billing Billing) *BillHandler {
	return &BillHandler{billing: billing}
}

// ListBills returns the authenticated student's bills. The optional isPaid
// query parameter filters by settlement state.
func (h *BillHandler) ListBills(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	var isPaid *bool
	if raw, ok := c.GetQuery("isPaid"); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "isPaid must be true or false"})
			return
		}
		isPaid = &v
	}

	bills, err := h.billing.ListBills(c.Request.Context(), claims.UserID, isPaid)
	if err != nil {
		respondError(c, err, "Bill listing")
		return
	}
	if bills == nil {
		bills = []models.Bill{}
	}
	c.JSON(http.StatusOK, bills)
}

// CreateBill raises a single bill against a student
func (h *BillHandler) CreateBill(c *gin.Context) {
	var req models.CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	bill, err := h.billing.CreateBill(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Bill creation")
		return
	}
	c.JSON(http.StatusCreated, bill)
}

type applicationFeeRequest struct {
	StudentID string `json:"studentId" binding:"required"`
}

// RaiseApplicationFee bills an applicant the application fee
func (h *BillHandler) RaiseApplicationFee(c *gin.Context) {
	var req applicationFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	bill, err := h.billing.RaiseApplicationFee(c.Request.Context(), req.StudentID)
	if err != nil {
		respondError(c, err, "Application fee billing")
		return
	}
	c.JSON(http.StatusCreated, bill)
}

// RaiseSemesterBills raises the standard semester charges
func (h *BillHandler) RaiseSemesterBills(c *gin.Context) {
	var req models.RaiseSemesterBillsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	bills, err := h.billing.RaiseSemesterBills(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Semester billing")
		return
	}
	c.JSON(http.StatusCreated, bills)
}

// RaiseCourseRegistrationBills raises one bill per registered course
func (h *BillHandler) RaiseCourseRegistrationBills(c *gin.Context) {
	var req models.RaiseCourseBillsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	bills, err := h.billing.RaiseCourseRegistrationBills(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Course registration billing")
		return
	}
	c.JSON(http.StatusCreated, bills)
}
