package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"billing-service/middleware"
	"billing-service/models"
)

// Register mounts all routes on r. auth must reject requests without a
// valid access token.
func Register(r gin.IRouter, payments *PaymentHandler, bills *BillHandler, auth gin.HandlerFunc) {
	r.GET("/health", payments.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	pay := r.Group("/payment")
	pay.POST("/webhook", payments.Webhook)

	student := pay.Group("", auth)
	student.POST("/initialize", payments.InitializePayment)
	student.GET("/verify/:reference", payments.VerifyPayment)
	student.GET("/balance", payments.GetBalance)
	student.PUT("/pay", payments.PayBill)
	student.GET("/account-statement", payments.GetAccountStatement)
	student.GET("/bills", bills.ListBills)

	staff := r.Group("/bills", auth, middleware.RequireRole(models.RoleStaff, models.RoleAdmin))
	staff.POST("", bills.CreateBill)
	staff.POST("/application-fee", bills.RaiseApplicationFee)
	staff.POST("/semester", bills.RaiseSemesterBills)
	staff.POST("/course-registration", bills.RaiseCourseRegistrationBills)
}
