package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Bill is an amount owed by a student, denominated in USD. Bills are never
// deleted and never change again once paid.
type Bill struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	StudentID   string          `gorm:"column:student_id;type:varchar(64);not null;index" json:"studentId"`
	Type        BillType        `gorm:"column:type;type:varchar(40);not null" json:"type"`
	Description string          `gorm:"column:description" json:"description"`
	AmountUSD   decimal.Decimal `gorm:"column:amount_usd;type:numeric(14,2);not null" json:"amountUsd"`
	DueDate     *time.Time      `gorm:"column:due_date" json:"dueDate,omitempty"`

	IsPaid          bool       `gorm:"column:is_paid;not null;default:false;index" json:"isPaid"`
	PaidAt          *time.Time `gorm:"column:paid_at" json:"paidAt"`
	ReferenceNumber *string    `gorm:"column:reference_number;uniqueIndex" json:"referenceNumber"`

	AcademicSessionID *uuid.UUID `gorm:"column:academic_session_id;type:uuid;index" json:"academicSessionId,omitempty"`
	SemesterCourseID  *uuid.UUID `gorm:"column:semester_course_id;type:uuid;uniqueIndex" json:"semesterCourseId,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`

	Student *Student `gorm:"foreignKey:StudentID;references:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}

func (Bill) TableName() string { return "bills" }

func (b *Bill) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Payment is an attempted or completed deposit through the gateway,
// denominated in NGN.
type Payment struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Reference   string          `gorm:"column:reference;not null;uniqueIndex" json:"reference"`
	StudentID   string          `gorm:"column:student_id;type:varchar(64);not null;index" json:"studentId"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Currency    Currency        `gorm:"column:currency;type:varchar(8);not null;default:NGN" json:"currency"`
	AccessCode  string          `gorm:"column:access_code;not null" json:"accessCode"`
	Channel     PaymentChannel  `gorm:"column:channel;type:varchar(20);not null;default:paystack" json:"channel"`
	Status      PaymentStatus   `gorm:"column:status;type:varchar(16);not null;default:pending;index" json:"status"`
	PaidAt      *time.Time      `gorm:"column:paid_at" json:"paidAt"`
	Description string          `gorm:"column:description;not null" json:"description"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	Student *Student `gorm:"foreignKey:StudentID;references:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Student is the slice of the student record the billing core reads and locks.
type Student struct {
	UserID          string          `gorm:"column:user_id;type:varchar(64);primaryKey" json:"userId"`
	Email           string          `gorm:"column:email;not null;uniqueIndex" json:"email"`
	FirstName       string          `gorm:"column:first_name" json:"firstName"`
	LastName        string          `gorm:"column:last_name" json:"lastName"`
	AdmissionStatus AdmissionStatus `gorm:"column:admission_status;type:varchar(32);not null;default:application" json:"admissionStatus"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (Student) TableName() string { return "students" }

// SemesterCourse links a student's academic session to a course. Its IsPaid
// flag unlocks enrollment once the matching course registration bill settles.
type SemesterCourse struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AcademicSessionID uuid.UUID `gorm:"column:academic_session_id;type:uuid;not null;index" json:"academicSessionId"`
	CourseID          uuid.UUID `gorm:"column:course_id;type:uuid;not null" json:"courseId"`
	IsPaid            bool      `gorm:"column:is_paid;not null;default:false" json:"isPaid"`
	IsEnrolled        bool      `gorm:"column:is_enrolled;not null;default:false" json:"isEnrolled"`
	IsCompleted       bool      `gorm:"column:is_completed;not null;default:false" json:"isCompleted"`
}

func (SemesterCourse) TableName() string { return "semester_courses" }

func (s *SemesterCourse) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Gateway event processing states.
const (
	GatewayEventReceived  = "received"
	GatewayEventProcessed = "processed"
	GatewayEventIgnored   = "ignored"
	GatewayEventFailed    = "failed"
)

// GatewayEvent is a raw webhook delivery kept for audit and replay.
type GatewayEvent struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Provider    PaymentChannel `gorm:"column:provider;type:varchar(20);not null" json:"provider"`
	Event       string         `gorm:"column:event;not null" json:"event"`
	Reference   string         `gorm:"column:reference;index" json:"reference"`
	Payload     datatypes.JSON `gorm:"column:payload" json:"payload"`
	Status      string         `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Error       *string        `gorm:"column:error" json:"error,omitempty"`
	ReceivedAt  time.Time      `gorm:"column:received_at;autoCreateTime" json:"receivedAt"`
	ProcessedAt *time.Time     `gorm:"column:processed_at" json:"processedAt,omitempty"`
}

func (GatewayEvent) TableName() string { return "payment_gateway_events" }

func (e *GatewayEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
