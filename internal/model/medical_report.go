package model

import (
	"time"
)

type FileType string

const (
	FileTypePDF   FileType = "pdf"
	FileTypeImage FileType = "image"
	FileTypeOther FileType = "other"
)

type MedicalReport struct {
	ID            int64     `json:"id" db:"id"`
	PatientID     int64     `json:"patientId" db:"patient_id"`
	AppointmentID *int64    `json:"appointmentId,omitempty" db:"appointment_id"`
	FileName      string    `json:"fileName" db:"file_name"`
	FileURL       string    `json:"fileUrl" db:"file_url"`
	FileType      FileType  `json:"fileType" db:"file_type"`
	FileSize      int64     `json:"fileSize" db:"file_size"`
	UploadDate    time.Time `json:"uploadDate" db:"upload_date"`
}

func (r *MedicalReport) Clone() *MedicalReport {
	if r == nil {
		return nil
	}
	c := *r
	if r.AppointmentID != nil {
		id := *r.AppointmentID
		c.AppointmentID = &id
	}
	return &c
}

// FileMeta describes an uploaded file as declared by the client.
type FileMeta struct {
	Name     string
	MIMEType string
	Size     int64
}

type UpdateReportRequest struct {
	FileName      *string `json:"fileName" binding:"omitempty,min=1"`
	AppointmentID *int64  `json:"appointmentId"`
}

type ReportFilter struct {
	PatientID     int64
	AppointmentID int64
}
