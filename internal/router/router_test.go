package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-portal/internal/handler"
	appointmentHandler "github.com/jwalitptl/clinic-portal/internal/handler/appointment"
	authHandler "github.com/jwalitptl/clinic-portal/internal/handler/auth"
	calendarHandler "github.com/jwalitptl/clinic-portal/internal/handler/calendar"
	dashboardHandler "github.com/jwalitptl/clinic-portal/internal/handler/dashboard"
	reportHandler "github.com/jwalitptl/clinic-portal/internal/handler/report"
	userHandler "github.com/jwalitptl/clinic-portal/internal/handler/user"
	"github.com/jwalitptl/clinic-portal/internal/middleware"
	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository/memory"
	"github.com/jwalitptl/clinic-portal/internal/router"
	appointmentService "github.com/jwalitptl/clinic-portal/internal/service/appointment"
	authService "github.com/jwalitptl/clinic-portal/internal/service/auth"
	reportService "github.com/jwalitptl/clinic-portal/internal/service/report"
	userService "github.com/jwalitptl/clinic-portal/internal/service/user"
	"github.com/jwalitptl/clinic-portal/pkg/auth"
	"github.com/jwalitptl/clinic-portal/pkg/metrics"
	"github.com/jwalitptl/clinic-portal/pkg/security"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	t        *testing.T
	engine   *gin.Engine
	doctorID int64
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := memory.NewStore()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	now := func() time.Time { return time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC) }

	hash, err := hasher.Hash("doctor123")
	require.NoError(t, err)
	doctor := &model.User{
		Email:          "house@clinic.test",
		PasswordHash:   hash,
		Name:           "Dr. House",
		Phone:          "555-0100",
		Role:           model.RoleDoctor,
		Specialization: "Diagnostics",
		CreatedAt:      now(),
	}
	require.NoError(t, store.Users.Create(context.Background(), doctor))

	tokens, err := auth.NewTokenManager("test-secret", "clinic-portal", time.Now)
	require.NoError(t, err)
	users := userService.NewService(store.Users, hasher)
	sessions := authService.NewService(users, tokens, authService.Config{}, time.Now)
	appointments := appointmentService.NewService(store.Appointments, store.Users, appointmentService.WithClock(now), appointmentService.WithLocation(time.UTC))
	reports := reportService.NewService(store.Reports, store.Users, store.Appointments)

	cfg := router.DefaultRouterConfig()
	cfg.Mode = gin.TestMode
	r := router.NewRouter(
		middleware.NewAuthMiddleware(sessions),
		handler.NewHandler(store.Ping, prometheus.NewRegistry()),
		metrics.NewNop(),
		cfg,
		authHandler.NewHandler(sessions),
		userHandler.NewHandler(users),
		appointmentHandler.NewHandler(appointments),
		reportHandler.NewHandler(reports),
		dashboardHandler.NewHandler(appointments),
		calendarHandler.NewHandler(now, time.UTC),
	)

	return &testAPI{t: t, engine: r.Engine(), doctorID: doctor.ID}
}

func (a *testAPI) do(method, path, token string, body interface{}) (int, envelope) {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, token)
}

func (a *testAPI) send(req *http.Request, token string) (int, envelope) {
	a.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

func (a *testAPI) login(email, password string, role model.Role) string {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": email, "password": password, "role": role})
	require.Equal(a.t, http.StatusOK, code, env.Message)
	var resp model.AuthResponse
	require.NoError(a.t, json.Unmarshal(env.Data, &resp))
	return resp.Token
}

func (a *testAPI) register(email, name string) (string, int64) {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": email, "password": "secret1", "name": name, "phone": "555-0199",
	})
	require.Equal(a.t, http.StatusCreated, code, env.Message)
	var resp model.AuthResponse
	require.NoError(a.t, json.Unmarshal(env.Data, &resp))
	return resp.Token, resp.User.ID
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)

	token, _ := api.register("Jane@Example.com", "Jane Doe")

	code, env := api.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	me := decode[model.User](t, env)
	assert.Equal(t, "Jane Doe", me.Name)
	assert.Equal(t, model.RolePatient, me.Role)

	code, env = api.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "jane@example.com", "password": "secret1", "name": "Other", "phone": "1",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "error", env.Status)

	code, env = api.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email": "jane@example.com", "password": "secret1", "role": "doctor",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid credentials or role", env.Message)

	code, _ = api.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	// Logging out twice is harmless.
	code, _ = api.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email": "not-an-email", "password": "secret1", "name": "X", "phone": "1",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "error", env.Status)
	assert.NotEmpty(t, env.Message)
}

func TestGuestAccess(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(http.MethodPost, "/api/v1/auth/guest", "", nil)
	require.Equal(t, http.StatusOK, code)
	guest := decode[model.AuthResponse](t, env).Token

	code, env = api.do(http.MethodGet, "/api/v1/appointments/services", guest, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]string](t, env), len(model.Services))

	code, env = api.do(http.MethodGet, "/api/v1/doctors", guest, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]model.User](t, env), 1)

	code, _ = api.do(http.MethodGet, "/api/v1/calendar?month=2024-06", guest, nil)
	assert.Equal(t, http.StatusOK, code)

	for _, path := range []string{"/api/v1/appointments", "/api/v1/reports", "/api/v1/users/1"} {
		code, _ = api.do(http.MethodGet, path, guest, nil)
		assert.Equal(t, http.StatusForbidden, code, path)
	}

	code, _ = api.do(http.MethodGet, "/api/v1/appointments/services", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestBookingLifecycle(t *testing.T) {
	api := newTestAPI(t)
	patient, patientID := api.register("pat@example.com", "Pat")
	doctor := api.login("house@clinic.test", "doctor123", model.RoleDoctor)

	booking := gin.H{
		"patientId": patientID,
		"doctorId":  api.doctorID,
		"date":      "2024-06-10",
		"timeSlot":  "9:00 AM",
		"service":   "Follow-up",
	}
	code, env := api.do(http.MethodPost, "/api/v1/appointments", patient, booking)
	require.Equal(t, http.StatusCreated, code, env.Message)
	created := decode[model.Appointment](t, env)
	assert.Equal(t, model.AppointmentStatusUpcoming, created.Status)
	assert.Equal(t, "Dr. House", created.DoctorName)
	assert.Equal(t, "", created.Notes)

	code, env = api.do(http.MethodPost, "/api/v1/appointments", patient, booking)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Time slot is already booked", env.Message)

	code, _ = api.do(http.MethodPost, "/api/v1/appointments", doctor, booking)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = api.do(http.MethodGet, "/api/v1/appointments/available-slots?date=2024-06-10&doctorId="+itoa(api.doctorID), patient, nil)
	require.Equal(t, http.StatusOK, code)
	slots := decode[[]string](t, env)
	assert.Len(t, slots, 11)
	assert.NotContains(t, slots, "9:00 AM")

	code, env = api.do(http.MethodGet, "/api/v1/appointments/today", doctor, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]model.Appointment](t, env), 1)

	path := "/api/v1/appointments/" + itoa(created.ID)
	code, _ = api.do(http.MethodPost, path+"/complete", patient, gin.H{"notes": "self-done"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = api.do(http.MethodPatch, path, patient, gin.H{"notes": "feeling better"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Only doctors can edit appointment notes", env.Message)

	code, env = api.do(http.MethodPatch, path, doctor, gin.H{"notes": "bring prior labs"})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "bring prior labs", decode[model.Appointment](t, env).Notes)

	code, env = api.do(http.MethodPost, path+"/complete", doctor, gin.H{"notes": "All clear"})
	require.Equal(t, http.StatusOK, code, env.Message)
	done := decode[model.Appointment](t, env)
	assert.Equal(t, model.AppointmentStatusCompleted, done.Status)
	assert.Equal(t, "All clear", done.Notes)
	assert.Equal(t, created.TimeSlot, done.TimeSlot)

	code, _ = api.do(http.MethodPost, path+"/cancel", patient, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env = api.do(http.MethodGet, "/api/v1/dashboard/doctor", doctor, nil)
	require.Equal(t, http.StatusOK, code)
	dash := decode[model.DoctorDashboard](t, env)
	assert.Equal(t, 1, dash.CompletedCount)
	assert.Equal(t, 1, dash.TotalPatients)

	code, env = api.do(http.MethodGet, "/api/v1/dashboard/patient", patient, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[model.PatientOverview](t, env).Recent, 1)

	code, _ = api.do(http.MethodGet, "/api/v1/appointments/999", patient, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = api.do(http.MethodGet, "/api/v1/appointments/abc", patient, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPatientsAreScopedToThemselves(t *testing.T) {
	api := newTestAPI(t)
	alice, aliceID := api.register("alice@example.com", "Alice")
	bob, bobID := api.register("bob@example.com", "Bob")

	code, env := api.do(http.MethodPost, "/api/v1/appointments", alice, gin.H{
		"patientId": aliceID, "doctorId": api.doctorID, "date": "2024-06-11",
		"timeSlot": "2:00 PM", "service": "Vaccination",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	id := decode[model.Appointment](t, env).ID

	code, _ = api.do(http.MethodGet, "/api/v1/appointments/"+itoa(id), bob, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = api.do(http.MethodGet, "/api/v1/appointments?patientId="+itoa(aliceID), bob, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = api.do(http.MethodGet, "/api/v1/appointments", bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]model.Appointment](t, env))

	code, _ = api.do(http.MethodPost, "/api/v1/appointments", bob, gin.H{
		"patientId": aliceID, "doctorId": api.doctorID, "date": "2024-06-11",
		"timeSlot": "2:30 PM", "service": "Vaccination",
	})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = api.do(http.MethodPatch, "/api/v1/users/"+itoa(aliceID), bob, gin.H{"name": "Mallory"})
	assert.Equal(t, http.StatusForbidden, code)
	code, env = api.do(http.MethodPatch, "/api/v1/users/"+itoa(bobID), bob, gin.H{"name": "Robert"})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "Robert", decode[model.User](t, env).Name)

	code, _ = api.do(http.MethodGet, "/api/v1/users", bob, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestReportUpload(t *testing.T) {
	api := newTestAPI(t)
	patient, patientID := api.register("pat@example.com", "Pat")
	other, _ := api.register("other@example.com", "Other")

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "../../blood-test.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 results"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	code, env := api.send(req, patient)
	require.Equal(t, http.StatusCreated, code, env.Message)
	report := decode[model.MedicalReport](t, env)
	assert.Equal(t, patientID, report.PatientID)
	assert.Equal(t, "blood-test.pdf", report.FileName)
	assert.Equal(t, "/mock-files/blood-test.pdf", report.FileURL)
	assert.Nil(t, report.AppointmentID)

	code, env = api.do(http.MethodGet, "/api/v1/reports", patient, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]model.MedicalReport](t, env), 1)

	path := "/api/v1/reports/" + itoa(report.ID)
	code, _ = api.do(http.MethodGet, path, other, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = api.do(http.MethodPatch, path, patient, gin.H{"fileName": "renamed.pdf"})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.Equal(t, "renamed.pdf", decode[model.MedicalReport](t, env).FileName)

	code, _ = api.do(http.MethodDelete, path, patient, nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = api.do(http.MethodGet, path, patient, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Report not found", env.Message)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/reports", nil)
	code, _ = api.send(req, patient)
	assert.Equal(t, http.StatusBadRequest, code)
}

func (a *testAPI) upload(token, name string, fields map[string]string) (int, envelope) {
	a.t.Helper()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(a.t, form.WriteField(k, v))
	}
	part, err := form.CreateFormFile("file", name)
	require.NoError(a.t, err)
	_, err = part.Write([]byte("%PDF-1.4 results"))
	require.NoError(a.t, err)
	require.NoError(a.t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	return a.send(req, token)
}

func TestReportUploadChecksAppointment(t *testing.T) {
	api := newTestAPI(t)
	patient, _ := api.register("pat@example.com", "Pat")
	other, otherID := api.register("other@example.com", "Other")
	doctor := api.login("house@clinic.test", "doctor123", model.RoleDoctor)

	code, env := api.do(http.MethodPost, "/api/v1/appointments", other, gin.H{
		"patientId": otherID, "doctorId": api.doctorID, "date": "2024-06-11",
		"timeSlot": "2:00 PM", "service": "Vaccination",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	appointment := decode[model.Appointment](t, env)

	code, env = api.upload(patient, "scan.pdf", map[string]string{"appointmentId": itoa(appointment.ID)})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "appointment belongs to another patient", env.Message)

	code, env = api.upload(doctor, "scan.pdf", map[string]string{"patientId": "4242"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Patient not found", env.Message)

	code, env = api.upload(other, "scan.pdf", map[string]string{"appointmentId": "999"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Appointment not found", env.Message)

	code, env = api.upload(other, "scan.pdf", map[string]string{"appointmentId": itoa(appointment.ID)})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = api.do(http.MethodGet, "/api/v1/reports?appointmentId="+itoa(appointment.ID), doctor, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]model.MedicalReport](t, env), 1)
}

func TestCalendar(t *testing.T) {
	api := newTestAPI(t)
	guest := func() string {
		_, env := api.do(http.MethodPost, "/api/v1/auth/guest", "", nil)
		return decode[model.AuthResponse](t, env).Token
	}()

	code, env := api.do(http.MethodGet, "/api/v1/calendar", guest, nil)
	require.Equal(t, http.StatusOK, code)
	month := decode[model.CalendarMonth](t, env)
	assert.Equal(t, "2024-06", month.Month)
	assert.Len(t, month.Weeks, 6)

	code, _ = api.do(http.MethodGet, "/api/v1/calendar?month=June", guest, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestOpsEndpoints(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(http.MethodGet, "/api/v1/health/live", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", env.Status)

	code, _ = api.do(http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	api.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	api.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))
	assert.Equal(t, router.APIVersion, w.Header().Get(middleware.HeaderAPIVersion))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
