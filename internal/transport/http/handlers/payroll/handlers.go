package payrollhandler

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"erp/internal/domain/payroll"
	"erp/internal/transport/http/api"
	"erp/internal/transport/http/middleware"
)

type Handler struct {
	Service  *payroll.Service
	Solver   payroll.Solver
	Validate *validator.Validate
}

func NewHandler(service *payroll.Service, solver payroll.Solver) *Handler {
	return &Handler{
		Service:  service,
		Solver:   solver,
		Validate: validator.New(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.Get("/runs", h.handleListRuns)
		r.Post("/runs", h.handleCreateRun)
		r.Get("/runs/{runID}", h.handleGetRun)
		r.Patch("/runs/{runID}/slips/{slipID}", h.handleEditSlip)
		r.Post("/runs/{runID}/confirm", h.handleConfirmRun)
		r.Post("/runs/{runID}/cancel", h.handleCancelRun)
		r.Get("/runs/{runID}/register.csv", h.handleExportRegister)
		r.Get("/runs/{runID}/slips/{slipID}/payslip.pdf", h.handlePayslipPDF)
		r.Post("/solve-basic", h.handleSolveBasic)
	})
}

type createRunPayload struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Year  int `json:"year" validate:"required,min=2000,max=2100"`
}

type editSlipPayload struct {
	PayableDays     *decimal.Decimal `json:"payableDays"`
	Advances        *decimal.Decimal `json:"advances"`
	OtherDeductions *decimal.Decimal `json:"otherDeductions"`
}

type solveBasicPayload struct {
	TargetInHand   float64 `json:"targetInHand" validate:"required,gt=0"`
	PFApplicable   bool    `json:"pfApplicable"`
	ESICApplicable bool    `json:"esicApplicable"`
	PTApplicable   bool    `json:"ptApplicable"`
}

type runWithSlips struct {
	payroll.Run
	Slips []payroll.Slip `json:"slips"`
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Service.ListRuns(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var payload createRunPayload
	if !h.decode(w, r, &payload) {
		return
	}
	run, err := h.Service.CreateRun(r.Context(), payload.Month, payload.Year, actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Created(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, slips, err := h.Service.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, runWithSlips{Run: run, Slips: slips}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEditSlip(w http.ResponseWriter, r *http.Request) {
	var payload editSlipPayload
	if !h.decode(w, r, &payload) {
		return
	}
	slip, err := h.Service.EditSlip(r.Context(), chi.URLParam(r, "runID"), chi.URLParam(r, "slipID"), payroll.SlipPatch{
		PayableDays:     payload.PayableDays,
		Advances:        payload.Advances,
		OtherDeductions: payload.OtherDeductions,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, slip, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleConfirmRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Service.Confirm(r.Context(), chi.URLParam(r, "runID"), actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Service.Cancel(r.Context(), chi.URLParam(r, "runID"), actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSolveBasic(w http.ResponseWriter, r *http.Request) {
	var payload solveBasicPayload
	if !h.decode(w, r, &payload) {
		return
	}
	req := payroll.SolveRequest{
		TargetInHand:   decimal.NewFromFloat(payload.TargetInHand),
		PFApplicable:   payload.PFApplicable,
		ESICApplicable: payload.ESICApplicable,
		PTApplicable:   payload.PTApplicable,
	}
	basic := h.Solver.SolveBasic(req)
	breakdown := payroll.Calculate(payroll.CalcInput{
		BasicSalary:    basic,
		PFApplicable:   payload.PFApplicable,
		ESICApplicable: payload.ESICApplicable,
		PTApplicable:   payload.PTApplicable,
		PayableDays:    decimal.NewFromInt(30),
		DaysInMonth:    30,
	})
	achieved := breakdown.NetPay
	if payload.PFApplicable {
		achieved = achieved.Add(breakdown.PFEmployee)
	}
	api.Success(w, map[string]any{
		"basicSalary":     basic,
		"achievedInHand":  achieved,
		"fullMonthDetail": breakdown,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExportRegister(w http.ResponseWriter, r *http.Request) {
	run, slips, err := h.Service.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// Build the register in memory so a writer error can still become a
	// proper error response instead of a truncated file with a 200.
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	_ = writer.Write([]string{"Employee", "Payable Days", "Gross Earned", "PF", "ESIC", "PT", "Advances", "Other Deductions", "Net Pay", "Employer Cost", "CTC"})
	for _, slip := range slips {
		_ = writer.Write([]string{
			slip.Snapshot.Name,
			slip.PayableDays.String(),
			slip.GrossEarned.StringFixed(2),
			slip.PFEmployee.StringFixed(2),
			slip.ESICEmployee.StringFixed(2),
			slip.PT.StringFixed(2),
			slip.Advances.StringFixed(2),
			slip.OtherDeductions.StringFixed(2),
			slip.NetPay.StringFixed(2),
			slip.TotalEmployerCost.StringFixed(2),
			slip.CostToCompany.StringFixed(2),
		})
	}
	_ = writer.Write([]string{
		"TOTAL", "",
		run.TotalGross.StringFixed(2), "", "", "", "", "",
		run.TotalNetPay.StringFixed(2),
		run.TotalEmployerCost.StringFixed(2), "",
	})
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=payroll-register-%04d-%02d.csv", run.Year, run.Month))
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handlePayslipPDF(w http.ResponseWriter, r *http.Request) {
	run, slip, err := h.Service.SlipWithRun(r.Context(), chi.URLParam(r, "runID"), chi.URLParam(r, "slipID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	period := time.Date(run.Year, time.Month(run.Month), 1, 0, 0, 0, 0, time.UTC)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", slip.Snapshot.Name))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s", period.Format("January 2006")))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Payable Days: %s / %d", slip.PayableDays.String(), slip.DaysInMonth))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Earnings")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	payslipRow(pdf, "Basic", slip.EarnedBasic)
	payslipRow(pdf, "HRA", slip.EarnedHRA)
	payslipRow(pdf, "Allowance", slip.EarnedAllowance)
	payslipRow(pdf, "Gross Earned", slip.GrossEarned)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Deductions")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	payslipRow(pdf, "PF", slip.PFEmployee)
	payslipRow(pdf, "ESIC", slip.ESICEmployee)
	payslipRow(pdf, "PT", slip.PT)
	payslipRow(pdf, "Advances", slip.Advances)
	payslipRow(pdf, "Other", slip.OtherDeductions)
	payslipRow(pdf, "Total Deductions", slip.TotalDeductions)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	payslipRow(pdf, "Net Pay", slip.NetPay)

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=payslip-%s.pdf", slip.ID))
	if err := pdf.Output(w); err != nil {
		h.fail(w, r, err)
	}
}

func payslipRow(pdf *gofpdf.Fpdf, label string, amount decimal.Decimal) {
	pdf.Cell(90, 7, label)
	pdf.CellFormat(40, 7, amount.StringFixed(2), "", 0, "R", false, 0, "")
	pdf.Ln(7)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, payload any) bool {
	reqID := middleware.GetRequestID(r.Context())
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON", reqID)
		return false
	}
	if err := h.Validate.Struct(payload); err != nil {
		api.Fail(w, http.StatusUnprocessableEntity, "validation_failed", err.Error(), reqID)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, payroll.ErrRunNotFound), errors.Is(err, payroll.ErrSlipNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), reqID)
	case errors.Is(err, payroll.ErrRunExists):
		api.Fail(w, http.StatusConflict, "run_exists", err.Error(), reqID)
	case errors.Is(err, payroll.ErrRunNotDraft):
		api.Fail(w, http.StatusConflict, "run_not_draft", err.Error(), reqID)
	case errors.Is(err, payroll.ErrRunCancelled):
		api.Fail(w, http.StatusConflict, "run_cancelled", err.Error(), reqID)
	case errors.Is(err, payroll.ErrInvalidPeriod),
		errors.Is(err, payroll.ErrInvalidPayableDays),
		errors.Is(err, payroll.ErrNegativeAmount),
		errors.Is(err, payroll.ErrNoActiveEmployees):
		api.Fail(w, http.StatusUnprocessableEntity, "validation_failed", err.Error(), reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "internal_error", "something went wrong", reqID)
	}
}

func actor(r *http.Request) string {
	if who := r.Header.Get("X-Actor"); who != "" {
		return who
	}
	return "system"
}
