package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"photobooth/internal/domain"
	"photobooth/internal/i18n"
	"photobooth/internal/middleware"
)

// Print spools the uploaded photo to the kiosk printer. A printer failure
// still answers 200 with printed=false.
func (a *App) Print(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload())
	if err := r.ParseMultipartForm(a.maxUpload()); err != nil {
		a.error(w, r, domain.Invalid("No file part in the request"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, r, domain.Invalid("No file part in the request"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		a.error(w, r, domain.Invalid("No file part in the request"))
		return
	}
	copies := 1
	if raw := strings.TrimSpace(r.FormValue("copies")); raw != "" {
		copies, err = strconv.Atoi(raw)
		if err != nil {
			a.error(w, r, domain.Invalid("copies must be a number"))
			return
		}
	}
	job, err := a.Printer.Submit(r.Context(), header.Filename, data, copies)
	if err != nil {
		a.error(w, r, err)
		return
	}
	out := *job
	out.Message = i18n.T(middleware.LocaleFromContext(r.Context()), job.Message)
	a.json(w, http.StatusOK, out)
}

type purchaseRequest struct {
	AmountHalalah int64 `json:"amount_halalah"`
}

func (a *App) PaymentsCheck(w http.ResponseWriter, r *http.Request) {
	a.extendWriteDeadline(w, a.PaymentTimeout)
	res, err := a.Payments.CheckConnection(r.Context())
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"result": res})
}

func (a *App) PaymentsPurchase(w http.ResponseWriter, r *http.Request) {
	a.extendWriteDeadline(w, a.PaymentTimeout)
	var req purchaseRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Payments.Purchase(r.Context(), req.AmountHalalah)
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"result": res, "amount_halalah": req.AmountHalalah})
}
