package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"busticket/internal/credential"
	"busticket/internal/domain/route"
	"busticket/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const qrSize = 256

type Handlers struct {
	confirmPaymentUC *usecase.ConfirmPayment
	validateTicketUC *usecase.ValidateTicket
	getTicketUC      *usecase.GetTicket
	routeCatalogUC   *usecase.RouteCatalog
	validate         *validator.Validate
	loc              *time.Location
	logger           *slog.Logger
}

func NewHandlers(
	confirmPaymentUC *usecase.ConfirmPayment,
	validateTicketUC *usecase.ValidateTicket,
	getTicketUC *usecase.GetTicket,
	routeCatalogUC *usecase.RouteCatalog,
	loc *time.Location,
	logger *slog.Logger,
) *Handlers {
	if loc == nil {
		loc = time.UTC
	}
	return &Handlers{
		confirmPaymentUC: confirmPaymentUC,
		validateTicketUC: validateTicketUC,
		getTicketUC:      getTicketUC,
		routeCatalogUC:   routeCatalogUC,
		validate:         validator.New(),
		loc:              loc,
		logger:           logger,
	}
}

type confirmPaymentRequest struct {
	PaymentID              string `json:"payment_id" validate:"required,max=64"`
	OrderID                string `json:"order_id" validate:"omitempty,max=64"`
	Signature              string `json:"signature" validate:"required_with=OrderID"`
	RouteID                string `json:"route_id" validate:"required,uuid"`
	SourceRouteStopID      string `json:"source_route_stop_id" validate:"required,uuid"`
	DestinationRouteStopID string `json:"destination_route_stop_id" validate:"required,uuid,nefield=SourceRouteStopID"`
	Fare                   int64  `json:"fare" validate:"required,gt=0"`
	PassengerMobile        string `json:"passenger_mobile" validate:"required,numeric,len=10"`
	Language               string `json:"language" validate:"omitempty,max=16"`
}

type issueResponse struct {
	TicketID               string    `json:"ticket_id"`
	TicketNumber           string    `json:"ticket_number"`
	CredentialPayload      string    `json:"credential_payload"`
	ExpiresAt              time.Time `json:"expires_at"`
	NotificationStatus     string    `json:"notification_status"`
	Duplicate              bool      `json:"duplicate"`
	ReconciliationRequired bool      `json:"reconciliation_required"`
}

// ConfirmPayment is called by the checkout page once the gateway reports
// success. The ticket is issued only after server-side verification.
func (h *Handlers) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), PaymentID: req.PaymentID})
		return
	}

	res, err := h.confirmPaymentUC.Execute(r.Context(), usecase.ConfirmPaymentParams{
		PaymentID:              req.PaymentID,
		OrderID:                req.OrderID,
		Signature:              req.Signature,
		RouteID:                req.RouteID,
		SourceRouteStopID:      req.SourceRouteStopID,
		DestinationRouteStopID: req.DestinationRouteStopID,
		Fare:                   req.Fare,
		PassengerMobile:        req.PassengerMobile,
		Language:               req.Language,
	})
	if err != nil {
		status := http.StatusInternalServerError
		msg := "ticket could not be issued, quote the payment id to support"
		switch {
		case errors.Is(err, usecase.ErrInvalidJourney):
			status, msg = http.StatusBadRequest, err.Error()
		case errors.Is(err, usecase.ErrPaymentUnconfirmed):
			status, msg = http.StatusPaymentRequired, "payment could not be confirmed"
		case errors.Is(err, usecase.ErrGatewayUnavailable):
			status, msg = http.StatusServiceUnavailable, "payment received but ticket generation failed, retry shortly"
			h.logger.Error("confirm payment failed", "payment_id", req.PaymentID, "error", err)
		default:
			h.logger.Error("confirm payment failed", "payment_id", req.PaymentID, "error", err)
		}
		writeJSON(w, status, errorResponse{Error: msg, PaymentID: req.PaymentID})
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, issueResponse{
		TicketID:               res.Ticket.ID,
		TicketNumber:           res.Ticket.Number,
		CredentialPayload:      res.Ticket.CredentialPayload,
		ExpiresAt:              res.Ticket.ExpiresAt,
		NotificationStatus:     string(res.NotificationStatus),
		Duplicate:              res.Duplicate,
		ReconciliationRequired: res.ReconciliationRequired,
	})
}

type verifyRequest struct {
	Payload string `json:"payload" validate:"required"`
}

type verifyResponse struct {
	Outcome      string    `json:"outcome"`
	TicketNumber string    `json:"ticket_number,omitempty"`
	RouteNumber  string    `json:"route_number,omitempty"`
	Source       string    `json:"source_stop,omitempty"`
	Destination  string    `json:"destination_stop,omitempty"`
	Fare         int64     `json:"fare,omitempty"`
	ScanCount    int       `json:"scan_count"`
	MaxScans     int       `json:"max_scans"`
	ScanNumber   int       `json:"scan_number,omitempty"`
	Final        bool      `json:"final"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	VerifiedAt   time.Time `json:"verified_at"`
}

// VerifyLink serves the URL inside the QR code. Conductors' scanners open it
// directly, so HTML is the default; Accept: application/json gets JSON.
func (h *Handlers) VerifyLink(w http.ResponseWriter, r *http.Request) {
	payload := r.URL.Query().Get(credential.TokenParam)
	h.verify(w, r, payload, wantsJSON(r))
}

// Verify is the scanner-app entry point: the raw QR payload in a JSON body.
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.verify(w, r, req.Payload, true)
}

func (h *Handlers) verify(w http.ResponseWriter, r *http.Request, payload string, asJSON bool) {
	noCache(w)

	res, err := h.validateTicketUC.Execute(r.Context(), payload)
	if err != nil {
		h.logger.Error("verify ticket failed", "error", err)
		if asJSON {
			writeError(w, http.StatusInternalServerError, "verification failed")
			return
		}
		http.Error(w, "An error occurred while verifying the ticket", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if res.Outcome == usecase.OutcomeNotFound {
		status = http.StatusNotFound
	}

	if asJSON {
		resp := verifyResponse{
			Outcome:    string(res.Outcome),
			MaxScans:   res.MaxScans,
			ScanNumber: res.ScanNumber,
			Final:      res.Final,
			VerifiedAt: res.VerifiedAt,
		}
		if t := res.Ticket; t != nil {
			resp.TicketNumber = t.Number
			resp.RouteNumber = t.RouteNumber
			resp.Source = t.SourceStopName
			resp.Destination = t.DestinationStopName
			resp.Fare = t.Fare
			resp.ScanCount = t.ScanCount
			resp.ExpiresAt = t.ExpiresAt
		}
		writeJSON(w, status, resp)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := renderVerifyPage(w, newVerifyPage(res, h.loc)); err != nil {
		h.logger.Error("render verify page", "error", err)
	}
}

func (h *Handlers) GetTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing ticket id")
		return
	}

	view, err := h.getTicketUC.Execute(r.Context(), id)
	if err != nil {
		if errors.Is(err, usecase.ErrTicketNotFound) {
			writeError(w, http.StatusNotFound, "ticket not found")
			return
		}
		h.logger.Error("get ticket failed", "ticket_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	noCache(w)
	writeJSON(w, http.StatusOK, view)
}

// GetTicketQR renders the credential as a PNG for the passenger's screen.
func (h *Handlers) GetTicketQR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := h.getTicketUC.Details(r.Context(), id)
	if err != nil {
		if errors.Is(err, usecase.ErrTicketNotFound) {
			writeError(w, http.StatusNotFound, "ticket not found")
			return
		}
		h.logger.Error("get ticket failed", "ticket_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	size := qrSize
	if s, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && s >= 64 && s <= 1024 {
		size = s
	}

	png, err := credential.QRCode(d.CredentialPayload, size)
	if err != nil {
		h.logger.Error("render qr code", "ticket_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handlers) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.routeCatalogUC.ListRoutes(r.Context())
	if err != nil {
		h.logger.Error("list routes failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if routes == nil {
		routes = []*route.Route{}
	}
	writeJSON(w, http.StatusOK, routes)
}

func (h *Handlers) ListRouteStops(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stops, err := h.routeCatalogUC.GetRouteStops(r.Context(), id)
	if err != nil {
		if errors.Is(err, usecase.ErrRouteNotFound) {
			writeError(w, http.StatusNotFound, "route not found")
			return
		}
		h.logger.Error("list route stops failed", "route_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if stops == nil {
		stops = []*route.RouteStop{}
	}
	writeJSON(w, http.StatusOK, stops)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
