package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/tournevent/shiplite/internal/domain"
	"github.com/tournevent/shiplite/internal/tenant"
	"github.com/tournevent/shiplite/pkg/shipper"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report JSON names in field errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequestBody, err)
	}
	return s.validate.Struct(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail writes the problem for err and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	p := problemFor(err)
	if p.Status >= http.StatusInternalServerError {
		s.logger.Ctx(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", p.Status),
			zap.Error(err),
		)
	}
	writeProblem(w, r, p)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Sync.SyncOrders(r.Context(), tenant.IDFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Imported: res.Imported, Failed: res.Failed})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	status := domain.FulfillmentStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeProblem(w, r, Problem{
			Type:   problemType("validation-failed"),
			Title:  "Request validation failed",
			Status: http.StatusBadRequest,
			Errors: []fieldError{{Field: "status", Message: "Must be one of: unfulfilled fulfilled"}},
		})
		return
	}

	orders, err := s.deps.Orders.List(r.Context(), tenant.IDFrom(r.Context()), status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, newOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOrderEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.deps.Fulfillment.Events(r.Context(), tenant.IDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			Stage:          string(e.Stage),
			TrackingNumber: e.TrackingNumber,
			LabelURL:       e.LabelURL,
			Carrier:        e.Carrier,
			Cost:           e.Cost,
			Detail:         e.Detail,
			At:             e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	var req ratesRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	quote, err := s.deps.Fulfillment.GetRates(r.Context(), tenant.IDFrom(r.Context()), req.OrderID, shipper.Parcel{
		Length: req.Length,
		Width:  req.Width,
		Height: req.Height,
		Weight: req.Weight,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRatesResponse(quote))
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	order, err := s.deps.Fulfillment.PurchaseLabelAndFulfill(r.Context(), tenant.IDFrom(r.Context()), req.OrderID, req.ShipmentID, req.RateID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := buyResponse{Success: true, Order: newOrderResponse(order)}
	if order.Tracking != nil {
		resp.LabelURL = order.Tracking.LabelURL
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	sf, err := s.deps.Settings.Get(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsBody{ShipFrom: newShipFromBody(sf)})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsBody
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	saved, err := s.deps.Settings.Put(r.Context(), req.ShipFrom.toDomain())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsBody{ShipFrom: newShipFromBody(saved)})
}
