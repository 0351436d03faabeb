package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/tournevent/shiplite/internal/domain"
	"github.com/tournevent/shiplite/internal/fulfillment"
	"github.com/tournevent/shiplite/internal/tenant"
	"github.com/tournevent/shiplite/pkg/shipper"
	"github.com/tournevent/shiplite/pkg/storefront"
)

const problemContentType = "application/problem+json"

// Problem is an RFC 7807 problem document. Retryable tells the client
// whether repeating the same request can succeed.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	Retryable bool   `json:"retryable"`

	Code                     string          `json:"code,omitempty"`
	Errors                   []fieldError    `json:"errors,omitempty"`
	FulfillmentOrderStatuses []string        `json:"fulfillmentOrderStatuses,omitempty"`
	Reconciliation           *reconciliation `json:"reconciliation,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type reconciliation struct {
	OrderID        string `json:"orderId"`
	Stage          string `json:"stage"`
	LabelURL       string `json:"labelUrl"`
	TrackingNumber string `json:"trackingNumber"`
	TrackingURL    string `json:"trackingUrl,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	Cost           string `json:"cost"`
}

// errBadRequestBody marks a body that is not valid JSON for the endpoint.
var errBadRequestBody = errors.New("request body is not valid JSON")

func problemType(slug string) string {
	return "/problems/" + slug
}

// problemFor maps an error returned by a service to a problem document.
func problemFor(err error) Problem {
	var (
		verrs  validator.ValidationErrors
		rerr   *fulfillment.ReconciliationNeededError
		nofo   *storefront.NoOpenFulfillmentOrderError
		resErr *tenant.ResolutionError
		se     *shipper.ShipperError
		sfe    *storefront.StorefrontError
	)

	switch {
	case errors.As(err, &verrs):
		p := Problem{
			Type:   problemType("validation-failed"),
			Title:  "Request validation failed",
			Status: http.StatusBadRequest,
		}
		for _, fe := range verrs {
			p.Errors = append(p.Errors, fieldError{Field: fe.Field(), Message: validationMessage(fe)})
		}
		return p

	case errors.Is(err, errBadRequestBody):
		return Problem{
			Type:   problemType("invalid-body"),
			Title:  "Invalid request body",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		}

	case errors.Is(err, tenant.ErrMissingTenant) && !errors.As(err, &resErr):
		return Problem{
			Type:   problemType("missing-shop"),
			Title:  "Shop domain missing",
			Status: http.StatusBadRequest,
			Detail: "set the " + tenant.Header + " header",
		}

	case errors.As(err, &rerr):
		p := Problem{
			Type:      problemType("reconciliation-needed"),
			Title:     "Label purchased but fulfillment not committed",
			Status:    http.StatusConflict,
			Detail:    rerr.Error(),
			Retryable: false,
			Reconciliation: &reconciliation{
				OrderID:        rerr.OrderID,
				Stage:          string(rerr.Stage),
				LabelURL:       rerr.LabelURL,
				TrackingNumber: rerr.TrackingNumber,
				TrackingURL:    rerr.TrackingURL,
				Carrier:        rerr.Carrier,
				Cost:           rerr.Cost.StringFixed(2),
			},
		}
		if errors.As(err, &nofo) {
			p.Status = http.StatusUnprocessableEntity
			p.Code = "no_open_fulfillment_order"
			p.FulfillmentOrderStatuses = nofo.Statuses
		}
		return p

	case errors.As(err, &resErr):
		return Problem{
			Type:   problemType("credential-resolution"),
			Title:  "Shop credential unavailable",
			Status: http.StatusUnauthorized,
			Detail: resErr.Error(),
		}

	case errors.Is(err, domain.ErrOrderNotFound):
		return Problem{
			Type:   problemType("order-not-found"),
			Title:  "Order not found",
			Status: http.StatusNotFound,
		}

	case errors.Is(err, domain.ErrAlreadyFulfilled):
		return Problem{
			Type:   problemType("already-fulfilled"),
			Title:  "Order already fulfilled",
			Status: http.StatusConflict,
		}

	case errors.Is(err, fulfillment.ErrPurchaseInProgress):
		return Problem{
			Type:      problemType("purchase-in-progress"),
			Title:     "Purchase in progress",
			Status:    http.StatusConflict,
			Detail:    err.Error(),
			Retryable: true,
		}

	case errors.As(err, &se):
		return Problem{
			Type:      problemType("rate-provider"),
			Title:     "Rate provider request failed",
			Status:    http.StatusBadGateway,
			Detail:    se.Error(),
			Retryable: shipper.IsRetryable(se),
			Code:      se.Code,
		}

	case errors.As(err, &sfe):
		return Problem{
			Type:   problemType("storefront"),
			Title:  "Storefront request failed",
			Status: http.StatusBadGateway,
			Detail: sfe.Error(),
			Code:   sfe.Code,
		}

	case errors.As(err, &nofo):
		return Problem{
			Type:                     problemType("no-open-fulfillment-order"),
			Title:                    "No open fulfillment order",
			Status:                   http.StatusUnprocessableEntity,
			Detail:                   nofo.Error(),
			FulfillmentOrderStatuses: nofo.Statuses,
		}
	}

	return Problem{
		Type:   problemType("internal"),
		Title:  "Internal server error",
		Status: http.StatusInternalServerError,
	}
}

func writeProblem(w http.ResponseWriter, r *http.Request, p Problem) {
	p.Instance = r.URL.Path
	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "gte":
		return "Must be greater than or equal to " + fe.Param()
	case "gt":
		return "Must be greater than " + fe.Param()
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	case "oneof":
		return "Must be one of: " + fe.Param()
	default:
		return "Invalid value"
	}
}
