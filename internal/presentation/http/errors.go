package httppresentation

import (
	"errors"
	"net/http"

	appOrder "github.com/Zhima-Mochi/minishop-orders/internal/application/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/application/ordernumber"
	domainOrder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
)

type errorResponse struct {
	Error    string                   `json:"error"`
	Code     string                   `json:"code"`
	Fields   []domainOrder.FieldError `json:"fields,omitempty"`
	Products []string                 `json:"products,omitempty"`
}

// writeDomainError maps application errors to status codes. Unknown errors are
// logged and answered with a generic body so internals never leak.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	h.logFailure(r, status, body.Code, err)
	writeJSON(w, status, body)
}

func classify(err error) (int, errorResponse) {
	var (
		verr     *domainOrder.ValidationError
		stockErr *product.InsufficientStockError
		missing  *product.NotFoundError
		genErr   *ordernumber.GenerationError
	)

	switch {
	case errors.Is(err, appOrder.ErrOrderCreationFailed):
		return http.StatusInternalServerError, errorResponse{Error: "order could not be created, please retry", Code: "OrderCreationFailed"}
	case errors.As(err, &genErr):
		return http.StatusInternalServerError, errorResponse{Error: "order number could not be generated, please retry", Code: "GenerationError"}
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorResponse{Error: "request is invalid", Code: "ValidationError", Fields: verr.Fields}
	case errors.As(err, &stockErr):
		return http.StatusConflict, errorResponse{Error: "not enough stock", Code: "InsufficientStock", Products: stockErr.ProductIDs}
	case errors.As(err, &missing):
		return http.StatusNotFound, errorResponse{Error: "product not found", Code: "ProductNotFound", Products: missing.ProductIDs}
	case errors.Is(err, domainOrder.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "order not found", Code: "OrderNotFound"}
	case errors.Is(err, domainOrder.ErrInvalidStatusTransition):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "InvalidStatusTransition"}
	case errors.Is(err, domainOrder.ErrInvalidPaymentTransition):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "InvalidPaymentTransition"}
	case errors.Is(err, domainOrder.ErrConflict):
		return http.StatusConflict, errorResponse{Error: "order was modified concurrently, reload and retry", Code: "Conflict"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "InternalError"}
	}
}
