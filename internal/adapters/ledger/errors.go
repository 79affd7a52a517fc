package ledger

import (
	"net/http"

	"github.com/pkg/errors"

	blobcore "fairtrace/internal/blob/core"
	"fairtrace/pkg/domain"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeBadRequest        = "bad_request"
	CodeValidation        = "validation"
	CodeNotFound          = "not_found"
	CodeInvalidTransition = "invalid_transition"
	CodeRuleViolation     = "rule_violation"
	CodeChainIntegrity    = "chain_integrity"
	CodeInternal          = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps a service error onto an HTTP status and error code.
func statusFor(err error) (int, string) {
	var (
		validation domain.ValidationError
		notFound   domain.NotFoundError
		transition domain.InvalidTransitionError
		rules      domain.RuleViolationError
		chain      domain.ChainIntegrityError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, CodeValidation
	case errors.As(err, &notFound), errors.Is(err, blobcore.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.As(err, &transition):
		return http.StatusConflict, CodeInvalidTransition
	case errors.As(err, &rules):
		return http.StatusUnprocessableEntity, CodeRuleViolation
	case errors.As(err, &chain):
		return http.StatusInternalServerError, CodeChainIntegrity
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}
