package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/nikhilbhatia/commitcanvas/internal/pkg/errors"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/utils"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/validator"
)

// decodeAndValidate decodes the request body into dst and runs struct
// validation. It writes the error response itself and reports whether the
// handler should continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, val *validator.Validator, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.WriteError(w, errors.BadRequest("invalid request body"))
		return false
	}
	if errs := val.Validate(dst); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("request validation failed", errs))
		return false
	}
	return true
}

// writeAppError maps any error onto the API error envelope, falling back
// to an internal error for non-application failures.
func writeAppError(w http.ResponseWriter, err error, fallback string) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		utils.WriteError(w, appErr)
		return
	}
	utils.WriteError(w, errors.Internal(fallback, err))
}
