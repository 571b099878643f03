package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/geocoder89/storefront/internal/apperr"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// bindJSON decodes the body into out. An empty body decodes to the zero
// value so the explicit validation step reports missing fields.
func bindJSON(ctx *gin.Context, out interface{}) bool {
	if ctx.Request.Body == nil || ctx.Request.ContentLength == 0 {
		return true
	}

	err := ctx.ShouldBindJSON(out)

	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	fail(ctx, parseBindError(err))
	return false
}

// validateRequest runs the domain validation for req and renders failures
// as a ValidationError carrying per-field details.
func validateRequest(ctx *gin.Context, req any) bool {
	err := user.Validate(req)
	if err == nil {
		return true
	}

	var verrs user.ValidationErrors
	if errors.As(err, &verrs) {
		fail(ctx, apperr.Validation(verrs.Error(), gin.H{"fields": verrs}))
		return false
	}

	fail(ctx, err)
	return false
}

func parseBindError(err error) *apperr.Error {
	var maxBytesError *http.MaxBytesError
	if errors.As(err, &maxBytesError) {
		return apperr.New(apperr.KindBadRequest, "Request body too large")
	}

	var syntaxError *json.SyntaxError
	if errors.As(err, &syntaxError) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &apperr.Error{
			Kind:    apperr.KindBadRequest,
			Message: "Invalid JSON body",
			Details: gin.H{"json": "invalid_json_syntax"},
			Err:     err,
		}
	}

	var unmatchedTypeError *json.UnmarshalTypeError
	if errors.As(err, &unmatchedTypeError) {
		field := strings.TrimSpace(unmatchedTypeError.Field)

		return &apperr.Error{
			Kind:    apperr.KindValidation,
			Message: fmt.Sprintf("%s must be of type %s", field, unmatchedTypeError.Type.String()),
			Details: gin.H{
				"json": "invalid_json_type",
				"fields": []user.FieldError{{
					Field:   field,
					Rule:    "type",
					Message: "must be of type " + unmatchedTypeError.Type.String(),
				}},
			},
			Err: err,
		}
	}

	return &apperr.Error{Kind: apperr.KindBadRequest, Message: "Invalid request body", Err: err}
}
