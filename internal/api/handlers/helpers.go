package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/trinity-shop/trinity-platform/internal/api/middleware"
	appErrors "github.com/trinity-shop/trinity-platform/internal/errors"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/internal/utils"
	"github.com/trinity-shop/trinity-platform/internal/utils/response"
)

// claimsFromRequest pulls the authenticated claims placed in the context by
// the auth middleware. A missing value means the route was wired without
// authentication.
func claimsFromRequest(w http.ResponseWriter, r *http.Request) (*models.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, appErrors.UnauthorizedError("Authentication required"))

		return nil, false
	}

	return claims, true
}

// idFromPath parses the {id} path segment as a UUID.
func idFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.PathValue("id")

	id, err := uuid.Parse(raw)
	if err != nil {
		response.Error(w, appErrors.BadRequestError("Invalid id in URL"))

		return uuid.Nil, false
	}

	return id, true
}

// decodeAndValidate decodes the JSON body into dest and runs struct
// validation, writing the error response itself on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dest any) bool {
	if err := utils.DecodeJSONBody(r, dest); err != nil {
		response.Error(w, appErrors.BadRequestError(err.Error()))

		return false
	}

	if err := utils.ValidateStruct(validate, dest); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			response.ValidationError(w, validationErrs)
		} else {
			response.Error(w, appErrors.ValidationError("Invalid request body"))
		}

		return false
	}

	return true
}
