package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	appErrors "github.com/trinity-shop/trinity-platform/internal/errors"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/internal/services"
	"github.com/trinity-shop/trinity-platform/internal/utils/response"
)

type UserHandler struct {
	userService service.UserService
	validator   *validator.Validate
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
		validator:   validator.New(),
	}
}

func (h *UserHandler) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.RegisterRequest
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}

		user, err := h.userService.Register(r.Context(), &req)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusCreated, user)
	}
}

func (h *UserHandler) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}

		result, err := h.userService.Login(r.Context(), &req)
		if err != nil {
			// Failed logins still carry rate-limit context in the body.
			if result != nil {
				statusCode := http.StatusUnauthorized

				var appErr *appErrors.AppError
				if errors.As(err, &appErr) {
					statusCode = appErr.StatusCode
				}

				response.WriteJson(w, statusCode, result)

				return
			}

			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, result)
	}
}

func (h *UserHandler) GetProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromRequest(w, r)
		if !ok {
			return
		}

		user, err := h.userService.GetProfile(r.Context(), claims.UserID)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, user)
	}
}
