package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/arcadehub/users-service/internal/application"
	"github.com/arcadehub/users-service/internal/domain/entity"
	"github.com/arcadehub/users-service/internal/infrastructure/eventstore"
	"github.com/arcadehub/users-service/pkg/response"
	"github.com/arcadehub/users-service/pkg/validation"
)

func isConflict(err error) bool {
	var conflict *eventstore.ConflictError
	return errors.As(err, &conflict)
}

// AccountHandler translates command results into HTTP outcomes: created
// and deleted commands answer 202 because the read model catches up
// asynchronously.
type AccountHandler struct {
	Svc    *application.AccountService
	Logger *logrus.Logger
}

func NewAccountHandler(svc *application.AccountService, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{Svc: svc, Logger: logger}
}

type createAccountRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
}

type authRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func correlationID(c *gin.Context) string { return c.GetString("correlation_id") }

func (h *AccountHandler) Create(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, err := h.Svc.CreateAccount(c.Request.Context(), req.Name, req.Password, req.Email, correlationID(c))
	if err != nil {
		switch {
		case errors.Is(err, application.ErrEmailTaken):
			response.Error[any](c, http.StatusConflict, "email already registered", nil)
		case errors.Is(err, entity.ErrEmptyName), errors.Is(err, entity.ErrInvalidEmail):
			response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
		case isConflict(err):
			response.Error[any](c, http.StatusConflict, "concurrent update, retry", nil)
		default:
			h.Logger.WithError(err).Error("create account failed")
			response.Error[any](c, http.StatusInternalServerError, "could not create account", nil)
		}
		return
	}
	response.Success(c, http.StatusAccepted, res, "account creation accepted")
}

func (h *AccountHandler) Auth(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	ip := c.ClientIP()
	device := c.GetHeader("User-Agent")

	res, err := h.Svc.Authenticate(c.Request.Context(), req.Email, req.Password, ip, device, correlationID(c))
	if err != nil {
		switch {
		case errors.Is(err, application.ErrInvalidCredentials):
			response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
		case errors.Is(err, application.ErrInactiveAccount):
			response.Error[any](c, http.StatusForbidden, "account is inactive", nil)
		case isConflict(err):
			response.Error[any](c, http.StatusConflict, "concurrent update, retry", nil)
		default:
			h.Logger.WithError(err).Error("authentication failed")
			response.Error[any](c, http.StatusInternalServerError, "could not authenticate", nil)
		}
		return
	}
	response.Success(c, http.StatusOK, res, "authenticated")
}

func (h *AccountHandler) Get(c *gin.Context) {
	res, err := h.Svc.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, application.ErrNotFound) {
			response.Error[any](c, http.StatusNotFound, "account not found", nil)
			return
		}
		h.Logger.WithError(err).Error("get account failed")
		response.Error[any](c, http.StatusInternalServerError, "could not load account", nil)
		return
	}
	response.Success(c, http.StatusOK, res, "account")
}

func (h *AccountHandler) List(c *gin.Context) {
	res, err := h.Svc.ListAccounts(c.Request.Context())
	if err != nil {
		h.Logger.WithError(err).Error("list accounts failed")
		response.Error[any](c, http.StatusInternalServerError, "could not list accounts", nil)
		return
	}
	response.Success(c, http.StatusOK, res, "accounts")
}

func (h *AccountHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "missing query", nil)
		return
	}
	res, err := h.Svc.SearchAccounts(c.Request.Context(), q, 10)
	if err != nil {
		h.Logger.WithError(err).Error("search failed")
		response.Error[any](c, http.StatusInternalServerError, "search failed", nil)
		return
	}
	response.Success(c, http.StatusOK, res, "search results")
}

func (h *AccountHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	err := h.Svc.RemoveAccount(c.Request.Context(), id, correlationID(c))
	if err != nil {
		if errors.Is(err, application.ErrNotFound) {
			response.Error[any](c, http.StatusNotFound, "account not found", nil)
			return
		}
		if isConflict(err) {
			response.Error[any](c, http.StatusConflict, "concurrent update, retry", nil)
			return
		}
		h.Logger.WithError(err).Error("delete account failed")
		response.Error[any](c, http.StatusInternalServerError, "could not delete account", nil)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"id": id}, "account deletion accepted")
}
