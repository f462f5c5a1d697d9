package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"konnect/internal/domain"
)

// apiErrorf aborts c with code and an ErrorResponse body.
func apiErrorf(c *gin.Context, code int, format string, args ...interface{}) {
	c.AbortWithStatusJSON(code, domain.ErrorResponse{Error: fmt.Sprintf(format, args...)})
}

// bindError answers a failed ShouldBindJSON with 400 and a readable reason.
func bindError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		apiErrorf(c, http.StatusBadRequest, "%s", validatorErrorToUser(ve))
		return
	}
	apiErrorf(c, http.StatusBadRequest, "invalid request body: %s", err)
}

func validatorErrorToUser(errs validator.ValidationErrors) string {
	var msgs []string
	for _, err := range errs {
		switch err.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", err.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("validation failed on field %s", err.Field()))
		}
	}
	return strings.Join(msgs, ". ")
}
