package controllers

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "checkout-service/common/errors"
	"checkout-service/models"
)

var registerOnce sync.Once

// RegisterValidators adds the payment_method and payment_status binding
// tags to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
			return models.PaymentMethod(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("payment_status", func(fl validator.FieldLevel) bool {
			return models.PaymentStatus(fl.Field().String()).Valid()
		})
	})
}

// bindError turns a ShouldBindJSON failure into a validation error naming
// the first offending field.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.Validation("Invalid request body")
	}
	fe := verrs[0]
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return apperrors.Validation(field + " is required")
	case "email":
		return apperrors.Validation(field + " must be a valid email")
	case "url":
		return apperrors.Validation(field + " must be a valid URL")
	case "payment_method":
		return apperrors.Validation("paymentMethod must be one of cash, bank, payos, paypal, metamask")
	case "payment_status":
		return apperrors.Validation("paymentStatus must be one of pending, paid, failed")
	}
	return apperrors.Validation(fmt.Sprintf("%s is invalid", field))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	// OrderID -> orderId to match the JSON names
	s = strings.Replace(s, "ID", "Id", 1)
	return strings.ToLower(s[:1]) + s[1:]
}
