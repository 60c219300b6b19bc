package server

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"foodshare/pkg/domain"
)

// Request bodies keep the field names the web client already sends.

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

type registerRequest struct {
	Username string `json:"username" validate:"max=64"`
	Password string `json:"password" validate:"max=72"`
	Role     string `json:"role"`
	Location string `json:"location" validate:"max=500"`
}

type updateUsernameRequest struct {
	Username string `json:"username" validate:"required,max=64"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,max=72"`
}

type updateAddressRequest struct {
	Address string `json:"address" validate:"max=500"`
}

type createPostRequest struct {
	FoodName       string    `json:"food_name" validate:"required,max=200"`
	ExpirationTime time.Time `json:"expiration_time" validate:"required"`
	Quantity       int       `json:"quantity" validate:"required,gt=0"`
	Tags           []string  `json:"tags" validate:"max=20,dive,max=64,excludes=0x2C"`
}

type updatePostRequest struct {
	FoodName       *string    `json:"food_name" validate:"omitempty,max=200"`
	ExpirationTime *time.Time `json:"expiration_time"`
	Quantity       *int       `json:"quantity"`
}

type pickupClaimRequest struct {
	Post string `json:"post" validate:"required"`
}

type deliveryClaimRequest struct {
	Post         string `json:"post" validate:"required"`
	Address      string `json:"address" validate:"required,max=500"`
	Instructions string `json:"instructions" validate:"max=1000"`
}

type acceptDeliveryRequest struct {
	Request string `json:"request" validate:"required"`
}

type sendMessageRequest struct {
	To      string `json:"to" validate:"required"`
	Content string `json:"content" validate:"required,max=2000"`
}

type addTagRequest struct {
	Tag string `json:"tag" validate:"required,max=64,excludes=0x2C"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest runs struct tag validation and reports the first failure as BadValues.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.BadValues("Invalid request: %v", err)
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return domain.BadValues("%s is required!", fe.Field())
	case "max":
		return domain.BadValues("%s must be at most %s long!", fe.Field(), fe.Param())
	case "excludes":
		return domain.BadValues("%s must not contain %q!", fe.Field(), fe.Param())
	case "gt":
		return domain.BadValues("%s must be greater than %s!", fe.Field(), fe.Param())
	default:
		return domain.BadValues("%s is invalid!", fe.Field())
	}
}
