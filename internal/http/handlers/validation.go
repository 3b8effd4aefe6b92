package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/tbourn/go-dental-backend/internal/domain"
	"github.com/tbourn/go-dental-backend/internal/scheduling"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding rules used by request DTOs
// on gin's validator and makes errors report JSON field names:
//
//   - isodate: yyyy-mm-dd calendar date
//   - clock:   HH:mm time of day
//
// Both accept the empty string; pair them with required where needed.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
		_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if s == "" {
				return true
			}
			_, err := time.Parse(domain.DateLayout, s)
			return err == nil
		})
		_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if s == "" {
				return true
			}
			_, err := scheduling.ParseClock(s)
			return err == nil
		})
	})
}

// bindJSON binds the body into dst and answers 400 on failure. Missing
// required fields are reported together under missing_fields.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		failBinding(c, err)
		return false
	}
	return true
}

// bindQuery is bindJSON for query strings.
func bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		failBinding(c, err)
		return false
	}
	return true
}

func failBinding(c *gin.Context, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit))
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	if len(missing) > 0 {
		failWith(c, http.StatusBadRequest, ErrorResponse{
			Code:    ErrCodeMissingFields,
			Message: fmt.Sprintf("%s: required", strings.Join(missing, ", ")),
			Fields:  missing,
		})
		return
	}
	failWith(c, http.StatusBadRequest, ErrorResponse{
		Code:    ErrCodeValidation,
		Message: describe(verrs[0]),
		Fields:  invalid,
	})
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "isodate":
		return fe.Field() + ": must be yyyy-mm-dd"
	case "clock":
		return fe.Field() + ": must be HH:mm"
	case "email":
		return fe.Field() + ": must be a valid email"
	case "oneof":
		return fe.Field() + ": must be one of " + fe.Param()
	case "min", "gte":
		return fe.Field() + ": must be at least " + fe.Param()
	case "max", "lte":
		return fe.Field() + ": must be at most " + fe.Param()
	}
	return fe.Field() + ": invalid"
}
