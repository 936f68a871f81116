package forms

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var validatorOnce sync.Once
var validate *validator.Validate

// Validator returns the shared validator. Struct rules live in the "binding"
// tag and errors are reported with the yaml, then json, field name.
func Validator() *validator.Validate {
	validatorOnce.Do(func() {
		validate = validator.New()
		validate.SetTagName("binding")

		if err := validate.RegisterValidation("iso8601", iso8601); err != nil {
			panic(fmt.Sprintf("register iso8601: %v", err))
		}
		if err := validate.RegisterValidation("natural_key", naturalKey); err != nil {
			panic(fmt.Sprintf("register natural_key: %v", err))
		}

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"yaml", "json"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
	})
	return validate
}

// ValidateStruct validates obj when it is a struct or a pointer to one.
func ValidateStruct(obj interface{}) error {
	if kindOfData(obj) == reflect.Struct {
		if err := Validator().Struct(obj); err != nil {
			return err
		}
	}
	return nil
}

func kindOfData(data interface{}) reflect.Kind {
	value := reflect.ValueOf(data)
	valueType := value.Kind()

	if valueType == reflect.Ptr {
		valueType = value.Elem().Kind()
	}
	return valueType
}

func iso8601(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	_, err := time.Parse(time.RFC3339, fl.Field().String())
	return err == nil
}

// naturalKey accepts "app_label.model" pairs.
func naturalKey(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	parts := strings.Split(fl.Field().String(), ".")
	return len(parts) == 2 && parts[0] != "" && parts[1] != ""
}

// ErrorToString turns a validator error into a readable message.
func ErrorToString(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return fmt.Sprintf("this field cannot be longer than %s", e.Param())
	case "min":
		return fmt.Sprintf("this field must be at least %s", e.Param())
	case "len":
		return fmt.Sprintf("this field must be %s characters long", e.Param())
	case "iso8601":
		return fmt.Sprintf("wrong datetime entered (%v), use ISO8601 (e.g. %s)", e.Value(), time.RFC3339)
	case "natural_key":
		return "expected app_label.model"
	default:
		return fmt.Sprintf("%s is not valid", e.Field())
	}
}
