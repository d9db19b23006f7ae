package utils

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// decimals validate as float64 so gt=0, gte=0, lte=100 work on money and rates
		validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
			if d, ok := v.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
		// dp=N caps decimal places so a value survives the decimal(20,4) columns
		// unchanged, e.g. dp=2 for money
		_ = validate.RegisterValidation("dp", func(fl validator.FieldLevel) bool {
			places, err := strconv.Atoi(fl.Param())
			if err != nil {
				return false
			}
			if fl.Field().Kind() != reflect.Float64 {
				return false
			}
			return -decimal.NewFromFloat(fl.Field().Float()).Exponent() <= int32(places)
		})
	})
	return validate
}

// ValidateStruct runs the `validate` tags of an input struct and returns a
// ValidationError naming the first offending field, e.g. invalid_quantity.
func ValidateStruct(input any) error {
	err := getValidator().Struct(input)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return NewValidationError("invalid_input", "%v", err)
	}
	fields := ProcessValidationErrors(ves)
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	first := ves[0]
	msgs := make([]string, 0, len(names))
	for _, n := range names {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", n, fields[n]))
	}
	return &Error{
		Kind:    KindValidation,
		Rule:    "invalid_" + ToSnakeCase(first.Field()),
		Message: strings.Join(msgs, "; "),
		Err:     err,
	}
}
