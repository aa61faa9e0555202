package utils

import (
    "context"
    "errors"
    "fmt"
    "reflect"
    "strings"
    "time"

    "github.com/go-playground/validator"
)

var validate = newValidator()

func newValidator() *validator.Validate {
    v := validator.New()
    // Report json names so messages match the request body.
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" {
            return ""
        }
        return name
    })
    _ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
        return strings.TrimSpace(fl.Field().String()) != ""
    })
    _ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
        _, err := time.Parse("2006-01-02", fl.Field().String())
        return err == nil
    })
    return v
}

// Validate runs struct tag validation and reports the first failing field
// in a form suitable for an API error message.
func Validate(ctx context.Context, s any) error {
    err := validate.StructCtx(ctx, s)
    if err == nil {
        return nil
    }
    var vErrs validator.ValidationErrors
    if !errors.As(err, &vErrs) || len(vErrs) == 0 {
        return err
    }
    fe := vErrs[0]
    field := fe.Field()
    switch fe.Tag() {
    case "required", "notblank":
        return fmt.Errorf("%s is required", field)
    case "max":
        return fmt.Errorf("%s exceeds maximum %s", field, fe.Param())
    case "min":
        return fmt.Errorf("%s is below minimum %s", field, fe.Param())
    case "date":
        return fmt.Errorf("%s must be YYYY-MM-DD", field)
    }
    return fmt.Errorf("%s is invalid", field)
}
