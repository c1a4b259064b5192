// Package validation runs the form schemas declared with `validate` struct
// tags on the request models and renders Greek messages per field.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	usernameRe   = regexp.MustCompile(`^[a-z0-9_-]{4,25}$`)
	greekPhoneRe = regexp.MustCompile(`^(?:\+30|0030)?\d{10}$`)
	slugRe       = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared, configured validator.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		mustRegister(v, "username", func(fl validator.FieldLevel) bool {
			return usernameRe.MatchString(strings.ToLower(fl.Field().String()))
		})
		mustRegister(v, "greekphone", func(fl validator.FieldLevel) bool {
			return ValidPhone(fl.Field().String())
		})
		mustRegister(v, "slug", func(fl validator.FieldLevel) bool {
			return slugRe.MatchString(fl.Field().String())
		})
		instance = v
	})
	return instance
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// ValidPhone accepts Greek numbers with an optional +30/0030 prefix.
func ValidPhone(s string) bool {
	s = strings.NewReplacer(" ", "", "-", "").Replace(s)
	return greekPhoneRe.MatchString(s)
}

// Struct validates v and returns the first message per field, or nil when v
// is valid.
func Struct(v any) map[string]string {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": msgInvalid}
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := fieldKey(fe)
		if _, ok := out[key]; ok {
			continue
		}
		out[key] = Message(fe)
	}
	return out
}

// fieldKey drops the struct name from the namespace: "ServiceRequest.addons[0].title"
// becomes "addons[0].title".
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// TrimStrings trims surrounding whitespace from every exported string field of
// the struct pointed to by ptr, including strings inside nested structs and
// slices.
func TrimStrings(ptr any) {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return
	}
	trimValue(v.Elem())
}

func trimValue(v reflect.Value) {
	switch v.Kind() {
	case reflect.String:
		if v.CanSet() {
			v.SetString(strings.TrimSpace(v.String()))
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				trimValue(v.Field(i))
			}
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			trimValue(v.Index(i))
		}
	case reflect.Pointer:
		if !v.IsNil() {
			trimValue(v.Elem())
		}
	}
}
