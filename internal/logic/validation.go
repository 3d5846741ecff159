package logic

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/blues/ideamarket/internal/chain"
	"github.com/go-playground/validator/v10"
)

// 请求结构体使用 binding 标签，与 gin 的 ShouldBindJSON 共用同一套规则
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

// RegisterValidations 注册自定义校验标签，并使用 json 名作为字段名
func RegisterValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	rules := map[string]validator.Func{
		// bytes32 链上字符串，按字节计
		"bytes32": func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s != "" && len(s) <= chain.MaxBytes32StringLen
		},
		"evm_address": func(fl validator.FieldLevel) bool {
			return IsAddress(fl.Field().String())
		},
		"tx_hash": func(fl validator.FieldLevel) bool {
			return IsTxHash(fl.Field().String())
		},
		"notblank": func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s validation: %w", tag, err)
		}
	}
	return nil
}

// validateStruct 返回第一个字段错误
func validateStruct(in interface{}) error {
	if errs := FieldErrors(validate.Struct(in)); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// FieldErrors 把 validator 的错误转换为字段级校验结果，其他错误返回 nil
func FieldErrors(err error) []*ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]*ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, &ValidationError{Field: fieldPath(fe), Message: fieldMessage(fe)})
	}
	return out
}

// fieldPath 去掉顶层结构体名，如 CreateIdeaInput.categories[0] -> categories[0]
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	items := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "min":
		if items {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if items {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "bytes32":
		return fmt.Sprintf("must be between 1 and %d bytes", chain.MaxBytes32StringLen)
	case "evm_address":
		return "must match ^0x[a-fA-F0-9]{40}$"
	case "tx_hash":
		return "must match ^0x[a-fA-F0-9]{64}$"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
