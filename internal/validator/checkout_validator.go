package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	playground "github.com/go-playground/validator/v10"
)

var (
	// 入力が不正
	ErrInvalidInput = errors.New("invalid input")
)

type checkoutValidator struct {
	v *playground.Validate
}

// Usecaseは interface を依存注入
func NewCheckoutValidator() usecase.CheckoutValidator {
	v := playground.New(playground.WithRequiredStructEnabled())
	// エラーメッセージは json 名で返す
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &checkoutValidator{v: v}
}

// 住所を検証
func (c *checkoutValidator) ValidateAddress(a model.Address) error {
	a = trimAddress(a)
	if err := c.v.Struct(a); err != nil {
		return describe(err)
	}
	// 国コードは英大文字2桁
	if strings.ToUpper(a.Country) != a.Country {
		return fmt.Errorf("%w: country must be upper case", ErrInvalidInput)
	}
	return nil
}

// メール形式をチェック
func (c *checkoutValidator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if err := c.v.Var(email, "required,email,max=255"); err != nil {
		return fmt.Errorf("%w: email", ErrInvalidInput)
	}
	return nil
}

func trimAddress(a model.Address) model.Address {
	a.Name = strings.TrimSpace(a.Name)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	a.Region = strings.TrimSpace(a.Region)
	a.City = strings.TrimSpace(a.City)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.Phone = strings.TrimSpace(a.Phone)
	return a
}

// 最初の違反だけ返す
func describe(err error) error {
	var ve playground.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fe := ve[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, fe.Field())
	case "len":
		return fmt.Errorf("%w: %s must be %s characters", ErrInvalidInput, fe.Field(), fe.Param())
	case "max":
		return fmt.Errorf("%w: %s is too long", ErrInvalidInput, fe.Field())
	default:
		return fmt.Errorf("%w: %s is invalid", ErrInvalidInput, fe.Field())
	}
}
