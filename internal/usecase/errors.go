package usecase

import (
	"errors"
	"fmt"
)

// エラーの種類（Handlerがステータスコードに変換する）
type ErrorKind string

const (
	//404 カート・明細・チェックアウト・バリアントが無い、または期限切れ
	KindNotFound ErrorKind = "not_found"
	//400 数量・住所・email の形式不正
	KindValidation ErrorKind = "validation"
	//409 在庫不足・遷移順序違反・支払い未完了など
	KindBusiness ErrorKind = "business"
	//409 一意制約
	KindConflict ErrorKind = "conflict"
	//500
	KindInternal ErrorKind = "internal"
)

// 業務エラーのコード
const (
	CodeNotFound                = "NOT_FOUND"
	CodeCheckoutExpired         = "CHECKOUT_EXPIRED"
	CodeValidation              = "VALIDATION_ERROR"
	CodeInvalidQuantity         = "INVALID_QUANTITY"
	CodeInvalidAddress          = "INVALID_ADDRESS"
	CodeInvalidEmail            = "INVALID_EMAIL"
	CodeOutOfStock              = "OUT_OF_STOCK"
	CodeVariantUnavailable      = "VARIANT_UNAVAILABLE"
	CodeCartNotActive           = "CART_NOT_ACTIVE"
	CodeCartInvalid             = "CART_INVALID"
	CodeCheckoutInProgress      = "CHECKOUT_IN_PROGRESS"
	CodeAddressRequired         = "ADDRESS_REQUIRED"
	CodeShippingMethodRequired  = "SHIPPING_METHOD_REQUIRED"
	CodeUnknownShippingMethod   = "UNKNOWN_SHIPPING_METHOD"
	CodePaymentRequired         = "PAYMENT_REQUIRED"
	CodePaymentAlreadyProcessed = "PAYMENT_ALREADY_PROCESSED"
	CodePaymentFailed           = "PAYMENT_FAILED"
	CodePaymentNotCompleted     = "PAYMENT_NOT_COMPLETED"
	CodeCheckoutCompleted       = "CHECKOUT_COMPLETED"
	CodeCheckoutCancelled       = "CHECKOUT_CANCELLED"
	CodeInvalidTransition       = "INVALID_TRANSITION"
	CodeMergeNotAllowed         = "MERGE_NOT_ALLOWED"
	CodeConflict                = "CONFLICT"
	CodeInternal                = "INTERNAL_ERROR"
)

// Commit 対象の引当が台帳に無い。業務エラーではなく不変条件違反。
var ErrCommitWithoutReservation = errors.New("commit without reservation")

type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s(%s): %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s(%s): %s", e.Kind, e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewNotFound(message string) error {
	return &AppError{Kind: KindNotFound, Code: CodeNotFound, Message: message}
}

func NewValidation(code string, message string) error {
	return &AppError{Kind: KindValidation, Code: code, Message: message}
}

func NewBusiness(code string, message string) error {
	return &AppError{Kind: KindBusiness, Code: code, Message: message}
}

func NewConflict(message string, err error) error {
	return &AppError{Kind: KindConflict, Code: CodeConflict, Message: message, Err: err}
}

// DBや外部サービスの失敗。原因は Err に残す。
func NewInternal(message string, err error) error {
	return &AppError{Kind: KindInternal, Code: CodeInternal, Message: message, Err: err}
}

func newOutOfStock(variantID string) error {
	return &AppError{Kind: KindBusiness, Code: CodeOutOfStock, Message: "out of stock: " + variantID}
}

func newCheckoutExpired() error {
	return &AppError{Kind: KindNotFound, Code: CodeCheckoutExpired, Message: "checkout expired"}
}

func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	ok := errors.As(err, &ae)
	return ae, ok
}

// AppError ならそのまま、それ以外は Internal に包む
func asAppErrorOrInternal(message string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsAppError(err); ok {
		return err
	}
	return NewInternal(message, err)
}

// kind の判定
func IsKind(err error, kind ErrorKind) bool {
	ae, ok := AsAppError(err)
	return ok && ae.Kind == kind
}

// code の判定
func HasCode(err error, code string) bool {
	ae, ok := AsAppError(err)
	return ok && ae.Code == code
}
