package domain

import "errors"

// ErrorKind — классификация отказов протокола.
// Используется как label в метриках и для маппинга в HTTP-статусы.
type ErrorKind string

const (
	KindValidation ErrorKind = "VALIDATION"
	KindProof      ErrorKind = "PROOF"
	KindState      ErrorKind = "STATE"
	KindDuplicate  ErrorKind = "DUPLICATE"
	KindNotFound   ErrorKind = "NOT_FOUND"
	KindInternal   ErrorKind = "INTERNAL"
)

// Ошибки протокола авторизации. Любая из них откатывает операцию целиком:
// частичных коммитов в леджере не бывает, ретраи — ответственность вызывающего.
var (
	ErrPolicyFrozen           = errors.New("agent policy is frozen")
	ErrCategoryMismatch       = errors.New("category mismatch between payment and meter")
	ErrInvalidProof           = errors.New("invalid compliance proof")
	ErrAuthorizationUsed      = errors.New("authorization has already been used")
	ErrAuthorizationExpired   = errors.New("authorization has expired")
	ErrWalletRefTooLong       = errors.New("merchant wallet ref too long (max 64 bytes)")
	ErrDuplicateMeter         = errors.New("meter already registered for this endpoint")
	ErrDuplicateAuthorization = errors.New("authorization already issued for this nonce")
	ErrPolicyNotFound         = errors.New("policy not found")
	ErrMeterNotFound          = errors.New("meter not found")
	ErrAuthorizationNotFound  = errors.New("authorization not found")
)

// KindOf возвращает класс ошибки. Неизвестные ошибки считаем внутренними.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrPolicyFrozen),
		errors.Is(err, ErrCategoryMismatch),
		errors.Is(err, ErrWalletRefTooLong):
		return KindValidation
	case errors.Is(err, ErrInvalidProof):
		return KindProof
	case errors.Is(err, ErrAuthorizationUsed),
		errors.Is(err, ErrAuthorizationExpired):
		return KindState
	case errors.Is(err, ErrDuplicateMeter),
		errors.Is(err, ErrDuplicateAuthorization):
		return KindDuplicate
	case errors.Is(err, ErrPolicyNotFound),
		errors.Is(err, ErrMeterNotFound),
		errors.Is(err, ErrAuthorizationNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
