package model

import (
	"fmt"
	"strings"
)

// カート・チェックアウトの持ち主。
// AnonymousIdentity か CustomerIdentity のどちらか。利用側は type switch で両方を扱う。
type Identity interface {
	isIdentity()
	String() string
}

// ゲスト（セッションID）
type AnonymousIdentity struct {
	SessionID string
}

// ログイン済み顧客
type CustomerIdentity struct {
	CustomerID string
}

func (AnonymousIdentity) isIdentity() {}
func (CustomerIdentity) isIdentity()  {}

func (a AnonymousIdentity) String() string { return "anonymous:" + a.SessionID }
func (c CustomerIdentity) String() string  { return "customer:" + c.CustomerID }

func Anonymous(sessionID string) Identity {
	return AnonymousIdentity{SessionID: strings.TrimSpace(sessionID)}
}

func Identified(customerID string) Identity {
	return CustomerIdentity{CustomerID: strings.TrimSpace(customerID)}
}

// DBに保存する種別
type OwnerKind string

const (
	OwnerKindAnonymous OwnerKind = "ANONYMOUS"
	OwnerKindCustomer  OwnerKind = "CUSTOMER"
)

// Identity を (owner_kind, owner_ref) に分解する。
func OwnerColumns(id Identity) (OwnerKind, string, error) {
	switch v := id.(type) {
	case AnonymousIdentity:
		if v.SessionID == "" {
			return "", "", fmt.Errorf("empty session id")
		}
		return OwnerKindAnonymous, v.SessionID, nil
	case CustomerIdentity:
		if v.CustomerID == "" {
			return "", "", fmt.Errorf("empty customer id")
		}
		return OwnerKindCustomer, v.CustomerID, nil
	case nil:
		return "", "", fmt.Errorf("identity is required")
	default:
		return "", "", fmt.Errorf("unknown identity %T", id)
	}
}

// (owner_kind, owner_ref) から Identity を復元する。
func IdentityFromColumns(kind OwnerKind, ref string) (Identity, error) {
	switch kind {
	case OwnerKindAnonymous:
		return AnonymousIdentity{SessionID: ref}, nil
	case OwnerKindCustomer:
		return CustomerIdentity{CustomerID: ref}, nil
	default:
		return nil, fmt.Errorf("unknown owner kind %q", kind)
	}
}

// 同じ持ち主か
func SameIdentity(a, b Identity) bool {
	ka, ra, errA := OwnerColumns(a)
	kb, rb, errB := OwnerColumns(b)
	if errA != nil || errB != nil {
		return false
	}
	return ka == kb && ra == rb
}
