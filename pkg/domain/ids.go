package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "luwei/pkg/domain-errors"
)

// Typed identifiers. Distinct types keep an account id from being passed where an
// order id is expected.
type (
	AccountID  uuid.UUID
	OrderID    uuid.UUID
	LineItemID uuid.UUID
)

// ProductID is the catalog key of a product (e.g. "wing6"). Unlike the other ids it is
// chosen by the operator, not generated.
type ProductID string

func NewAccountID() AccountID   { return AccountID(uuid.New()) }
func NewOrderID() OrderID       { return OrderID(uuid.New()) }
func NewLineItemID() LineItemID { return LineItemID(uuid.New()) }

func (id AccountID) String() string  { return uuid.UUID(id).String() }
func (id OrderID) String() string    { return uuid.UUID(id).String() }
func (id LineItemID) String() string { return uuid.UUID(id).String() }
func (id ProductID) String() string  { return string(id) }

func (id AccountID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id OrderID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id LineItemID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id AccountID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id OrderID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// ParseAccountID parses an account id at a trust boundary.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account id")
	return AccountID(u), err
}

// ParseOrderID parses an order id at a trust boundary.
func ParseOrderID(s string) (OrderID, error) {
	u, err := parseUUID(s, "order id")
	return OrderID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

var productIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ParseProductID trims and validates a catalog key.
func ParseProductID(s string) (ProductID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "product id cannot be empty")
	}
	if !productIDPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid product id")
	}
	return ProductID(s), nil
}
