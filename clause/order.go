package clause

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOrder is returned when an ordering cannot be parsed.
var ErrInvalidOrder = errors.New("trove: invalid order")

// Direction is the sort direction of an ordering.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Order sorts query results by the value at Path.
type Order struct {
	Path      string
	Direction Direction
}

// Ascending orders by path, lowest value first.
func Ascending(path string) Order { return Order{Path: path, Direction: Asc} }

// Descending orders by path, highest value first.
func Descending(path string) Order { return Order{Path: path, Direction: Desc} }

// ParseOrder parses "path" or "path:asc|desc".
func ParseOrder(s string) (Order, error) {
	path, dir, found := strings.Cut(strings.TrimSpace(s), ":")
	if path == "" {
		return Order{}, fmt.Errorf("%w: empty path", ErrInvalidOrder)
	}
	if !found {
		return Ascending(path), nil
	}
	switch Direction(strings.ToLower(dir)) {
	case Asc:
		return Ascending(path), nil
	case Desc:
		return Descending(path), nil
	default:
		return Order{}, fmt.Errorf("%w: direction %q", ErrInvalidOrder, dir)
	}
}

// Validate reports an empty path or an unknown direction.
func (o Order) Validate() error {
	if o.Path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidOrder)
	}
	if o.Direction != Asc && o.Direction != Desc {
		return fmt.Errorf("%w: direction %q", ErrInvalidOrder, o.Direction)
	}
	return nil
}
