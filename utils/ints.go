package utils

import (
	"golang.org/x/exp/constraints"
)

// Between reports if min <= value <= max
func Between[T constraints.Integer | constraints.Float](value, min, max T) bool {
	return value >= min && value <= max
}
