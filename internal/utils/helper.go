package utils

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Round2 rounds a money amount to 2 decimal places. Applied after every
// arithmetic step that produces a persisted total, not only at display time,
// so repeated add/update cycles cannot accumulate floating drift.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// NewOrderNumber generates a human-readable order number. The UUID fragment
// keeps two orders created in the same millisecond from colliding on the
// unique order_number column.
func NewOrderNumber() string {
	fragment := strings.ToUpper(uuid.NewString()[:8])

	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), fragment)
}
