package routing

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRequestID returns an identifier of the form req_<unixNanos>_<random9>.
// The random part is taken from a version 4 UUID.
func NewRequestID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return "req_" + strconv.FormatInt(now.UnixNano(), 10) + "_" + random
}
