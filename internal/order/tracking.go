package order

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewTrackingID returns ORD-<base36 unix millis>-<10 random hex chars>, all
// upper case. The random part comes from a v4 uuid, so ids minted in the same
// millisecond still differ.
func NewTrackingID(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:10]
	return "ORD-" + ts + "-" + random
}
