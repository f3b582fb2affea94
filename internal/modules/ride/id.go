package ride

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"ridehail/internal/types"
)

// newRideID returns RIDE_<base36 unix millis>_<8 hex>, uppercased.
func newRideID(now time.Time) types.ID {
	var b [4]byte
	_, _ = rand.Read(b[:])
	id := "RIDE_" + strconv.FormatInt(now.UnixMilli(), 36) + "_" + hex.EncodeToString(b[:])
	return types.ID(strings.ToUpper(id))
}
