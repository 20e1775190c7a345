package utils

import (
	"strconv"
	"time"
)

// GeneratePostId derives a post id from the creation timestamp. Ids sort
// lexically in creation order as long as they have the same digit count.
func GeneratePostId(ts time.Time) string {
	return strconv.FormatInt(ts.UnixNano(), 10)
}
