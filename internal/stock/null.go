package stock

import (
	"strconv"
	"time"
)

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}
