package peer

import "time"

func secondsToDuration(s uint64) time.Duration {
	return time.Duration(s) * time.Second
}
