package asyncloop

import (
	"runtime"
	"strconv"
)

// goroutineID returns the calling goroutine's runtime ID, parsed out of its
// stack trace header. Grounded on the teacher's loop.go getGoroutineID,
// used the same way here: to detect reentrant Run calls from the loop's own
// goroutine (spec §4.4/§5, ErrReentrantRun).
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

func itoa(v uint64) string { return strconv.FormatUint(v, 10) }
