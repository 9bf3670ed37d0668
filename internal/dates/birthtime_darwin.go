//go:build darwin

package dates

import (
	"time"

	"golang.org/x/sys/unix"
)

func BirthTime(path string) (time.Time, bool) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return time.Time{}, false
	}
	return time.Unix(st.Btim.Unix()), true
}
