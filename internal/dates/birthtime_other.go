//go:build !linux && !darwin

package dates

import "time"

func BirthTime(string) (time.Time, bool) { return time.Time{}, false }
