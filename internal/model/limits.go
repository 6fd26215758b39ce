package model

// UserLimits are the per-content seat ceilings returned by the profile
// gateway for a user.  They apply across all schedules of a content.
type UserLimits struct {
	MaxAdult int32 `json:"max_adult"`
	MaxChild int32 `json:"max_child"`
}

// NoCounts is the sentinel returned by the aggregate query when the user
// holds no live reservation for the content.
const NoCounts = -1

// UserCounts is the sum of seats a user already holds for one content.
type UserCounts struct {
	Adult int64
	Child int64
}

// Empty reports whether the aggregate matched no rows.
func (c UserCounts) Empty() bool { return c.Adult == NoCounts && c.Child == NoCounts }
