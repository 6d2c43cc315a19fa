package entity

import "fmt"

// Profile classifies an account's authorization level.
type Profile string

const (
	ProfileCommon Profile = "Common"
	ProfileAdmin  Profile = "Admin"
)

func (p Profile) String() string { return string(p) }

// ParseProfile maps a stored/transported tag back to a Profile.
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case ProfileCommon, ProfileAdmin:
		return Profile(s), nil
	}
	return "", fmt.Errorf("unknown profile %q", s)
}
