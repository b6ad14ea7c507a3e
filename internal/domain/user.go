package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// UserType is the role of a profile document.
type UserType string

// Known user types.
const (
	UserFarmer   UserType = "farmer"
	UserHauler   UserType = "hauler"
	UserBusiness UserType = "business"
	UserAdmin    UserType = "admin"
)

// MinDeviceTokenLength is the shortest string accepted as a push device token.
const MinDeviceTokenLength = 10

// FilterDeviceTokens keeps only strings of at least MinDeviceTokenLength characters.
func FilterDeviceTokens(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if ok && len(s) >= MinDeviceTokenLength {
			out = append(out, s)
		}
	}
	return out
}

// DeviceTokens is a list of push device tokens. Decoding drops
// malformed entries instead of failing the whole document.
type DeviceTokens []string

// UnmarshalJSON accepts any JSON array and keeps the plausible tokens.
func (t *DeviceTokens) UnmarshalJSON(b []byte) error {
	var raw []any
	if err := json.Unmarshal(b, &raw); err != nil {
		*t = nil
		return nil
	}
	*t = FilterDeviceTokens(raw)
	return nil
}

// User is a farmer, hauler, business or admin profile.
type User struct {
	ID           string       `json:"id"`
	UserType     UserType     `json:"userType"`
	FirstName    string       `json:"firstName,omitempty"`
	LastName     string       `json:"lastName,omitempty"`
	BusinessName string       `json:"businessName,omitempty"`
	BusinessID   string       `json:"businessId,omitempty"`
	LicenseNo    string       `json:"licenseNo,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Email        string       `json:"email,omitempty"`
	PlayerIDs    DeviceTokens `json:"playerIds,omitempty"`
	PasswordHash string       `json:"passwordHash,omitempty"`
	CreatedAt    *time.Time   `json:"createdAt,omitempty"`
}

// DisplayName returns the business name for businesses and the full name otherwise.
func (u User) DisplayName() string {
	if u.UserType == UserBusiness && strings.TrimSpace(u.BusinessName) != "" {
		return strings.TrimSpace(u.BusinessName)
	}
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}
