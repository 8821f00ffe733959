package models

import "time"

// User represents an account in the system. Username is set during pairing
// and PartnerUID links two accounts bidirectionally; both are nullable.
type User struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	Token      string    `json:"token,omitempty"`
	Username   *string   `json:"username,omitempty"`
	PartnerUID *string   `json:"partner_uid,omitempty"`
	PushToken  *string   `json:"push_token,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// WidgetPayload is the latest shared photo and message for a recipient.
// It is overwritten on every share, never appended to or deleted.
type WidgetPayload struct {
	UserID    string `json:"user_id"`
	ImageURL  string `json:"image_url"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// LatestMessage mirrors the most recent share for both sides of a pair.
type LatestMessage struct {
	FromUID   string `json:"from"`
	ToUID     string `json:"to"`
	ImageURL  string `json:"image_url"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// DeviceSettings is per-device configuration. It lives in local storage
// only and is never synced to the remote store or the partner device.
type DeviceSettings struct {
	DeviceID      string `json:"device_id"`
	TimezoneMine  string `json:"timezone_mine"`
	TimezoneOther string `json:"timezone_other"`
	KikayMode     bool   `json:"kikay_mode"`
}

// PartnerInfo describes the other side of an established pairing.
type PartnerInfo struct {
	PartnerID       string `json:"partner_id"`
	PartnerUsername string `json:"partner_username"`
}

// DisplayModel is what an observer renders. ImagePath points at a locally
// cached copy of the shared image and is empty when the placeholder should
// be shown instead.
type DisplayModel struct {
	SelfLabel    string `json:"self_label"`
	SelfTime     string `json:"self_time"`
	PartnerLabel string `json:"partner_label"`
	PartnerTime  string `json:"partner_time"`
	Message      string `json:"message"`
	ImagePath    string `json:"image_path,omitempty"`
}
