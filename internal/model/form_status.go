package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// FormStatus is stored as an integer; JSON carries the name.
type FormStatus int

const (
	StatusDraft FormStatus = iota
	StatusSubmitted
	StatusUnderReview
	StatusApproved
	StatusReturned
	StatusRejected
)

var statusNames = [...]string{"Draft", "Submitted", "UnderReview", "Approved", "Returned", "Rejected"}

func (s FormStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("FormStatus(%d)", int(s))
	}
	return statusNames[s]
}

func (s FormStatus) Valid() bool {
	return s >= StatusDraft && s <= StatusRejected
}

// Terminal reports whether no further transition is possible on this instance.
func (s FormStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusReturned
}

func (s FormStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid form status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *FormStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseFormStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseFormStatus accepts names case-insensitively, with or without underscores.
func ParseFormStatus(v string) (FormStatus, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(v)), "_", "")
	for i, name := range statusNames {
		if strings.ToLower(name) == key {
			return FormStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown form status %q", v)
}

// Value stores the status as its integer code.
func (s FormStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *FormStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		*s = FormStatus(v)
	case int32:
		*s = FormStatus(v)
	case []byte:
		return s.scanString(string(v))
	case string:
		return s.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into FormStatus", src)
	}
	return nil
}

func (s *FormStatus) scanString(v string) error {
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
		*s = FormStatus(n)
		return nil
	}
	return s.UnmarshalText([]byte(v))
}
