// Package ptrx provides pointer helpers for optional struct fields.
package ptrx

import "time"

// Bool returns a pointer to the bool value passed in.
func Bool(v bool) *bool {
	return &v
}

// BoolValue dereferences the pointer, returning false when it is nil.
func BoolValue(v *bool) bool {
	if v == nil {
		return false
	}
	return *v
}

// Int returns a pointer to the int value passed in.
func Int(v int) *int {
	return &v
}

// IntValue dereferences the pointer, returning 0 when it is nil.
func IntValue(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// Int64 returns a pointer to the int64 value passed in.
func Int64(v int64) *int64 {
	return &v
}

// Int64Value dereferences the pointer, returning 0 when it is nil.
func Int64Value(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// String returns a pointer to the string value passed in.
func String(v string) *string {
	return &v
}

// StringValue dereferences the pointer, returning "" when it is nil.
func StringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// StringValueOr dereferences the pointer, returning def when it is nil.
func StringValueOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

// StringSlice returns a pointer to the slice passed in.
func StringSlice(v []string) *[]string {
	return &v
}

// Time returns a pointer to the time value passed in.
func Time(v time.Time) *time.Time {
	return &v
}

// TimeValue dereferences the pointer, returning the zero time when it is nil.
func TimeValue(v *time.Time) time.Time {
	if v == nil {
		return time.Time{}
	}
	return *v
}
