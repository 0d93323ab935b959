package reconcile

import "strings"

// Two merge policies with different trust assumptions. Company and contact
// fields are slowly-changing identity facts, so the engine only fills gaps
// and never overwrites a populated field. Deal fields are fast-changing
// intelligence, so the newest conversation wins whenever it supplies a value.

// fillString writes src into dst only when dst is empty. Reports a change.
func fillString(dst *string, src *string) bool {
	if src == nil {
		return false
	}
	v := strings.TrimSpace(*src)
	if v == "" || *dst != "" {
		return false
	}
	*dst = v
	return true
}

// fillOptString writes src into dst only when dst is nil or empty.
func fillOptString(dst **string, src *string) bool {
	v := strOrEmpty(src)
	if v == "" {
		return false
	}
	if *dst != nil && strings.TrimSpace(**dst) != "" {
		return false
	}
	*dst = &v
	return true
}

// fillInt writes src into dst only when dst is nil.
func fillInt(dst **int, src *int) bool {
	if src == nil || *dst != nil {
		return false
	}
	v := *src
	*dst = &v
	return true
}

// fillFloat writes src into dst only when dst is nil.
func fillFloat(dst **float64, src *float64) bool {
	if src == nil || *dst != nil {
		return false
	}
	v := *src
	*dst = &v
	return true
}

// setString overwrites dst whenever src supplies a non-empty value.
func setString(dst *string, src *string) bool {
	if src == nil {
		return false
	}
	v := strings.TrimSpace(*src)
	if v == "" || *dst == v {
		return false
	}
	*dst = v
	return true
}

// setInt overwrites dst whenever src is supplied.
func setInt(dst **int, src *int) bool {
	if src == nil {
		return false
	}
	if *dst != nil && **dst == *src {
		return false
	}
	v := *src
	*dst = &v
	return true
}

// setFloat overwrites dst whenever src is supplied.
func setFloat(dst **float64, src *float64) bool {
	if src == nil {
		return false
	}
	if *dst != nil && **dst == *src {
		return false
	}
	v := *src
	*dst = &v
	return true
}

// strOrEmpty dereferences an optional string, trimmed.
func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
