package domain

import (
	"errors"
	"net/mail"
	"net/url"
	"strings"
)

// MinNameLength applies to first and last names.
const MinNameLength = 2

// ValidateFieldValue checks a normalized value for f against the rules every stored
// profile obeys. Optional fields accept "".
func ValidateFieldValue(f ProfileField, v string) error {
	acc, ok := profileFields[f]
	if !ok {
		return errors.New("unknown field")
	}
	switch f {
	case FieldLastName, FieldFirstName:
		if len([]rune(v)) < MinNameLength {
			return errors.New("must be at least 2 characters")
		}
	case FieldPhone:
		if err := ValidatePhone(v); err != nil {
			return err
		}
	case FieldEmail:
		if v != "" {
			if err := ValidateEmail(v); err != nil {
				return err
			}
		}
	case FieldPhotoRef, FieldSignatureRef:
		if v != "" {
			if err := ValidateURL(v); err != nil {
				return err
			}
		}
	}
	var scratch Profile
	return acc.set(&scratch, v)
}

// CanonicalFieldValue returns the stored spelling of v, so "02" and "2" compare equal
// for integer fields. v must already pass ValidateFieldValue.
func CanonicalFieldValue(f ProfileField, v string) (string, error) {
	acc, ok := profileFields[f]
	if !ok {
		return "", errors.New("unknown field")
	}
	var scratch Profile
	if err := acc.set(&scratch, v); err != nil {
		return "", err
	}
	return acc.get(scratch), nil
}

// ValidatePhone requires 8 to 15 digits once separators are stripped.
func ValidatePhone(phone string) error {
	digits := strings.TrimPrefix(NormalizePhone(phone), "+")
	if len(digits) < 8 || len(digits) > 15 {
		return errors.New("must contain 8 to 15 digits")
	}
	return nil
}

// ValidateEmail accepts a bare RFC 5322 address only.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("must be non-empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return err
	}
	if addr.Address != email {
		return errors.New("must be a bare email address")
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}
