package memberrepo

import "errors"

var (
	// ErrNotFound indicates the requested member does not exist.
	ErrNotFound = errors.New("member not found")

	// ErrSubjectAlreadyBound indicates another member already holds the login identifier.
	ErrSubjectAlreadyBound = errors.New("member subject already bound")

	// ErrAlreadyExists indicates a member already exists with the provided ID.
	ErrAlreadyExists = errors.New("member already exists")

	// ErrDuplicateNationalID indicates the national ID number is held by another member.
	ErrDuplicateNationalID = errors.New("national id already registered")

	// ErrDuplicateEmail indicates the email is held by another member.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrReferenceTaken indicates the membership reference collided with an existing row.
	ErrReferenceTaken = errors.New("membership reference already taken")
)
