package form

import "errors"

var (
	ErrEmptyPhoto    = errors.New("photo is empty")
	ErrPhotoTooLarge = errors.New("photo exceeds size limit")
	ErrPDFNoPages    = errors.New("pdf has no pages")
	ErrSubFieldPath  = errors.New("dynamic array cell needs a row and sub-field")
)
