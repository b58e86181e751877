package content

import (
	"fmt"
	"strings"

	"github.com/PapsonBoyRaphael/chatapp-ngomna-sub003/interfaces"
)

// ValidateFileName rejects names every adapter refuses to persist: empty
// names, traversal sequences, and names containing NUL bytes.
func ValidateFileName(fileName string) error {
	if strings.TrimSpace(fileName) == "" {
		return &interfaces.ValidationError{Field: "fileName", Reason: "empty file name"}
	}
	if strings.Contains(fileName, "..") {
		return &interfaces.ValidationError{Field: "fileName", Reason: "path traversal sequence"}
	}
	if strings.ContainsRune(fileName, 0) {
		return &interfaces.ValidationError{Field: "fileName", Reason: "NUL byte in file name"}
	}
	if len(fileName) > 1024 {
		return &interfaces.ValidationError{Field: "fileName", Reason: "file name too long"}
	}
	return nil
}

// ValidateSize rejects zero-length payloads and payloads over maxSize.
// A maxSize of 0 disables the upper bound.
func ValidateSize(size int64, maxSize int64) error {
	if size == 0 {
		return &interfaces.ValidationError{Field: "size", Reason: "zero-length payload"}
	}
	if maxSize > 0 && size > maxSize {
		return &interfaces.ValidationError{
			Field:  "size",
			Reason: fmt.Sprintf("payload of %d bytes exceeds limit of %d", size, maxSize),
		}
	}
	return nil
}

// ValidateInput applies the shared checks to an incoming payload before any
// processing or persistence attempt.
func ValidateInput(in interfaces.FileInput, maxSize int64) error {
	if err := ValidateFileName(in.FileName); err != nil {
		return err
	}
	if err := ValidateSize(int64(len(in.Data)), maxSize); err != nil {
		return err
	}
	if in.DeclaredSize > 0 && in.DeclaredSize != int64(len(in.Data)) {
		return &interfaces.ValidationError{
			Field:  "size",
			Reason: fmt.Sprintf("declared size %d does not match payload of %d bytes", in.DeclaredSize, len(in.Data)),
		}
	}
	return nil
}
