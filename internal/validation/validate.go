// Package validation provides centralized input validation logic.
// This includes bucket name validation, object key validation and metadata checks.
//
// Inputs are validated before any backend is contacted so that a bad
// destination fails fast with ErrInvalidInput instead of a storage error.
package validation

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
)

var mimePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-+.]*/[a-zA-Z0-9][a-zA-Z0-9\-+.]*(\s*;.*)?$`)

// ValidateBucketName validates that a bucket name is DNS-compliant according to S3 rules.
func ValidateBucketName(bucket string) error {
	if bucket == "" {
		return errors.InvalidInput("validateBucketName", "bucket name cannot be empty")
	}

	// Bucket names must be between 3 and 63 characters long
	if len(bucket) < 3 || len(bucket) > 63 {
		return errors.InvalidInput("validateBucketName", "bucket name %q must be between 3 and 63 characters long", bucket)
	}

	for _, char := range bucket {
		if !isValidBucketChar(char) {
			return errors.InvalidInput("validateBucketName",
				"bucket name %q can only contain lowercase letters, numbers, dots, and hyphens", bucket)
		}
	}

	first, last := bucket[0], bucket[len(bucket)-1]
	if first == '-' || first == '.' || last == '-' || last == '.' {
		return errors.InvalidInput("validateBucketName", "bucket name %q cannot start or end with a hyphen or dot", bucket)
	}

	if isIPAddress(bucket) {
		return errors.InvalidInput("validateBucketName", "bucket name %q cannot be formatted as an IP address", bucket)
	}

	if strings.Contains(bucket, "..") || strings.Contains(bucket, "--") {
		return errors.InvalidInput("validateBucketName", "bucket name %q cannot contain two adjacent periods or hyphens", bucket)
	}

	return nil
}

// ValidateObjectKey validates that an object key is valid according to S3 rules.
// This includes preventing path traversal and control characters.
func ValidateObjectKey(key string) error {
	if key == "" {
		return errors.InvalidInput("validateObjectKey", "object key cannot be empty")
	}

	if hasPathTraversal(key) {
		return errors.InvalidInput("validateObjectKey", "object key cannot contain path traversal sequences").WithKey(key)
	}

	// S3 supports keys up to 1024 bytes
	if len(key) > 1024 {
		return errors.InvalidInput("validateObjectKey", "object key cannot exceed 1024 bytes")
	}

	if hasControlCharacters(key) {
		return errors.InvalidInput("validateObjectKey", "object key cannot contain control characters")
	}

	return nil
}

// ValidateMetadata validates user metadata keys and values.
func ValidateMetadata(metadata map[string]string) error {
	for key, value := range metadata {
		if key == "" {
			return errors.InvalidInput("validateMetadata", "metadata key cannot be empty")
		}
		if len(key) > 128 {
			return errors.InvalidInput("validateMetadata", "metadata key %q cannot exceed 128 characters", key)
		}
		for _, prefix := range []string{"aws:", "x-amz-", "x-amz:"} {
			if strings.HasPrefix(strings.ToLower(key), prefix) {
				return errors.InvalidInput("validateMetadata", "metadata key %q uses reserved prefix %s", key, prefix)
			}
		}
		for _, char := range key {
			if char <= ' ' || char > '~' {
				return errors.InvalidInput("validateMetadata", "metadata key %q can only contain printable ASCII characters", key)
			}
		}
		if len(value) > 2048 {
			return errors.InvalidInput("validateMetadata", "metadata value for %q cannot exceed 2048 characters", key)
		}
		if hasControlCharacters(value) {
			return errors.InvalidInput("validateMetadata", "metadata value for %q cannot contain control characters", key)
		}
	}
	return nil
}

// ValidateContentType validates that a content type is a well-formed MIME type.
// An empty content type is allowed.
func ValidateContentType(contentType string) error {
	if contentType == "" {
		return nil
	}
	if !mimePattern.MatchString(contentType) {
		return errors.InvalidInput("validateContentType", "content type %q must be a valid MIME type", contentType)
	}
	return nil
}

// isValidBucketChar checks if a character is valid in a bucket name
func isValidBucketChar(char rune) bool {
	return (char >= '0' && char <= '9') || (char >= 'a' && char <= 'z') || char == '.' || char == '-'
}

// isIPAddress checks if a string is formatted as an IPv4 address
func isIPAddress(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}

	for _, part := range parts {
		if part == "" || len(part) > 3 {
			return false
		}
		for _, char := range part {
			if char < '0' || char > '9' {
				return false
			}
		}
	}
	return true
}

// hasPathTraversal checks for path traversal attempts in object keys
func hasPathTraversal(key string) bool {
	if strings.Contains(key, "..") {
		return true
	}

	cleaned := filepath.Clean(key)
	if strings.HasPrefix(cleaned, "/") {
		return true
	}

	// Windows-style absolute paths
	return len(cleaned) >= 3 && cleaned[1] == ':' && (cleaned[2] == '\\' || cleaned[2] == '/')
}

// hasControlCharacters checks for control characters
func hasControlCharacters(s string) bool {
	for _, char := range s {
		if unicode.IsControl(char) {
			return true
		}
	}
	return false
}
