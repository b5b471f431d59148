// internal/app/system/limits/limits.go
// Package limits centralizes request size caps.
package limits

// MaxJSONBodySize caps JSON request bodies accepted by the API.
const MaxJSONBodySize = 1 << 20 // 1 MiB
