package cache

import "fmt"

// RateLimitKey builds the counter key for one rate-limit bucket.
func RateLimitKey(bucket string) string {
	return fmt.Sprintf("ratelimit:%s", bucket)
}
