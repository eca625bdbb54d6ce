package redis

import "fmt"

// SessionKey 会话记录键名，jti 为 token 唯一标识。
func SessionKey(tokenID string) string {
	return fmt.Sprintf("shopkeep:session:%s", tokenID)
}

// LoginRateLimitKey 登录限流键；subject 为 user:<name>:ip:<addr> 或 ip:<addr>。
func LoginRateLimitKey(subject string) string {
	return fmt.Sprintf("shopkeep:rate_limit:login:%s", subject)
}
