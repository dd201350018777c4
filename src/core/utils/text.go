package utils

import (
	"regexp"
	"strings"
)

var (
	lineBreaks    = regexp.MustCompile(`[\r\n]+`)
	unsafeFileChr = regexp.MustCompile(`[<>:"/\\|?*\s]+`)
)

// SingleLine 将换行折叠为单个空格，保证一个值只占一行
func SingleLine(text string) string {
	return lineBreaks.ReplaceAllString(text, " ")
}

// SanitizeFilename 清理文件名，移除不安全的字符
func SanitizeFilename(text, fallback string) string {
	safe := unsafeFileChr.ReplaceAllString(text, "_")

	// 限制文件名长度，避免过长
	if len(safe) > 64 {
		safe = safe[:64]
	}

	// 移除首尾的下划线和点，避免生成隐藏文件或 ".."
	safe = strings.Trim(safe, "_.")

	if safe == "" {
		safe = fallback
	}

	return safe
}
