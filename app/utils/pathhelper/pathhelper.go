package pathhelper

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeFileName 只保留字母、数字、空格、下划线和连字符，并去掉末尾空白
func SanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.TrimRightFunc(b.String(), unicode.IsSpace)
}

// NumberedName 第 n 个候选文件名，n <= 1 时返回原名
func NumberedName(base string, n int) string {
	if n <= 1 {
		return base
	}
	return fmt.Sprintf("%s (%d)", base, n)
}

// HasExtension 检查文件扩展名是否在列表中，规则可以省略开头的点
func HasExtension(filePath string, exts ...string) bool {
	fileExt := strings.ToLower(filepath.Ext(filePath))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if ext == fileExt {
			return true
		}
	}
	return false
}

// IsTempFile 写入过程中的临时文件
func IsTempFile(filePath string) bool {
	return strings.HasSuffix(filePath, ".tmp")
}
