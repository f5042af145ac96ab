// Package markup 实现评论正文的验证与净化管道。
//
// 先在原始输入上做闭合检查（未闭合、错配或不在白名单内的标签直接拒绝，
// 而不是悄悄修复），通过后再用 bluemonday 按白名单净化。净化是幂等的。
package markup

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"commentbox/backend/internal/domain"
)

// 允许的内联标签白名单
var allowedTags = map[string]bool{
	"a":      true,
	"code":   true,
	"em":     true,
	"i":      true,
	"strong": true,
}

// 标签形状匹配：只有形如标签的 < 序列才参与闭合检查，"1 < 2" 这类裸 < 不算
var tagRegex = regexp.MustCompile(`<(/?)([a-zA-Z][a-zA-Z0-9]*)((?:\s[^<>]*)?)(/?)>`)

var policy = buildPolicy()

// buildPolicy 构建净化策略：白名单之外的元素和属性全部剥除，
// 链接目标保留但限制为标准 URL 协议。
func buildPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("code", "em", "i", "strong")
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.RequireNoFollowOnLinks(true)
	return p
}

// Prepare 验证并净化原始正文。
//
// 返回净化后的文本；标签不合法时返回 *domain.ValidationError，
// 错误信息指明具体的违规构造。纯函数，无副作用。
func Prepare(rawText string) (string, error) {
	if err := checkTagClosure(rawText); err != nil {
		return "", err
	}
	return Sanitize(rawText), nil
}

// Sanitize 按白名单净化文本。对已净化的文本再次净化返回相同结果。
func Sanitize(text string) string {
	return policy.Sanitize(text)
}

// PlainText 剥除全部标签并还原实体，供搜索索引分词使用。
func PlainText(text string) string {
	return html.UnescapeString(strictPolicy.Sanitize(text))
}

var strictPolicy = bluemonday.StrictPolicy()

// checkTagClosure 检查原始文本中所有标签是否在白名单内且正确闭合嵌套。
func checkTagClosure(rawText string) *domain.ValidationError {
	var stack []string

	for _, m := range tagRegex.FindAllStringSubmatch(rawText, -1) {
		closing := m[1] == "/"
		name := strings.ToLower(m[2])
		selfClosing := m[4] == "/"

		if !allowedTags[name] {
			return domain.NewValidationError("text",
				fmt.Sprintf("不允许的标签 <%s>", name))
		}

		switch {
		case selfClosing:
			// 内联标签不允许自闭合写法
			return domain.NewValidationError("text",
				fmt.Sprintf("标签 <%s/> 不允许自闭合", name))
		case closing:
			if len(stack) == 0 {
				return domain.NewValidationError("text",
					fmt.Sprintf("多余的闭合标签 </%s>", name))
			}
			top := stack[len(stack)-1]
			if top != name {
				return domain.NewValidationError("text",
					fmt.Sprintf("标签闭合错配：期望 </%s>，实际 </%s>", top, name))
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, name)
		}
	}

	if len(stack) > 0 {
		return domain.NewValidationError("text",
			fmt.Sprintf("标签 <%s> 未闭合", stack[len(stack)-1]))
	}
	return nil
}
