package library

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Segmenter 段落分段器。将清洗后的原始文本切为可独立嵌入的段落序列。
// 必须确定性：同一输入永远产出同一序列，段落 id 的序号依赖这一点。
type Segmenter struct {
	minLen int // 低于该长度的候选被丢弃
	maxLen int // 超过该长度的候选按句子重切
}

// NewSegmenter 创建分段器。
func NewSegmenter(minLen, maxLen int) *Segmenter {
	if minLen <= 0 {
		minLen = 100
	}
	if maxLen <= minLen {
		maxLen = 1000
	}
	return &Segmenter{minLen: minLen, maxLen: maxLen}
}

var (
	reBlankLine   = regexp.MustCompile(`\n\s*\n`)
	reSentenceEnd = regexp.MustCompile(`[.!?]+\s+`)
)

// Segment 分段。输出顺序即段落序号顺序。
func (s *Segmenter) Segment(text string) []string {
	// 1. 残留页戳与时间戳
	text = rePageStamp.ReplaceAllString(text, "")
	text = reTimestamp.ReplaceAllString(text, "")

	// 2. 空行切分候选段落
	var out []string
	for _, candidate := range reBlankLine.Split(text, -1) {
		// 3. 规范化：trim + 小写 + 折叠内部空白
		p := strings.Join(strings.Fields(strings.ToLower(candidate)), " ")
		if p == "" {
			continue
		}

		// 4. 丢弃过短候选与结构噪声（纯数字、章节标题）
		if utf8.RuneCountInString(p) < s.minLen {
			continue
		}
		if isNumeric(p) || strings.HasPrefix(p, "chapter") {
			continue
		}

		// 5. 超长候选按句子边界重切
		if utf8.RuneCountInString(p) > s.maxLen {
			out = append(out, s.packSentences(splitSentences(p))...)
			continue
		}
		out = append(out, p)
	}
	return out
}

// splitSentences 在「标点 + 空白」处切句。
func splitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range reSentenceEnd.FindAllStringIndex(text, -1) {
		if sent := strings.TrimSpace(text[last:loc[1]]); sent != "" {
			sentences = append(sentences, sent)
		}
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// packSentences 贪心打包：句子依次填入子段落，装不下就另起一段。
// 单句超过上限时整句保留，绝不从句中截断。
func (s *Segmenter) packSentences(sentences []string) []string {
	var out []string
	var current string
	for _, sent := range sentences {
		if current == "" {
			current = sent
			continue
		}
		if utf8.RuneCountInString(current)+utf8.RuneCountInString(sent)+1 > s.maxLen {
			out = append(out, current)
			current = sent
			continue
		}
		current += " " + sent
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
