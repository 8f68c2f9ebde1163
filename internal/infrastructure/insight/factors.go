package insight

import (
	"regexp"
	"strings"
)

// 因子串形如 "1. xxx 2. yyy ... 5. zzz"，序号可能带括号或中英文句点
var ordinalMarker = regexp.MustCompile(`(?:^|\s)([1-5])[.)、]\s*`)

// minFactorLength 短于该长度的片段视为噪声丢弃
const minFactorLength = 3

// ParseQualifyingFactors 把编号串拆成独立因子：按五个序数标记切分、
// 去掉前缀与空白、丢弃过短片段，保持原始顺序。
func ParseQualifyingFactors(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	marks := ordinalMarker.FindAllStringSubmatchIndex(raw, -1)
	if len(marks) == 0 {
		// 无序号标记时整段视为单一因子
		if len([]rune(raw)) >= minFactorLength {
			return []string{raw}
		}
		return nil
	}

	factors := make([]string, 0, len(marks))
	for i, m := range marks {
		start := m[1]
		end := len(raw)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		segment := strings.TrimSpace(raw[start:end])
		if len([]rune(segment)) < minFactorLength {
			continue
		}
		factors = append(factors, segment)
	}
	return factors
}
