package answer

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"rag-answer-api/internal/application/retrieval"
	"rag-answer-api/internal/domain/entity"
)

const systemPromptTemplate = `You are a knowledgeable assistant that answers questions strictly from the evidence provided.

Rules:
- Answer in %s.
- Use ONLY the numbered evidence blocks below. Do not invent facts.
- When evidence is thin, say what is known and what is not.
- Cite evidence inline as [n] where n is the evidence number.
- Adjust depth to the requested difficulty level: %s.
- Respond with a single JSON object: {"title": "<short title>", "answer": "<answer text>"}.`

// buildMessages 组装一轮生成所需的消息序列：系统提示、会话摘要、近期轮次、证据与问题。
func buildMessages(in *Input, lang string, maxEvidence int) []*schema.Message {
	difficulty := in.Difficulty
	if difficulty == "" {
		difficulty = "normal"
	}

	msgs := make([]*schema.Message, 0, len(in.History)+2)
	msgs = append(msgs, schema.SystemMessage(fmt.Sprintf(systemPromptTemplate, lang, difficulty)))

	if strings.TrimSpace(in.Summary) != "" {
		msgs = append(msgs, schema.SystemMessage("Earlier conversation summary:\n"+strings.TrimSpace(in.Summary)))
	}

	for _, turn := range in.History {
		switch turn.Role {
		case entity.RoleUser:
			msgs = append(msgs, schema.UserMessage(turn.Content))
		case entity.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(turn.Content, nil))
		}
	}

	var sb strings.Builder
	if block := buildEvidenceBlock(in.Evidence, maxEvidence); block != "" {
		sb.WriteString(block)
		sb.WriteString("\n\n")
	}
	if in.FollowUp {
		sb.WriteString("This is a follow-up question in an ongoing conversation.\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(strings.TrimSpace(in.Question))
	msgs = append(msgs, schema.UserMessage(sb.String()))

	return msgs
}

// buildEvidenceBlock 把候选证据格式化为可注入 Prompt 的编号块。
// 约束：不把 score 等调试信息塞进 Prompt。
func buildEvidenceBlock(evidence []retrieval.Candidate, maxEvidence int) string {
	if len(evidence) == 0 {
		return ""
	}
	if maxEvidence <= 0 {
		maxEvidence = 10
	}
	n := len(evidence)
	if n > maxEvidence {
		n = maxEvidence
	}

	lines := make([]string, 0, n+1)
	lines = append(lines, "Evidence:")
	for i := 0; i < n; i++ {
		c := evidence[i]
		label := strings.TrimSpace(c.DocTitle)
		if label == "" {
			label = string(c.Source)
		}
		txt := compactOneLine(c.Text)
		if txt == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%d] (%s) %s", i+1, label, txt))
	}
	return strings.Join(lines, "\n")
}

func compactOneLine(s string) string {
	out := strings.ReplaceAll(s, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")
	out = strings.ReplaceAll(out, "\n", " ")
	out = strings.TrimSpace(out)
	for strings.Contains(out, "  ") {
		out = strings.ReplaceAll(out, "  ", " ")
	}
	return out
}
