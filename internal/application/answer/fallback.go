package answer

import "strings"

// 降级文案按用户语言给出；未覆盖的语言退回英文。
// 处理语言是固定的，但降级文案不经过翻译网关，必须本地可用。

var generationFallbacks = map[string]string{
	"en": "I ran into a problem while composing this answer. Please try again in a moment.",
	"zh": "生成回答时遇到了问题，请稍后再试。",
	"ja": "回答の生成中に問題が発生しました。しばらくしてからもう一度お試しください。",
	"de": "Beim Erstellen der Antwort ist ein Problem aufgetreten. Bitte versuchen Sie es in Kürze erneut.",
	"fr": "Un problème est survenu lors de la rédaction de la réponse. Veuillez réessayer dans un instant.",
	"es": "Se produjo un problema al redactar la respuesta. Inténtalo de nuevo en un momento.",
}

var noKnowledgeFallbacks = map[string]string{
	"en": "I could not find relevant information to answer this question. Try rephrasing it or asking about a different topic.",
	"zh": "没有找到能回答这个问题的相关资料，可以换个说法或换个主题再试试。",
	"ja": "この質問に答えられる関連情報が見つかりませんでした。言い換えるか、別のトピックでお試しください。",
	"de": "Ich konnte keine relevanten Informationen zu dieser Frage finden. Formulieren Sie sie um oder fragen Sie zu einem anderen Thema.",
	"fr": "Je n'ai pas trouvé d'informations pertinentes pour répondre à cette question. Essayez de la reformuler ou de changer de sujet.",
	"es": "No encontré información relevante para responder esta pregunta. Intenta reformularla o preguntar sobre otro tema.",
}

var fallbackTitles = map[string]string{
	"en": "Unable to answer",
	"zh": "暂时无法回答",
	"ja": "回答できません",
	"de": "Keine Antwort möglich",
	"fr": "Réponse indisponible",
	"es": "Respuesta no disponible",
}

// GenerationFallback 生成失败时的降级回答
func GenerationFallback(lang string) string {
	return pickFallback(generationFallbacks, lang)
}

// NoKnowledgeFallback 三源全败或证据为空时的降级回答
func NoKnowledgeFallback(lang string) string {
	return pickFallback(noKnowledgeFallbacks, lang)
}

func fallbackTitle(lang string) string {
	return pickFallback(fallbackTitles, lang)
}

func pickFallback(table map[string]string, lang string) string {
	code := strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	if msg, ok := table[code]; ok {
		return msg
	}
	return table["en"]
}
