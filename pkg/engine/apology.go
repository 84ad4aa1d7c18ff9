package engine

import "github.com/rahmatgani/aruna/pkg/parser"

var apologies = map[string]string{
	"en": "Sorry, I'm having trouble responding right now. Please try again in a moment.",
	"id": "Maaf, saya sedang mengalami kendala untuk merespons. Silakan coba lagi sebentar lagi.",
	"vi": "Xin lỗi, hiện tại tôi gặp sự cố khi trả lời. Vui lòng thử lại sau giây lát.",
}

// apologyResponse is the degraded reply used when generation fails outright.
// The text matches the user's detected language so the failure still reads
// like a conversation.
func apologyResponse(lang string) parser.StructuredResponse {
	text, ok := apologies[lang]
	if !ok {
		text = apologies["en"]
	}
	return parser.StructuredResponse{
		Thinking:    parser.Thinking{Intent: "information", Reasoning: "generation unavailable"},
		FinalAnswer: text,
		Fallback:    true,
	}
}
