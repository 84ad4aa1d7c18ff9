package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonLanguageDetect ReasonCode = "language_detect"
	ReasonIntentPattern  ReasonCode = "intent_pattern"
	ReasonIntentLLM      ReasonCode = "intent_llm"

	ReasonRetrievalQuery    ReasonCode = "retrieval_query"
	ReasonRetrievalFallback ReasonCode = "retrieval_fallback"

	ReasonLLMGenerate  ReasonCode = "llm_generate"
	ReasonLLMStream    ReasonCode = "llm_stream"
	ReasonLLMRateLimit ReasonCode = "llm_rate_limit"
	ReasonLLMCircuit   ReasonCode = "llm_circuit_open"

	ReasonParsePayload ReasonCode = "parse_payload"

	ReasonWebhookDeliver   ReasonCode = "webhook_deliver"
	ReasonWebhookRejected  ReasonCode = "webhook_rejected"
	ReasonWebhookExhausted ReasonCode = "webhook_exhausted"
	ReasonWebhookQueueFull ReasonCode = "webhook_queue_full"

	ReasonSessionRead   ReasonCode = "session_read"
	ReasonSessionAppend ReasonCode = "session_append"

	ReasonChannelSend   ReasonCode = "channel_send"
	ReasonChannelClosed ReasonCode = "channel_closed"

	ReasonTenantLookup ReasonCode = "tenant_lookup"
)
