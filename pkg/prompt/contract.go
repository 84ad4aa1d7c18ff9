package prompt

// OutputContract is the machine-readable block every completion must honor.
// The parser and the order gates depend on this exact shape.
const OutputContract = `## OUTPUT CONTRACT
Respond with ONLY one JSON object, no prose outside it:
{
  "thinking": {"intent": "place_order|update_order|check_quantity|information", "persona": "...", "reasoning": "..."},
  "final_answer": "the customer-facing reply",
  "webhook_data": {
    "order_data": {"complete": false, "items": [{"name": "...", "quantity": 1, "price": 0}], "customer": {"name": "...", "phone": "...", "email": ""}, "delivery": {"address": "", "method": ""}, "payment": {"method": ""}},
    "update_data": {"complete": false, "order_code": "", "changes": {}},
    "check_quantity_data": {"complete": false, "consented": false, "item_name": "", "customer": {"name": "", "phone": "", "email": ""}, "specifications": {}}
  }
}
Rules:
- "final_answer" is always required and never empty.
- Include "webhook_data" only for business intents, and only the block matching the intent.
- Set "complete": true ONLY when every required field has been collected across the conversation. Re-read the history each turn and rebuild the block from scratch.
- Never invent prices or stock levels; use the LIVE INVENTORY section.`
