package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-bot/internal/domain"
)

// BuildPrompt builds the system instruction for one extraction call.
// Nil lists are rendered as empty JSON arrays.
func BuildPrompt(text string, categories, paymentMethods []string, today string, defaults domain.Defaults) string {
	basePrompt :=
		"You are an expert bookkeeper. Your task is to read the text of one financial transaction and convert it into strict JSON.\n\n" +
			"USER DATA:\n" +
			fmt.Sprintf("- Text: %q\n", text) +
			fmt.Sprintf("- Available categories: %s\n", jsonList(categories)) +
			fmt.Sprintf("- Available payment methods: %s\n", jsonList(paymentMethods)) +
			fmt.Sprintf("- Today's date: %s\n\n", today)

	rulesPrompt :=
		"RULES (apply them in order):\n" +
			"1. AMOUNT: extract the number. Use a dot for decimals. Always a positive magnitude.\n" +
			"2. TYPE:\n" +
			"   - If the text contains \"+\", \"received\", \"salary\", \"refund\", \"transfer from\" -> \"Income\".\n" +
			"   - In ALL other cases (purchases, gifts given, expenses, payments) -> \"Expense\".\n" +
			"   - Example: \"gift for mum\" is \"Expense\". \"Gift received\" is \"Income\".\n" +
			"3. PAYMENT METHOD:\n" +
			"   - If the text mentions a method present in the list, use exactly that one.\n" +
			fmt.Sprintf("   - If the text mentions online shops (Amazon, eBay, Vinted, PayPal) -> use %q (or the closest electronic payment method in the list).\n", defaults.PaymentMethod) +
			fmt.Sprintf("   - If not specified -> the default is %q.\n", defaults.PaymentMethod) +
			fmt.Sprintf("4. CATEGORY: pick the best match from the list. If in doubt, %q.\n", defaults.Category) +
			"5. DESCRIPTION: remove the amount and the category from the original text. Keep the rest and summarise it in a few words.\n\n"

	outputPrompt :=
		"REQUIRED OUTPUT:\n" +
			"Reply ONLY with one valid JSON object. No text before or after.\n" +
			"Do NOT wrap the response in code fences.\n" +
			"Format: {\"amount\": number, \"category\": \"string\", \"paymentMethod\": \"string\", \"type\": \"Income\" or \"Expense\", \"description\": \"string\"}\n"

	return basePrompt + rulesPrompt + outputPrompt
}

func jsonList(values []string) string {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return strings.TrimSpace(string(b))
}
