package service

import (
	"errors"
	"fmt"
	"strings"

	"vending-kernel/internal/core/domain"
	"vending-kernel/pkg/money"

	"github.com/google/uuid"
)

const credentialBlockLines = 4

// splitPipe splits "a | b | c" into n trimmed fields and requires at least
// two. Separators past the n-1th stay in the last field.
func splitPipe(text string, n int) ([]string, bool) {
	parts := strings.SplitN(text, "|", n)
	if len(parts) < 2 {
		return nil, false
	}
	for len(parts) < n {
		parts = append(parts, "")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, true
}

// amountReason turns a money parse error into a reprompt reason.
func amountReason(err error) string {
	switch {
	case errors.Is(err, money.ErrNonPositive):
		return "amount must be greater than zero"
	case errors.Is(err, money.ErrTooPrecise):
		return "amount may have at most two decimal places"
	case errors.Is(err, money.ErrOutOfBounds):
		return "amount is too large"
	default:
		return "amount must be a number such as 199 or 199.50"
	}
}

type productDetails struct {
	name        string
	price       int64
	description string
}

// parseProductDetails reads "Name | Price | Description".
func parseProductDetails(text string) (*productDetails, string) {
	parts, ok := splitPipe(text, 3)
	if !ok || parts[0] == "" {
		return nil, "expected: Name | Price | Description"
	}
	price, err := money.ParseAmount(parts[1])
	if err != nil {
		return nil, amountReason(err)
	}
	return &productDetails{name: parts[0], price: price, description: parts[2]}, ""
}

func parseProductID(text string) (uuid.UUID, string) {
	id, err := uuid.Parse(strings.TrimSpace(text))
	if err != nil {
		return uuid.Nil, "product id must be a UUID"
	}
	return id, ""
}

// parsePriceUpdate reads "ProductID | NewPrice".
func parsePriceUpdate(text string) (uuid.UUID, int64, string) {
	parts, ok := splitPipe(text, 2)
	if !ok || parts[0] == "" {
		return uuid.Nil, 0, "expected: ProductID | NewPrice"
	}
	id, reason := parseProductID(parts[0])
	if reason != "" {
		return uuid.Nil, 0, reason
	}
	price, err := money.ParseAmount(parts[1])
	if err != nil {
		return uuid.Nil, 0, amountReason(err)
	}
	return id, price, ""
}

// parseBalanceGrant reads "ActorID | Amount".
func parseBalanceGrant(text string) (string, int64, string) {
	parts, ok := splitPipe(text, 2)
	if !ok || parts[0] == "" {
		return "", 0, "expected: ActorID | Amount"
	}
	amount, err := money.ParseAmount(parts[1])
	if err != nil {
		return "", 0, amountReason(err)
	}
	return parts[0], amount, ""
}

// parseCredentials accepts either one "account,secret[,validity[,note]]"
// per line, or blocks of account/secret/validity/note lines separated by
// blank lines. A block longer than four lines is read four lines at a time.
func parseCredentials(text string) ([]domain.Credential, string) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	first := ""
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			first = l
			break
		}
	}
	if first == "" {
		return nil, "no credentials found"
	}

	var creds []domain.Credential
	if strings.Contains(first, ",") {
		for _, l := range lines {
			l = strings.TrimSpace(l)
			if l == "" {
				continue
			}
			creds = append(creds, credentialFrom(strings.Split(l, ",")))
		}
	} else {
		for _, block := range credentialBlocks(lines) {
			for len(block) > 0 {
				n := min(credentialBlockLines, len(block))
				creds = append(creds, credentialFrom(block[:n]))
				block = block[n:]
			}
		}
	}

	for i, c := range creds {
		if err := c.Validate(); err != nil {
			return nil, fmt.Sprintf("credential %d: account and secret are required", i+1)
		}
	}
	return creds, ""
}

// credentialBlocks groups non-empty lines separated by blank lines.
func credentialBlocks(lines []string) [][]string {
	var blocks [][]string
	var cur []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			if len(cur) > 0 {
				blocks = append(blocks, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, l)
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

func credentialFrom(fields []string) domain.Credential {
	get := func(i int) string {
		if i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}
	return domain.Credential{
		Account:  get(0),
		Secret:   get(1),
		Validity: get(2),
		Note:     get(3),
	}
}

// isSkip reports whether input asks to skip an optional step.
func isSkip(in domain.ConversationInput) bool {
	return in.Kind == domain.InputSkip ||
		(in.Kind == domain.InputText && strings.EqualFold(strings.TrimSpace(in.Text), "skip"))
}

func parseAmountStep(text string) (int64, string) {
	amount, err := money.ParseAmount(text)
	if err != nil {
		return 0, amountReason(err)
	}
	return amount, ""
}
