package cli

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
)

// PromptForQuery asks for a free-text portfolio question.
func PromptForQuery() (string, error) {
	var q string
	prompt := &survey.Input{
		Message: "Ask about your portfolio:",
		Help:    "For example: Should I sell BTCUSDT at the current price?",
	}

	err := survey.AskOne(prompt, &q, survey.WithValidator(func(val interface{}) error {
		str, _ := val.(string)
		if strings.TrimSpace(str) == "" {
			return fmt.Errorf("query cannot be empty")
		}
		return nil
	}))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(q), nil
}

// PromptForExecution confirms before decisions are sent on-chain.
func PromptForExecution(contract string) (bool, error) {
	confirm := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Submit buy/sell decisions to contract %s?", contract),
		Default: false,
	}
	if err := survey.AskOne(prompt, &confirm); err != nil {
		return false, err
	}
	return confirm, nil
}
