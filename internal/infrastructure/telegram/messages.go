package telegram

import (
	"strings"
	"unicode/utf8"
)

const maxMessageLength = 4096

const (
	msgNotAuthorized  = "You are not authorized to use this bot! 🙅🏽‍♂️"
	msgUnknownCommand = "Unknown command. Use /trade to place a trade or /calculate to find information for a trade. You can also use the /help command to view instructions for this bot."
	msgDecision       = "Would you like to enter this trade?\nTo enter, select: /yes\nTo decline, select: /no"

	msgWelcome = "Welcome to the FX Signal Copier Telegram Bot! 💻💸\n\n" +
		"You can use this bot to enter trades directly from Telegram and get a detailed look at your " +
		"risk to reward ratio with profit, loss, and calculated lot size.\n\n" +
		"Use the /help command to view instructions and example trades."
)

var helpMessages = []string{
	"This bot enters trades on your MetaTrader account directly from Telegram. " +
		"It supports Market Execution, Limit and Stop orders, limit ladders over an entry zone, " +
		"and follow-up commands (SL, TP, BE, PARTIEL, CLOSE) sent as replies to the original signal.",

	"List of commands:\n" +
		"/start : displays welcome message\n" +
		"/help : displays list of commands and example trades\n" +
		"/trade : takes in user inputted trade for parsing and placement\n" +
		"/calculate : calculates trade information for a user inputted trade\n" +
		"/cancel : cancels the pending /trade or /calculate\n" +
		"/ongoing_trades : retrieves information about all ongoing trades\n" +
		"/messagetrade_ids : lists the trade ids placed for each signal message",

	"Example Trades 💴:\n\n" +
		"Market Execution:\nBUY GBPUSD\nEntry NOW\nSL 1.14336\nTP 1.28930\nTP 1.29845\n\n" +
		"Limit Execution:\nBUY LIMIT GBPUSD\nEntry 1.14480\nSL 1.14336\nTP 1.28930\n\n" +
		"Each take profit gets its own position with an equal share of the position size.\n\n" +
		"Note: Use 'NOW' as the entry to enter a market execution trade.",
}

// splitMessage breaks text on line boundaries into parts of at most maxLength
// bytes. A single line longer than maxLength is cut hard.
func splitMessage(text string, maxLength int) []string {
	if len(text) <= maxLength {
		return []string{text}
	}

	var messages []string
	current := ""

	for _, line := range strings.Split(text, "\n") {
		for len(line) > maxLength {
			if current != "" {
				messages = append(messages, current)
				current = ""
			}
			cut := maxLength
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxLength
			}
			messages = append(messages, line[:cut])
			line = line[cut:]
		}
		if current != "" && len(current)+len(line)+1 > maxLength {
			messages = append(messages, current)
			current = line
			continue
		}
		if current != "" {
			current += "\n"
		}
		current += line
	}

	if current != "" {
		messages = append(messages, current)
	}
	return messages
}
