package chat

import (
	"fmt"
	"strconv"
	"strings"
)

// Phrase sets. One is picked at random per response so the bot doesn't sound
// like a vending machine. Placeholders are filled with fmt.Sprintf by the
// handlers.

var stealSuccessPhrases = []string{
	"stole %s coins from @%s! EZ",
	"swiped %s coins from @%s! LUL",
	"lifted %s coins off @%s! CashTime",
	"cleaned out %s coins from @%s! TriHard",
}

var stealFailurePhrases = []string{
	"got caught robbing @%s! Fine: %s coins shook",
	"botched the heist on @%s! Lost %s coins shook",
	"couldn't crack @%s! Fine: %s coins shook",
	"got spotted at @%s's place! Paid up %s coins shook",
}

var stealVictimBrokePhrases = []string{
	"@%s's pockets are empty! PunOko",
	"nothing to steal from @%s! Sadge",
	"@%s is flat broke! BibleThump",
	"@%s is a pauper! LUL",
}

var stealThiefBrokePhrases = []string{
	"got caught robbing @%s! shook",
	"whiffed the heist on @%s! shook",
	"couldn't rob @%s! shook",
	"embarrassing attempt on @%s! shook",
}

var rouletteLosePhrases = []string{
	"POINT BLANK SHOT — %s in the grave, loser DIESOFCRINGE",
	"BANG! Brains on the wall, %s lights out DIESOFCRINGE",
	"RIGHT IN THE FOREHEAD! %s rotting in the hospital DIESOFCRINGE",
	"Missed your luck and died — %s timeout, loser DIESOFCRINGE",
	"Welcome to the coffin, %s of rest DIESOFCRINGE",
}

var rouletteSurvivePhrases = []string{
	"*click* — still alive! %d/6 chambers left PogChamp",
	"Got away with it! %d/6 tries remaining monkaS",
	"Survived! %d/6 chambers in the cylinder EZ",
	"*click* — empty! %d/6 shots left PauseChamp",
	"Lucky one! Only %d/6 chambers remaining Kappa",
}

var rouletteStopWinPhrases = []string{
	"Stopped right before death! Reward: %s coins PogChamp",
	"Your gut didn't lie! Take %s coins for the intuition POGGERS",
	"Bailed just in time! Grab your %s coins EZ",
	"Professional player! %s coins are yours PogU",
	"Master of intuition! Reward: %s coins PETTHEPEEPO",
}

var rouletteStopFailPhrases = []string{
	"Quit while death was far away! The bullet was %d shots out KEKW",
	"Couldn't hold on! Death was waiting %d shots away Jebaited",
	"Gave up early! The bullet was %d shots from you 4Head",
	"Weakling! Folded with death still %d shots away NotLikeThis",
	"Coward! Death was only %d shots from you KEKL",
}

var rouletteStopClosePhrases = []string{
	"Stopped just in time! Death was only %d shot(s) away monkaS",
	"Nearly died! The bullet was %d shot(s) out monkaW",
	"Lucky! Death was waiting for you in %d shot(s) PauseChamp",
}

func blockedGlobalMessage(seconds int) string {
	return fmt.Sprintf("this command will be available in %d seconds!", seconds)
}

func blockedUserMessage(seconds int) string {
	return fmt.Sprintf("wait another %d seconds before using this command again!", seconds)
}

func deniedMessage(command string) string {
	return fmt.Sprintf("only moderators can use !%s NotLikeThis", command)
}

// formatAmount renders 1234567 as "1,234,567".
func formatAmount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}

// formatTimeout renders a timeout duration like "1m 10s" or "42s".
func formatTimeout(seconds int) string {
	if seconds >= 60 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%ds", seconds)
}
