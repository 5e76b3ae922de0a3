package services

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/nikhilbhatia/commitcanvas/internal/domain/user"
)

// Content classification stored on commit records.
const (
	ContentTypeTimestamp = "timestamp"
	ContentTypeQuote     = "quote"
	ContentTypeASCII     = "ascii"
)

var quotes = []string{
	"Talk is cheap. Show me the code.",
	"Programs must be written for people to read.",
	"Simplicity is the soul of efficiency.",
	"First, solve the problem. Then, write the code.",
	"Make it work, make it right, make it fast.",
	"The best error message is the one that never shows up.",
	"Deleted code is debugged code.",
	"Weeks of coding can save you hours of planning.",
	"Code never lies, comments sometimes do.",
	"Before software can be reusable it first has to be usable.",
	"Small daily improvements are the key to staggering long-term results.",
	"A river cuts through rock not because of its power, but its persistence.",
}

var asciiBlocks = []string{
	`  /\_/\
 ( o.o )
  > ^ <`,
	`   ____
  / __ \
 | |  | |
 | |__| |
  \____/`,
	` |\---/|
 | o_o |
  \_^_/`,
}

// generateContent builds the file content for one commit. Plain builds a
// timestamp line; smart content rotates through quotes and ASCII blocks
// keyed off the scheduled date so regenerating the same day is stable.
func generateContent(u *user.User, at time.Time) (content, contentType string) {
	stamp := at.Format(time.RFC1123)

	if !u.Settings.EnableSmartContent {
		return fmt.Sprintf("Activity: %s\n", stamp), ContentTypeTimestamp
	}

	seed := at.YearDay() + at.Year()
	if seed%7 == 0 {
		block := asciiBlocks[seed%len(asciiBlocks)]
		return fmt.Sprintf("%s\n\nUpdated: %s\n", block, stamp), ContentTypeASCII
	}
	quote := quotes[seed%len(quotes)]
	return fmt.Sprintf("> %s\n\nUpdated: %s\n", quote, stamp), ContentTypeQuote
}

// pickMessage draws a commit message at random from the user's pool,
// falling back to the given default.
func pickMessage(u *user.User, fallback string) string {
	pool := u.Settings.MessagePool()
	if len(pool) == 0 {
		return fallback
	}
	return pool[rand.Intn(len(pool))]
}

// randomDayTime returns an offset inside the 09:00-19:00 window used for
// backfilled commit timestamps.
func randomDayTime() time.Duration {
	return 9*time.Hour + time.Duration(rand.Intn(10*3600))*time.Second
}
