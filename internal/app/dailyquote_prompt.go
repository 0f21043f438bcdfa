package app

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// seoulZoneName is the calendar used for the daily quote day boundary.
const seoulZoneName = "Asia/Seoul"

// SeoulLocation returns Asia/Seoul. Without tzdata it falls back to a fixed
// UTC+9 zone, which is exact because Korea observes no daylight saving.
func SeoulLocation() *time.Location {
	loc, err := time.LoadLocation(seoulZoneName)
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}

	return loc
}

type monthDay struct {
	month time.Month
	day   int
}

// Lunar holidays are pinned to fixed Gregorian dates on purpose.
var specialDays = map[monthDay]string{
	{time.January, 1}:    "신정 (새해 첫날)",
	{time.February, 17}:  "설날",
	{time.September, 25}: "추석",
	{time.December, 25}:  "크리스마스",
	{time.December, 31}:  "한 해의 마지막 날",
}

var koreanWeekdays = [...]string{
	time.Sunday:    "일요일",
	time.Monday:    "월요일",
	time.Tuesday:   "화요일",
	time.Wednesday: "수요일",
	time.Thursday:  "목요일",
	time.Friday:    "금요일",
	time.Saturday:  "토요일",
}

// SpecialDayLabel returns the label for t's month and day, if any.
func SpecialDayLabel(t time.Time) (string, bool) {
	label, ok := specialDays[monthDay{t.Month(), t.Day()}]
	return label, ok
}

// DailyQuoteContext describes today for the generation prompt,
// e.g. "2026년 12월 25일 금요일 (크리스마스)".
func DailyQuoteContext(t time.Time) string {
	s := fmt.Sprintf("%d년 %d월 %d일 %s", t.Year(), int(t.Month()), t.Day(), koreanWeekdays[t.Weekday()])

	if label, ok := SpecialDayLabel(t); ok {
		s += " (" + label + ")"
	}

	return s
}

// QuotesPerGeneration is how many lines one refresh asks for.
const QuotesPerGeneration = 5

// BuildDailyQuotePrompt returns the system instruction for one refresh.
// t must already be in the Seoul location.
func BuildDailyQuotePrompt(t time.Time) string {
	var b strings.Builder

	b.WriteString("You are the gentle gardener of \"글숲 정원\", greeting visitors each morning.\n")
	fmt.Fprintf(&b, "Today is %s.\n", DailyQuoteContext(t))
	fmt.Fprintf(&b, "Write exactly %d distinct short greetings in Korean that suit today.\n", QuotesPerGeneration)
	b.WriteString("If today is a special day, let at least one line mention it warmly.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- One greeting per line, each under 40 Korean characters.\n")
	b.WriteString("- No numbering, bullets, quotation marks or markdown.\n")
	b.WriteString("- Output only the lines, nothing else.")

	return b.String()
}

// ParseLines turns a raw generation into quote lines. Lines are trimmed,
// leading enumeration or bullet characters are stripped and blank lines
// are dropped.
func ParseLines(raw string) []string {
	lines := make([]string, 0, QuotesPerGeneration)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimLeftFunc(strings.TrimSpace(line), isEnumerationMark)
		if line == "" {
			continue
		}

		lines = append(lines, line)
	}

	return lines
}

func isEnumerationMark(r rune) bool {
	return (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '*' || unicode.IsSpace(r)
}
