package domain

// Virtue is one of the five growth dimensions of the garden.
type Virtue string

// The five virtues, in display order.
const (
	VirtueCourage   Virtue = "courage"
	VirtueWisdom    Virtue = "wisdom"
	VirtueKindness  Virtue = "kindness"
	VirtueDiligence Virtue = "diligence"
	VirtueSerenity  Virtue = "serenity"
)

// Virtues lists every virtue in display order.
func Virtues() []Virtue {
	return []Virtue{VirtueCourage, VirtueWisdom, VirtueKindness, VirtueDiligence, VirtueSerenity}
}

// VirtuePoints maps each virtue to the points awarded for one diary entry.
type VirtuePoints map[Virtue]int

// DiaryAnalysis is the garden growth data derived from one diary entry.
type DiaryAnalysis struct {
	Points  VirtuePoints
	Comment string
}

// DiaryEntry is a single dated diary submitted for a monthly retrospective.
// DateLabel is free-form; the client decides the format.
type DiaryEntry struct {
	DateLabel string
	Content   string
}

// RetroQuote is a sentence selected from a diary along with its date.
type RetroQuote struct {
	Text string
	Date string
}

// MonthlySummary holds the selected quotes per virtue.
// Every virtue is present; a virtue without quotes maps to an empty slice.
type MonthlySummary map[Virtue][]RetroQuote
