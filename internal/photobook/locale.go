package photobook

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// labels holds the title page strings for one supported language.
type labels struct {
	tag         language.Tag
	generatedOn string
	onePage     string
	manyPages   string
	months      [12]string
}

var supportedTags = []language.Tag{language.English, language.Indonesian}

var labelsByTag = []labels{
	{
		tag:         language.English,
		generatedOn: "Generated on %s",
		onePage:     "1 coloring page",
		manyPages:   "%d coloring pages",
		months: [12]string{"January", "February", "March", "April", "May", "June",
			"July", "August", "September", "October", "November", "December"},
	},
	{
		tag:         language.Indonesian,
		generatedOn: "Dibuat pada %s",
		onePage:     "1 halaman mewarnai",
		manyPages:   "%d halaman mewarnai",
		months: [12]string{"Januari", "Februari", "Maret", "April", "Mei", "Juni",
			"Juli", "Agustus", "September", "Oktober", "November", "Desember"},
	},
}

var localeMatcher = language.NewMatcher(supportedTags)

// labelsFor picks the closest supported language for raw, falling back to
// fallback and then English.
func labelsFor(raw, fallback string) labels {
	for _, candidate := range []string{raw, fallback} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		tag, err := language.Parse(candidate)
		if err != nil {
			continue
		}
		_, idx, conf := localeMatcher.Match(tag)
		if conf != language.No {
			return labelsByTag[idx]
		}
	}
	return labelsByTag[0]
}

func (l labels) code() string {
	base, _ := l.tag.Base()
	return base.String()
}

func (l labels) generatedLabel(at time.Time) string {
	at = at.UTC()
	stamp := fmt.Sprintf("%d %s %d, %02d:%02d UTC", at.Day(), l.months[at.Month()-1], at.Year(), at.Hour(), at.Minute())
	return fmt.Sprintf(l.generatedOn, stamp)
}

func (l labels) pageCountLabel(n int) string {
	if n == 1 {
		return l.onePage
	}
	return message.NewPrinter(l.tag).Sprintf(l.manyPages, n)
}
