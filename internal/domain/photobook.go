package domain

import "time"

// MaxPhotobookImages caps how many pages a single photobook may request.
const MaxPhotobookImages = 200

// PhotobookImage is one page source, in book order.
type PhotobookImage struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

// PhotobookJob assembles coloring pages into a downloadable PDF.
type PhotobookJob struct {
	ID             string
	UserID         string
	Title          string
	Description    string
	Locale         string
	Images         []PhotobookImage
	Status         JobStatus
	ProcessedCount int
	TotalCount     int
	PDFPath        *string
	PDFURL         *string
	ErrorMessage   *string
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	UpdatedAt      time.Time
}

// Clone returns a deep copy.
func (j *PhotobookJob) Clone() *PhotobookJob {
	if j == nil {
		return nil
	}
	out := *j
	out.Images = append([]PhotobookImage(nil), j.Images...)
	out.PDFPath = cloneString(j.PDFPath)
	out.PDFURL = cloneString(j.PDFURL)
	out.ErrorMessage = cloneString(j.ErrorMessage)
	out.StartedAt = cloneTime(j.StartedAt)
	out.CompletedAt = cloneTime(j.CompletedAt)
	return &out
}
