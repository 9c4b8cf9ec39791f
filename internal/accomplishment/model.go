package accomplishment

import (
	"time"

	"IMS-backend/internal/hours"
)

// Report: 日次成果報告（DAR）。1件に複数ファイル
type Report struct {
	DARID      int64
	StudentID  int64
	ReportDate time.Time
	Files      []string
	CreatedAt  time.Time
}

type ReportResponse struct {
	DARID     int64     `json:"dar_id"`
	StudentID int64     `json:"student_id"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Files     []string  `json:"files"`
	FileURLs  []string  `json:"file_urls"`
	CreatedAt time.Time `json:"created_at"`
}

func (r Report) toDTO() ReportResponse {
	urls := make([]string, 0, len(r.Files))
	for _, f := range r.Files {
		urls = append(urls, "/uploads/"+f)
	}
	files := r.Files
	if files == nil {
		files = []string{}
	}
	return ReportResponse{
		DARID:     r.DARID,
		StudentID: r.StudentID,
		Date:      r.ReportDate.Format(hours.DateLayout),
		Files:     files,
		FileURLs:  urls,
		CreatedAt: r.CreatedAt,
	}
}

func toDTOs(list []Report) []ReportResponse {
	out := make([]ReportResponse, 0, len(list))
	for i := range list {
		out = append(out, list[i].toDTO())
	}
	return out
}
