package hours

// Credited: 時間集計の対象になりうる記録
type Credited interface {
	CreditedHours() float64
	Counts() bool // 承認済みかつ未削除
}

type Summary struct {
	Rendered  float64 `json:"rendered_hours"`
	Remaining float64 `json:"remaining_hours"`
	Required  float64 `json:"required_hours"`
	Percent   float64 `json:"percent"`
}

func Rendered[T Credited](items []T) float64 {
	var sum float64
	for _, it := range items {
		if it.Counts() {
			sum += it.CreditedHours()
		}
	}
	return Round2(sum)
}

// Summarize: remaining は [0, 600] に丸める
func Summarize(rendered float64) Summary {
	rendered = Round2(rendered)
	if rendered < 0 {
		rendered = 0
	}
	remaining := RequiredHours - rendered
	if remaining < 0 {
		remaining = 0
	}
	pct := rendered / RequiredHours * 100
	if pct > 100 {
		pct = 100
	}
	return Summary{
		Rendered:  rendered,
		Remaining: Round2(remaining),
		Required:  RequiredHours,
		Percent:   Round2(pct),
	}
}
