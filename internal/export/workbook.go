package export

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

type SheetSpec struct {
	Title  string
	Header []string
	Rows   [][]string
}

// NewWorkbook: 1シート目が既定の Sheet1 を置き換える。見出しは太字＋オートフィルタ
func NewWorkbook(sheets []SheetSpec) (*excelize.File, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook needs at least one sheet")
	}
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("new style: %w", err)
	}

	used := make(map[string]struct{}, len(sheets))
	for i, s := range sheets {
		name := uniqueSheetName(s.Title, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				_ = f.Close()
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("new sheet %s: %w", name, err)
		}
		if err := fillSheet(f, name, s, bold); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

func fillSheet(f *excelize.File, name string, s SheetSpec, bold int) error {
	for col, h := range s.Header {
		cell := fmt.Sprintf("%s1", colName(col+1))
		if err := f.SetCellStr(name, cell, h); err != nil {
			return fmt.Errorf("set cell %s!%s: %w", name, cell, err)
		}
	}
	for r, row := range s.Rows {
		for c, val := range row {
			cell := fmt.Sprintf("%s%d", colName(c+1), r+2)
			if err := f.SetCellStr(name, cell, val); err != nil {
				return fmt.Errorf("set cell %s!%s: %w", name, cell, err)
			}
		}
	}
	if len(s.Header) == 0 {
		return nil
	}
	end := colName(len(s.Header)) + "1"
	_ = f.SetCellStyle(name, "A1", end, bold)
	_ = f.AutoFilter(name, "A1:"+end, nil)

	// 幅は見出しと先頭50行から概算
	for c := 1; c <= len(s.Header); c++ {
		w := utf8.RuneCountInString(s.Header[c-1])
		for r := 0; r < min(50, len(s.Rows)); r++ {
			if c-1 < len(s.Rows[r]) {
				w = max(w, utf8.RuneCountInString(s.Rows[r][c-1]))
			}
		}
		width := min(max(float64(w)*1.1, 10), 60)
		_ = f.SetColWidth(name, colName(c), colName(c), width)
	}
	return nil
}

// colName: 1 -> A, 27 -> AA
func colName(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+(n%26))) + s
		n /= 26
	}
	return s
}

var invalidSheetRe = regexp.MustCompile(`[\\/:*?\[\]]+`)

// uniqueSheetName: Excel のシート名制約（31文字・禁止文字・重複不可）に合わせる
func uniqueSheetName(title string, used map[string]struct{}) string {
	base := strings.TrimSpace(invalidSheetRe.ReplaceAllString(title, "_"))
	base = strings.Trim(base, "'")
	if base == "" {
		base = "Sheet"
	}
	base = truncateRunes(base, maxSheetName)

	name := base
	for i := 2; ; i++ {
		if _, ok := used[strings.ToLower(name)]; !ok {
			break
		}
		suffix := fmt.Sprintf(" (%d)", i)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = struct{}{}
	return name
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
