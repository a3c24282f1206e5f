package web

import "yashubustudio/simmatch/simmatch"

type SideSummary struct {
	Name       string   `json:"name"`
	TextColumn string   `json:"textColumn"`
	IDColumns  []string `json:"idColumns,omitempty"`
	Rows       int      `json:"rows"`
}

type MatchItem struct {
	LeftRow   int      `json:"leftRow"`
	LeftText  string   `json:"leftText"`
	LeftIDs   []string `json:"leftIds,omitempty"`
	RightRow  int      `json:"rightRow"`
	RightText string   `json:"rightText"`
	RightIDs  []string `json:"rightIds,omitempty"`
	Score     float32  `json:"score"`
}

type CompareResponse struct {
	ID          string      `json:"id"`
	Threshold   float32     `json:"threshold"`
	Left        SideSummary `json:"left"`
	Right       SideSummary `json:"right"`
	Pairs       int         `json:"pairs"`
	Matches     []MatchItem `json:"matches"`
	Best        []MatchItem `json:"best"`
	Report      []string    `json:"report"`
	DownloadURL string      `json:"downloadUrl"`
}

func newCompareResponse(entry StoredResult) CompareResponse {
	res := entry.Result
	return CompareResponse{
		ID:          entry.ID,
		Threshold:   res.Threshold,
		Left:        summarizeSide(res.Left),
		Right:       summarizeSide(res.Right),
		Pairs:       res.Pairs(),
		Matches:     toMatchItems(res.Matches),
		Best:        toMatchItems(res.Best),
		Report:      simmatch.FormatReport(res),
		DownloadURL: downloadURL(entry.ID),
	}
}

func summarizeSide(s simmatch.Side) SideSummary {
	return SideSummary{
		Name:       s.Name,
		TextColumn: s.TextHeader,
		IDColumns:  s.IDHeaders,
		Rows:       len(s.Records),
	}
}

func toMatchItems(matches []simmatch.Match) []MatchItem {
	out := make([]MatchItem, 0, len(matches))
	for _, m := range matches {
		out = append(out, MatchItem{
			LeftRow:   m.Left.Row,
			LeftText:  m.Left.Text,
			LeftIDs:   m.Left.IDs,
			RightRow:  m.Right.Row,
			RightText: m.Right.Text,
			RightIDs:  m.Right.IDs,
			Score:     m.Score,
		})
	}
	return out
}

func downloadURL(id string) string {
	return "/api/v1/results/" + id + "/download"
}
