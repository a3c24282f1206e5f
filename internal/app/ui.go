package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"yashubustudio/simmatch/simmatch"
)

var stageLabels = map[string]string{
	"selected":       "列を選択しました",
	"embedded-left":  "1つ目のファイルをベクトル化しました",
	"embedded-right": "2つ目のファイルをベクトル化しました",
	"scored":         "類似度を計算しました",
}

type sideState struct {
	title  string
	table  *simmatch.Table
	spec   simmatch.TableSpec
	label  *widget.Label
	button *widget.Button
}

type uiState struct {
	service *simmatch.Service
	cfg     simmatch.Config
	cfgPath string
	logs    *logSink

	w         fyne.Window
	left      *sideState
	right     *sideState
	threshold *widget.Entry
	sortCheck *widget.Check
	bestCheck *widget.Check
	log       *widget.Entry
	status    *widget.Label
	progress  *widget.ProgressBar
	summary   *widget.Label
	resTbl    *widget.Table

	result *simmatch.Result
	header []string
	rows   [][]string

	statusBind   binding.String
	progressBind binding.Float

	runBtn    *widget.Button
	exportBtn *widget.Button
}

func buildUI(a fyne.App, svc *simmatch.Service, cfgPath string, logs *logSink) *uiState {
	u := &uiState{service: svc, cfgPath: cfgPath, logs: logs}
	u.cfg = svc.Config()
	u.w = a.NewWindow("Similarity Matcher - 2つの表の類似行検索")

	u.statusBind = binding.NewString()
	_ = u.statusBind.Set("準備完了")
	u.progressBind = binding.NewFloat()
	logs.start()

	u.left = &sideState{title: "ファイル1", spec: u.cfg.Left}
	u.right = &sideState{title: "ファイル2", spec: u.cfg.Right}
	for _, side := range []*sideState{u.left, u.right} {
		s := side
		s.label = widget.NewLabel("未選択")
		s.label.Wrapping = fyne.TextWrapWord
		s.button = widget.NewButtonWithIcon(s.title+"を開く", theme.FolderOpenIcon(), func() { u.onPick(s) })
	}

	u.threshold = widget.NewEntry()
	u.threshold.SetText(fmt.Sprintf("%.2f", u.cfg.Threshold))
	u.sortCheck = widget.NewCheck("スコア順に並べる", nil)
	u.bestCheck = widget.NewCheck("行ごとの最良一致シートを追加", nil)

	u.log = widget.NewEntryWithData(logs.bind)
	u.log.MultiLine = true
	u.log.Wrapping = fyne.TextWrapWord
	u.log.SetPlaceHolder("処理ログ")
	u.log.Disable()

	u.status = widget.NewLabelWithData(u.statusBind)
	u.progress = widget.NewProgressBarWithData(u.progressBind)
	u.progress.Min = 0
	u.progress.Max = float64(len(stageLabels))
	u.progress.Hide()
	u.summary = widget.NewLabel("")
	u.summary.Wrapping = fyne.TextWrapWord

	u.runBtn = widget.NewButtonWithIcon("照合実行", theme.ConfirmIcon(), func() { u.onRun() })
	u.exportBtn = widget.NewButtonWithIcon("Excelエクスポート", theme.DocumentSaveIcon(), func() { u.onExport() })
	u.exportBtn.Disable()

	u.resTbl = widget.NewTable(
		func() (int, int) {
			cols := len(u.header)
			if cols == 0 {
				return 0, 0
			}
			return len(u.rows) + 1, cols
		},
		func() fyne.CanvasObject {
			lbl := widget.NewLabel("")
			lbl.Truncation = fyne.TextTruncateEllipsis
			return lbl
		},
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			lbl := obj.(*widget.Label)
			if id.Row == 0 {
				lbl.TextStyle = fyne.TextStyle{Bold: true}
				if id.Col < len(u.header) {
					lbl.SetText(u.header[id.Col])
				}
				return
			}
			lbl.TextStyle = fyne.TextStyle{}
			row := id.Row - 1
			if row >= len(u.rows) || id.Col >= len(u.rows[row]) {
				lbl.SetText("")
				return
			}
			lbl.SetText(u.rows[row][id.Col])
		},
	)
	u.resTbl.OnSelected = func(id widget.TableCellID) {
		if id.Row <= 0 || u.result == nil || id.Row-1 >= len(u.result.Matches) {
			return
		}
		m := u.result.Matches[id.Row-1]
		dialog.ShowInformation("詳細", simmatch.FormatMatch(m, u.result.Left.Name, u.result.Right.Name)+
			"\n\n"+describeRecord(u.result.Left, m.Left)+"\n\n"+describeRecord(u.result.Right, m.Right), u.w)
	}

	files := container.NewVBox(
		widget.NewLabelWithStyle("入力ファイル", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		u.left.button, u.left.label,
		u.right.button, u.right.label,
	)
	settings := &widget.Form{Items: []*widget.FormItem{
		{Text: "閾値", Widget: u.threshold},
		{Text: "並び順", Widget: u.sortCheck},
		{Text: "出力", Widget: u.bestCheck},
	}}
	leftPane := container.NewVBox(
		files,
		widget.NewSeparator(),
		settings,
		container.NewGridWithColumns(2, u.runBtn, u.exportBtn),
		widget.NewSeparator(),
		widget.NewLabelWithStyle("進捗", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		u.progress,
		u.status,
		u.summary,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("ログ", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		container.NewGridWrap(fyne.NewSize(380, 220), u.log),
	)

	split := container.NewHSplit(container.NewVScroll(leftPane), u.resTbl)
	split.Offset = 0.3
	u.w.SetContent(split)
	u.w.Resize(fyne.NewSize(1280, 800))
	return u
}

func (u *uiState) onPick(side *sideState) {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		if rc == nil {
			return
		}
		defer rc.Close()
		name := rc.URI().Name()
		table, err := simmatch.ReadTableFrom(rc, name, simmatch.ReadOptions{})
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		u.appendLog(fmt.Sprintf("ファイル読込: %s (%d行)", name, len(table.Rows)))
		u.chooseColumns(side, table)
	}, u.w)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".xlsx", ".xlsm", ".csv", ".tsv"}))
	fd.Show()
}

// chooseColumns asks which column holds the text and which columns are
// copied into the export.
func (u *uiState) chooseColumns(side *sideState, table simmatch.Table) {
	choices := buildColumnChoices(table)
	if len(choices) == 0 {
		dialog.ShowError(simmatch.ErrEmptyTable, u.w)
		return
	}
	if len(choices) == 1 {
		u.applyColumns(side, table, choices[0], nil)
		return
	}
	meta := simmatch.DescribeTable(table, u.cfg.Columns)
	options := make([]string, len(choices))
	for i, c := range choices {
		options[i] = c.Label
	}

	textIdx := choiceForHeader(choices, table.Header, side.spec.TextColumn)
	if textIdx < 0 {
		textIdx = choiceForHeader(choices, table.Header, meta.SuggestedText)
	}
	if textIdx < 0 {
		textIdx = 0
	}
	textSel := widget.NewSelect(options, nil)
	textSel.SetSelected(options[textIdx])

	idGroup := widget.NewCheckGroup(options, nil)
	idNames := side.spec.IDColumns
	if idNames == nil {
		idNames = meta.SuggestedIDs
	}
	var selected []string
	for _, name := range idNames {
		if i := choiceForHeader(choices, table.Header, name); i >= 0 {
			selected = append(selected, options[i])
		}
	}
	idGroup.SetSelected(selected)

	form := &widget.Form{Items: []*widget.FormItem{
		{Text: "本文の列", Widget: textSel},
		{Text: "出力に含める列", Widget: container.NewVScroll(idGroup)},
	}}
	dialog.NewCustomConfirm(side.title+": 列の選択", "決定", "キャンセル", form, func(ok bool) {
		if !ok {
			return
		}
		text := choices[textIdx]
		var ids []columnChoice
		for i, opt := range options {
			if opt == textSel.Selected {
				text = choices[i]
			}
			for _, sel := range idGroup.Selected {
				if sel == opt {
					ids = append(ids, choices[i])
				}
			}
		}
		u.applyColumns(side, table, text, ids)
	}, u.w).Show()
}

func (u *uiState) applyColumns(side *sideState, table simmatch.Table, text columnChoice, ids []columnChoice) {
	side.table = &table
	side.spec.Name = table.Name
	side.spec.TextColumn = text.Ref
	side.spec.IDColumns = make([]string, 0, len(ids))
	for _, c := range ids {
		if c.Index != text.Index {
			side.spec.IDColumns = append(side.spec.IDColumns, c.Ref)
		}
	}
	side.label.SetText(fmt.Sprintf("%s (%d行) / 本文: %s", table.Name, len(table.Rows), text.Label))
}

func (u *uiState) onRun() {
	if u.left.table == nil || u.right.table == nil {
		dialog.ShowInformation("情報", "2つのファイルを選択してください", u.w)
		return
	}
	threshold, err := parseThreshold(u.threshold.Text)
	if err != nil {
		dialog.ShowError(err, u.w)
		return
	}
	u.rememberThreshold(threshold)

	left, right := *u.left.table, *u.right.table
	opts := simmatch.CompareOptions{
		Threshold:   &threshold,
		Left:        u.left.spec,
		Right:       u.right.spec,
		SortByScore: u.sortCheck.Checked,
	}
	done := 0
	opts.Progress = func(stage string) {
		done++
		_ = u.progressBind.Set(float64(done))
		if label, ok := stageLabels[stage]; ok {
			_ = u.statusBind.Set(label)
		}
	}

	_ = u.progressBind.Set(0)
	u.progress.Show()
	_ = u.statusBind.Set("処理中...")
	u.setBusy(true)
	start := time.Now()

	go func() {
		res, err := u.service.Compare(context.Background(), left, right, opts)
		u.setBusy(false)
		fyne.Do(func() { u.progress.Hide() })
		if err != nil {
			fyne.Do(func() { dialog.ShowError(err, u.w) })
			_ = u.statusBind.Set("エラー")
			u.appendLog(fmt.Sprintf("エラー: %v", err))
			return
		}
		for _, line := range simmatch.FormatReport(res) {
			u.appendLog(line)
		}
		elapsed := time.Since(start).Seconds()
		fyne.Do(func() {
			u.showResult(res)
			u.exportBtn.Enable()
		})
		_ = u.statusBind.Set(fmt.Sprintf("完了 %d件 (%.1fs)", len(res.Matches), elapsed))
	}()
}

func (u *uiState) showResult(res simmatch.Result) {
	u.result = &res
	u.header = simmatch.ExportHeader(res)
	u.rows = make([][]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		u.rows = append(u.rows, simmatch.MatchCells(m))
	}
	leftText := len(res.Left.IDHeaders) + 1
	rightText := leftText + len(res.Right.IDHeaders) + 2
	for i := range u.header {
		width := float32(110)
		if i == leftText || i == rightText {
			width = 340
		}
		u.resTbl.SetColumnWidth(i, width)
	}
	u.summary.SetText(simmatch.Summary(res))
	u.resTbl.Refresh()
}

func (u *uiState) onExport() {
	if u.result == nil {
		dialog.ShowInformation("情報", "出力データがありません", u.w)
		return
	}
	res := *u.result
	opts := simmatch.ExportOptions{SheetName: u.cfg.Output.SheetName, IncludeBest: u.bestCheck.Checked}
	fd := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
		if err != nil || uc == nil {
			return
		}
		defer uc.Close()
		if strings.EqualFold(uc.URI().Extension(), ".csv") {
			err = simmatch.WriteMatchesCSV(uc, res)
		} else {
			err = simmatch.WriteMatchesXLSX(uc, res, opts)
		}
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		u.appendLog(fmt.Sprintf("エクスポート完了: %s (%d件)", filepath.Base(uc.URI().Path()), len(res.Matches)))
	}, u.w)
	fd.SetFileName(fmt.Sprintf("matches_%s.xlsx", time.Now().Format("20060102150405")))
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".xlsx", ".csv"}))
	fd.Show()
}

func (u *uiState) rememberThreshold(threshold float32) {
	// A stored 0 reads back as the default, so a 0 run is not remembered.
	if threshold == u.cfg.Threshold || threshold == 0 {
		return
	}
	u.cfg.Threshold = threshold
	u.service.UpdateConfig(u.cfg)
	if err := simmatch.SaveConfig(u.cfgPath, u.cfg); err != nil {
		u.appendLog(fmt.Sprintf("設定の保存に失敗しました: %v", err))
	}
}

func (u *uiState) setBusy(b bool) {
	fyne.Do(func() {
		for _, btn := range []*widget.Button{u.runBtn, u.exportBtn, u.left.button, u.right.button} {
			if b {
				btn.Disable()
			} else {
				btn.Enable()
			}
		}
		if !b && u.result == nil {
			u.exportBtn.Disable()
		}
	})
}

func (u *uiState) appendLog(msg string) {
	u.logs.append(fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg))
}

func parseThreshold(text string) (float32, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 32)
	if err != nil {
		return 0, errors.New("閾値は数値で入力してください")
	}
	if !(v >= -1 && v <= 1) {
		return 0, fmt.Errorf("%.2f: %w", v, simmatch.ErrInvalidThreshold)
	}
	return float32(v), nil
}
