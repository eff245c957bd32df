package arxivblocks

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

func extractTableCell(cell *html.Node) (document.TableCell, bool) {
	runs := extractInlineRuns(cell, "")
	text := normalizeInlineSpacing(inlineRunsToText(runs))
	if text == "" {
		text = normalizeWhitespaceText(getText(cell, " ", true))
	}
	if len([]rune(text)) > maxTableCellChars {
		text = string([]rune(text)[:maxTableCellChars])
	}

	colspan := parsePositiveInt(attr(cell, "colspan"), 1)
	if colspan == 1 {
		colspan = classSpanValue(cell, "ltx_colspan", 1)
	}
	rowspan := parsePositiveInt(attr(cell, "rowspan"), 1)
	if rowspan == 1 {
		rowspan = classSpanValue(cell, "ltx_rowspan", 1)
	}
	isHeader := cell.Data == "th" || hasClass(cell, "ltx_th")

	if text == "" && colspan == 1 && rowspan == 1 {
		return document.TableCell{}, false
	}

	out := document.TableCell{Text: text, IsHeader: isHeader}
	if md := normalizeInlineSpacing(inlineRunsToMarkdown(runs)); md != "" && md != text {
		out.InlineMarkdown = md
	}
	if inlineRunsHaveStructure(runs) {
		out.InlineRuns = runs
	}
	if colspan > 1 {
		out.Colspan = colspan
	}
	if rowspan > 1 {
		out.Rowspan = rowspan
	}
	scope := strings.ToLower(strings.TrimSpace(attr(cell, "scope")))
	if scope == "" {
		if hasClass(cell, "ltx_th_row") {
			scope = "row"
		} else if hasClass(cell, "ltx_th_column") {
			scope = "col"
		}
	}
	out.Scope = scope
	return out, true
}

func extractTableRowCells(tr *html.Node) document.TableRow {
	cells := directElementChildren(tr, "th", "td")
	if len(cells) == 0 {
		cells = findAllDescendants(tr, "th", "td")
	}
	var row document.TableRow
	budget := 0
	for _, cell := range cells {
		parsed, ok := extractTableCell(cell)
		if !ok {
			continue
		}
		span := parsed.Colspan
		if span == 0 {
			span = 1
		}
		if budget+span > maxTableCols {
			break
		}
		row = append(row, parsed)
		budget += span
	}
	return row
}

func extractSpanTableRowCells(row *html.Node) document.TableRow {
	cells := directElementChildrenByClass(row, "ltx_td")
	if len(cells) == 0 {
		cells = findAllByClass(row, "ltx_td")
	}
	var out document.TableRow
	budget := 0
	for _, cell := range cells {
		parsed, ok := extractTableCell(cell)
		if !ok {
			continue
		}
		span := parsed.Colspan
		if span == 0 {
			span = 1
		}
		if budget+span > maxTableCols {
			break
		}
		out = append(out, parsed)
		budget += span
	}
	return out
}

func collectTableRows(section *html.Node, maxRows int) []document.TableRow {
	if section == nil {
		return nil
	}
	var rows []document.TableRow
	for _, tr := range directElementChildren(section, "tr") {
		row := extractTableRowCells(tr)
		if len(row) == 0 {
			continue
		}
		rows = append(rows, row)
		if len(rows) >= maxRows {
			return rows
		}
	}
	if len(rows) > 0 {
		return rows
	}
	for _, tr := range findAllDescendants(section, "tr") {
		row := extractTableRowCells(tr)
		if len(row) == 0 {
			continue
		}
		rows = append(rows, row)
		if len(rows) >= maxRows {
			break
		}
	}
	return rows
}

func collectSpanTableRows(section *html.Node, maxRows int) []document.TableRow {
	if section == nil {
		return nil
	}
	rowTags := directElementChildrenByClass(section, "ltx_tr")
	if len(rowTags) == 0 {
		rowTags = findAllByClass(section, "ltx_tr")
	}
	var rows []document.TableRow
	for _, rowTag := range rowTags {
		row := extractSpanTableRowCells(rowTag)
		if len(row) == 0 {
			continue
		}
		rows = append(rows, row)
		if len(rows) >= maxRows {
			break
		}
	}
	return rows
}

func collectSpanTableSectionRows(tabular *html.Node, sectionClass string, maxRows int) []document.TableRow {
	if tabular == nil {
		return nil
	}
	sections := directElementChildrenByClass(tabular, sectionClass)
	if len(sections) == 0 {
		sections = findAllByClass(tabular, sectionClass)
	}
	var rows []document.TableRow
	for _, section := range sections {
		remaining := maxRows - len(rows)
		if remaining <= 0 {
			break
		}
		rows = append(rows, collectSpanTableRows(section, remaining)...)
	}
	return rows
}

func legacyRowText(row document.TableRow) []string {
	var values []string
	for _, cell := range row {
		if t := strings.TrimSpace(cell.Text); t != "" {
			values = append(values, t)
		}
	}
	if len(values) > maxTableCols {
		values = values[:maxTableCols]
	}
	return values
}

func extractTableNotes(n *html.Node) []string {
	var notes []string
	seen := map[string]struct{}{}
	add := func(line string) bool {
		line = normalizeWhitespaceText(line)
		if line == "" {
			return false
		}
		if _, ok := seen[line]; ok {
			return false
		}
		seen[line] = struct{}{}
		notes = append(notes, line)
		return len(notes) >= maxTableNotes
	}

	if tfoot := findFirstDescendant(n, "tfoot"); tfoot != nil {
		for _, tr := range findAllDescendants(tfoot, "tr") {
			if add(getText(tr, " ", true)) {
				return notes
			}
		}
	}

	figureParent := n
	if n.Data != "figure" {
		figureParent = findParentByTagOrClass(n, "figure")
	}
	if figureParent != nil {
		for _, class := range []string{"ltx_note", "ltx_tablenote", "ltx_note_outer"} {
			for _, node := range findAllByClass(figureParent, class) {
				if add(getText(node, " ", true)) {
					return notes
				}
			}
		}
	}
	return notes
}

func extractTableCaption(n *html.Node) string {
	if caption := findFirstDescendant(n, "caption"); caption != nil {
		if text := extractInlineText(caption, ""); text != "" {
			return text
		}
	}
	figureParent := n
	if n.Data != "figure" {
		figureParent = findParentByTagOrClass(n, "figure")
	}
	if figureParent != nil {
		if figcaption := findFirstDescendant(figureParent, "figcaption"); figcaption != nil {
			if text := extractInlineText(figcaption, ""); text != "" {
				return text
			}
		}
	}
	return ""
}

func buildTableBlock(headerRows, bodyRows []document.TableRow, caption string, notes []string, index int) document.Block {
	var legacyColumns []string
	if len(headerRows) > 0 {
		legacyColumns = legacyRowText(headerRows[len(headerRows)-1])
	}
	var legacyRows [][]string
	for _, row := range bodyRows {
		if legacy := legacyRowText(row); len(legacy) > 0 {
			legacyRows = append(legacyRows, legacy)
		}
	}
	if len(legacyColumns) == 0 && len(legacyRows) > 0 {
		legacyColumns = legacyRows[0]
		legacyRows = legacyRows[1:]
	}

	block := document.Block{
		ID: blockID(index), Type: "table",
		Columns: legacyColumns, Rows: legacyRows,
		HeaderRows: headerRows, BodyRows: bodyRows,
	}
	if caption != "" {
		block.Caption = caption
	}
	if len(notes) > 0 {
		block.Notes = notes
	}
	return block
}

func hasHeaderCell(row document.TableRow) bool {
	for _, cell := range row {
		if cell.IsHeader {
			return true
		}
	}
	return false
}

func extractTableBlock(n *html.Node, index int) (document.Block, bool) {
	theadRows := collectTableRows(findFirstDescendant(n, "thead"), 4)
	bodyRows := collectTableRows(findFirstDescendant(n, "tbody"), maxTableRows)

	if len(theadRows) == 0 && len(bodyRows) == 0 {
		allRows := collectTableRows(n, maxTableRows+4)
		for _, row := range allRows {
			if hasHeaderCell(row) && len(bodyRows) == 0 && len(theadRows) < 4 {
				theadRows = append(theadRows, row)
			} else {
				bodyRows = append(bodyRows, row)
			}
			if len(bodyRows) >= maxTableRows {
				break
			}
		}
	}
	if len(theadRows) == 0 && len(bodyRows) == 0 {
		return document.Block{}, false
	}
	if len(theadRows) == 0 && len(bodyRows) > 0 && hasHeaderCell(bodyRows[0]) {
		theadRows = []document.TableRow{bodyRows[0]}
		bodyRows = bodyRows[1:]
	}

	caption := extractTableCaption(n)
	notes := extractTableNotes(n)
	return buildTableBlock(theadRows, bodyRows, caption, notes, index), true
}

func extractSpanTableFigureBlock(n *html.Node, index int) (document.Block, bool) {
	tabular := findFirstByClass(n, "ltx_tabular")
	if tabular == nil {
		return document.Block{}, false
	}

	theadRows := collectSpanTableSectionRows(tabular, "ltx_thead", 4)
	bodyRows := collectSpanTableSectionRows(tabular, "ltx_tbody", maxTableRows)

	if len(theadRows) == 0 && len(bodyRows) == 0 {
		allRows := collectSpanTableRows(tabular, maxTableRows+4)
		for _, row := range allRows {
			if hasHeaderCell(row) && len(bodyRows) == 0 && len(theadRows) < 4 {
				theadRows = append(theadRows, row)
			} else {
				bodyRows = append(bodyRows, row)
			}
			if len(bodyRows) >= maxTableRows {
				break
			}
		}
	}
	if len(theadRows) == 0 && len(bodyRows) == 0 {
		return document.Block{}, false
	}
	if len(theadRows) == 0 && len(bodyRows) > 0 && hasHeaderCell(bodyRows[0]) {
		theadRows = []document.TableRow{bodyRows[0]}
		bodyRows = bodyRows[1:]
	}

	caption := extractTableCaption(n)
	notes := extractTableNotes(n)
	return buildTableBlock(theadRows, bodyRows, caption, notes, index), true
}
