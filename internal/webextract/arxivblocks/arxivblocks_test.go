package arxivblocks

import (
	"strings"
	"testing"
)

func TestExtract_HeadingAndParagraph(t *testing.T) {
	page := `<html><body><article class="ltx_document">
		<h2 class="ltx_title">Introduction</h2>
		<div class="ltx_para"><p>This is a sufficiently long paragraph about the method we study here.</p></div>
	</article></body></html>`
	out, err := Extract(page, "https://arxiv.org/html/2401.00001", 10000)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.BlockCounts["h2"] != 1 {
		t.Fatalf("expected one h2 block, got counts=%v", out.BlockCounts)
	}
	if out.BlockCounts["paragraph"] != 1 {
		t.Fatalf("expected one paragraph block, got counts=%v", out.BlockCounts)
	}
	if !strings.Contains(out.RawContent, "Introduction") {
		t.Fatalf("expected raw content to include heading text, got %q", out.RawContent)
	}
}

func TestExtract_NonExclusiveParagraphDivDescendsIntoChildren(t *testing.T) {
	page := `<html><body><article>
		<div class="ltx_para">
			<div class="ltx_para"><p>Nested paragraph text long enough to pass the minimum length check.</p></div>
		</div>
	</article></body></html>`
	out, err := Extract(page, "https://arxiv.org/html/2401.00001", 10000)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.BlockCounts["paragraph"] != 1 {
		t.Fatalf("expected the outer div to yield no block and only the inner <p> to produce one, got counts=%v", out.BlockCounts)
	}
}

func TestExtract_List(t *testing.T) {
	page := `<html><body><article>
		<ul><li>first item</li><li>second item</li></ul>
	</article></body></html>`
	out, err := Extract(page, "https://arxiv.org/html/2401.00001", 10000)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.BlockCounts["list"] != 1 {
		t.Fatalf("expected one list block, got counts=%v", out.BlockCounts)
	}
	if out.Blocks[0].Type != "list" || len(out.Blocks[0].Items) != 2 {
		t.Fatalf("unexpected list block: %+v", out.Blocks[0])
	}
}

func TestExtract_CodeBlock(t *testing.T) {
	page := `<html><body><article><pre>line one
line two</pre></article></body></html>`
	out, err := Extract(page, "https://arxiv.org/html/2401.00001", 10000)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.BlockCounts["code"] != 1 {
		t.Fatalf("expected one code block, got counts=%v", out.BlockCounts)
	}
}

func TestExtract_Equation(t *testing.T) {
	page := `<html><body><article>
		<div class="ltx_equation"><math alttext="E = mc^2"><annotation encoding="application/x-tex">E = mc^2</annotation></math></div>
	</article></body></html>`
	out, err := Extract(page, "https://arxiv.org/html/2401.00001", 10000)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.BlockCounts["equation"] != 1 {
		t.Fatalf("expected one equation block, got counts=%v", out.BlockCounts)
	}
	if out.Blocks[0].EquationTex != "E = mc^2" {
		t.Fatalf("unexpected equation tex: %q", out.Blocks[0].EquationTex)
	}
}

func TestExtract_ReferenceItemWithCitation(t *testing.T) {
	page := `<html><body><article>
		<li id="bib.1" class="ltx_bibitem">Smith, J. (2020). arXiv:2001.01234</li>
	</article></body></html>`
	out, err := Extract(page, "https://arxiv.org/html/2401.00001", 10000)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.BlockCounts["reference"] != 1 {
		t.Fatalf("expected one reference block, got counts=%v", out.BlockCounts)
	}
	block := out.Blocks[0]
	if block.AnchorID != "article-ref-bib-1" {
		t.Fatalf("unexpected anchor id: %q", block.AnchorID)
	}
	if len(block.Links) == 0 || block.Links[0].Kind != "arxiv" {
		t.Fatalf("expected an arxiv reference link, got %+v", block.Links)
	}
}

func TestExtract_DataTable(t *testing.T) {
	page := `<html><body><article>
		<table>
			<thead><tr><th>Name</th><th>Score</th></tr></thead>
			<tbody>
				<tr><td>Alpha</td><td>0.91</td></tr>
				<tr><td>Beta</td><td>0.87</td></tr>
			</tbody>
		</table>
	</article></body></html>`
	out, err := Extract(page, "https://arxiv.org/html/2401.00001", 10000)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.BlockCounts["table"] != 1 {
		t.Fatalf("expected one table block, got counts=%v", out.BlockCounts)
	}
	block := out.Blocks[0]
	if len(block.HeaderRows) != 1 || len(block.HeaderRows[0]) != 2 {
		t.Fatalf("unexpected header rows: %+v", block.HeaderRows)
	}
	if len(block.BodyRows) != 2 {
		t.Fatalf("unexpected body rows: %+v", block.BodyRows)
	}
}

func TestExtract_SpanTableFigure(t *testing.T) {
	page := `<html><body><article>
		<figure class="ltx_table">
			<div class="ltx_tabular">
				<div class="ltx_thead"><div class="ltx_tr"><span class="ltx_td ltx_th">Col A</span></div></div>
				<div class="ltx_tbody"><div class="ltx_tr"><span class="ltx_td">Val 1</span></div></div>
			</div>
			<figcaption>Results table</figcaption>
		</figure>
	</article></body></html>`
	out, err := Extract(page, "https://arxiv.org/html/2401.00001", 10000)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.BlockCounts["table"] != 1 {
		t.Fatalf("expected span-table figure to yield one table block, got counts=%v", out.BlockCounts)
	}
	if out.Blocks[0].Caption != "Results table" {
		t.Fatalf("unexpected caption: %q", out.Blocks[0].Caption)
	}
}

func TestExtract_FigureWithImage(t *testing.T) {
	page := `<html><body><article>
		<figure><img src="fig1.png"/><figcaption>A diagram</figcaption></figure>
	</article></body></html>`
	out, err := Extract(page, "https://arxiv.org/html/2401.00001", 10000)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.BlockCounts["image"] != 1 {
		t.Fatalf("expected one image block, got counts=%v", out.BlockCounts)
	}
	if !strings.HasPrefix(out.Blocks[0].ImageURL, "https://arxiv.org/html/") {
		t.Fatalf("expected resolved image url, got %q", out.Blocks[0].ImageURL)
	}
}

func TestExtract_DecorativeImageIsSkipped(t *testing.T) {
	page := `<html><body><article>
		<figure><img src="site-logo.png"/></figure>
	</article></body></html>`
	out, err := Extract(page, "https://arxiv.org/html/2401.00001", 10000)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.BlockCounts["image"] != 0 {
		t.Fatalf("expected decorative logo image to be skipped, got counts=%v", out.BlockCounts)
	}
}

func TestExtract_MaxCharsTruncatesRawContent(t *testing.T) {
	page := `<html><body><article>
		<div class="ltx_para"><p>` + strings.Repeat("word ", 200) + `</p></div>
	</article></body></html>`
	out, err := Extract(page, "https://arxiv.org/html/2401.00001", 50)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len([]rune(out.RawContent)) > 50 {
		t.Fatalf("expected raw content truncated to 50 runes, got %d", len([]rune(out.RawContent)))
	}
}

func TestAppendUniqueSegment_DedupesContainedText(t *testing.T) {
	longText := strings.Repeat("a", 80)
	segments := appendUniqueSegment(nil, longText)
	segments = appendUniqueSegment(segments, longText+" extra")
	if len(segments) != 1 {
		t.Fatalf("expected containment dedup to keep a single segment, got %v", segments)
	}
}

func TestAppendUniqueSegment_KeepsDistinctShortSegments(t *testing.T) {
	segments := appendUniqueSegment(nil, "short one")
	segments = appendUniqueSegment(segments, "short two")
	if len(segments) != 2 {
		t.Fatalf("expected two distinct short segments, got %v", segments)
	}
}
