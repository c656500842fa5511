package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"docsearch-platform/internal/config"
	"docsearch-platform/models"
	"docsearch-platform/utils"

	"github.com/google/uuid"
)

// ChunkInput is everything the chunker needs for one document: the
// normalized element stream, the filtered object set, the assembled text
// with section spans, and the set of objects with verified binaries.
type ChunkInput struct {
	Elements  []Element
	Objects   []models.ExtractedObject
	Assembled AssembledText
	Sections  models.SectionSummary
	Verified  VerifiedBinarySet
}

// Chunker turns a document's elements and objects into ordered,
// token-bounded chunks. Three strategies are tried in priority order and
// the first to yield text chunks wins; image and table chunks are
// appended regardless of which strategy produced the text.
type Chunker struct {
	params models.ChunkParams
}

func NewChunker(cfg *config.Config) *Chunker {
	return &Chunker{
		params: models.ChunkParams{
			MinTokens:     cfg.MinChunkTokens,
			TargetTokens:  cfg.TargetChunkTokens,
			MaxTokens:     cfg.MaxChunkTokens,
			OverlapTokens: cfg.ChunkOverlapTokens,
		},
	}
}

func (c *Chunker) Params() models.ChunkParams {
	return c.params
}

// Chunk produces the ordered chunk list and reports which strategy was
// used. Index assignment runs here, synchronously: text chunks first in
// document order, then image chunks, then table chunks, contiguous from
// zero. Chunking never fails; a document with no text still yields its
// image and table chunks.
func (c *Chunker) Chunk(in ChunkInput) (string, []models.Chunk) {
	var text []models.Chunk
	strategy := models.StrategyFixedWindow

	if in.Sections.RoleSignal {
		if text = c.structureChunks(in.Elements); len(text) > 0 {
			strategy = models.StrategyStructure
		}
	}
	if len(text) == 0 && len(in.Sections.Sections) > 0 {
		if text = c.sectionChunks(in.Assembled, in.Sections); len(text) > 0 {
			strategy = models.StrategySection
		}
	}
	if len(text) == 0 {
		text = c.fixedWindowChunks(in.Objects)
		strategy = models.StrategyFixedWindow
	}

	chunks := text
	chunks = append(chunks, c.imageChunks(in.Objects, in.Verified)...)
	chunks = append(chunks, c.tableChunks(in.Objects)...)

	for i := range chunks {
		chunks[i].ID = uuid.NewString()
		chunks[i].ChunkIndex = i
	}
	return strategy, chunks
}

// headingNumberRegex captures a leading "2" or "2.1" style number.
var headingNumberRegex = regexp.MustCompile(`^(\d+(?:\.\d+)*)[.)]?\s`)

// sectionPathFromTitle builds a path like "2 > 2.1" from a numbered
// heading, or "" when the heading carries no number.
func sectionPathFromTitle(title string) string {
	m := headingNumberRegex.FindStringSubmatch(title)
	if m == nil {
		return ""
	}
	parts := strings.Split(m[1], ".")
	segments := make([]string, len(parts))
	for i := range parts {
		segments[i] = strings.Join(parts[:i+1], ".")
	}
	return strings.Join(segments, " > ")
}

// elementGroup is the run of content between two headings.
type elementGroup struct {
	path      string
	topLevel  bool
	texts     []string
	objectIDs []string
	pageMin   int
	pageMax   int
}

func (g *elementGroup) add(el Element) {
	text := strings.TrimSpace(el.Text)
	if text != "" {
		g.texts = append(g.texts, text)
	}
	if el.ObjectID != "" {
		g.objectIDs = append(g.objectIDs, el.ObjectID)
	}
	if el.Page > 0 {
		if g.pageMin == 0 || el.Page < g.pageMin {
			g.pageMin = el.Page
		}
		if el.Page > g.pageMax {
			g.pageMax = el.Page
		}
	}
}

func (g *elementGroup) tokens() []string {
	return utils.Tokenize(strings.Join(g.texts, "\n"))
}

// structureChunks groups consecutive elements under their nearest
// preceding heading and splits each group by the token window. Groups
// shorter than min_tokens merge forward into the next heading's group so
// chunks only cross a heading boundary when the content was too small to
// stand alone.
func (c *Chunker) structureChunks(elements []Element) []models.Chunk {
	var groups []*elementGroup
	unnumbered := 0
	current := &elementGroup{path: "", topLevel: true}

	for _, el := range elements {
		if el.Category == CategoryHeader || el.Category == CategoryFooter {
			continue
		}
		if !el.IsHeadingLike() {
			if el.Category == CategoryParagraph || el.Category == CategoryList || el.Category == "" {
				current.add(el)
			}
			continue
		}

		if len(current.texts) > 0 {
			groups = append(groups, current)
		}
		path := sectionPathFromTitle(el.Text)
		if path == "" {
			unnumbered++
			path = strconv.Itoa(unnumbered)
		}
		current = &elementGroup{path: path, topLevel: !strings.Contains(path, ">")}
		current.add(el)
	}
	if len(current.texts) > 0 {
		groups = append(groups, current)
	}

	var chunks []models.Chunk
	var carry *elementGroup

	for i, g := range groups {
		if carry != nil {
			g.texts = append(carry.texts, g.texts...)
			g.objectIDs = append(carry.objectIDs, g.objectIDs...)
			if carry.pageMin > 0 && (g.pageMin == 0 || carry.pageMin < g.pageMin) {
				g.pageMin = carry.pageMin
			}
			if carry.pageMax > g.pageMax {
				g.pageMax = carry.pageMax
			}
			carry = nil
		}

		tokens := g.tokens()
		if len(tokens) < c.params.MinTokens && i+1 < len(groups) {
			carry = g
			continue
		}

		for _, window := range splitTokens(tokens, c.params.MaxTokens, c.params.OverlapTokens) {
			chunks = append(chunks, models.Chunk{
				Text:        utils.JoinTokens(window),
				TokenCount:  len(window),
				Modality:    models.ModalityText,
				SectionPath: g.path,
				ObjectIDs:   dedupe(g.objectIDs),
				PageStart:   g.pageMin,
				PageEnd:     pageEnd(g.pageMax),
			})
		}
	}
	return chunks
}

// sectionChunks slices the combined text by section spans and windows each
// slice independently at target_tokens.
func (c *Chunker) sectionChunks(assembled AssembledText, summary models.SectionSummary) []models.Chunk {
	window := c.params.TargetTokens
	if window < c.params.MinTokens {
		window = c.params.MinTokens
	}
	if window > c.params.MaxTokens {
		window = c.params.MaxTokens
	}

	sections := summary.Sections
	if len(sections) > 0 && sections[0].StartOffset > 0 {
		preamble := models.SectionInfo{
			Type:        models.SectionOther,
			Index:       -1,
			StartOffset: 0,
			EndOffset:   sections[0].StartOffset,
		}
		sections = append([]models.SectionInfo{preamble}, sections...)
	}

	var chunks []models.Chunk
	for _, sec := range sections {
		if sec.StartOffset >= len(assembled.Text) {
			continue
		}
		end := sec.EndOffset
		if end > len(assembled.Text) {
			end = len(assembled.Text)
		}
		slice := assembled.Text[sec.StartOffset:end]
		tokens := utils.Tokenize(slice)
		if len(tokens) == 0 {
			continue
		}

		pages := assembled.PagesInRange(sec.StartOffset, end)
		pageMin, pageMax := pageSpan(pages)
		path := fmt.Sprintf("%s#%d", sec.Type, sec.Index)
		objectIDs := objectIDsInRange(assembled, sec.StartOffset, end)

		for _, w := range splitTokens(tokens, window, c.params.OverlapTokens) {
			chunks = append(chunks, models.Chunk{
				Text:        utils.JoinTokens(w),
				TokenCount:  len(w),
				Modality:    models.ModalityText,
				SectionPath: path,
				ObjectIDs:   objectIDs,
				PageStart:   pageMin,
				PageEnd:     pageEnd(pageMax),
			})
		}
	}
	return chunks
}

// fixedWindowChunks slides a max_tokens window with overlap across the
// concatenated text of all TEXT_BLOCK objects in object order.
func (c *Chunker) fixedWindowChunks(objects []models.ExtractedObject) []models.Chunk {
	var tokens []string
	var tokenObject []int // index into objects, per token

	for i, obj := range objects {
		if obj.ObjectType != models.ObjectTextBlock || strings.TrimSpace(obj.Text) == "" {
			continue
		}
		for _, tok := range utils.Tokenize(obj.Text) {
			tokens = append(tokens, tok)
			tokenObject = append(tokenObject, i)
		}
	}
	if len(tokens) == 0 {
		return nil
	}

	var chunks []models.Chunk
	start := 0
	step := c.params.MaxTokens - c.params.OverlapTokens
	if step <= 0 {
		step = c.params.MaxTokens
	}

	for start < len(tokens) {
		end := start + c.params.MaxTokens
		if end > len(tokens) {
			end = len(tokens)
		}

		var ids []string
		pageMin, pageMax := 0, 0
		for t := start; t < end; t++ {
			obj := objects[tokenObject[t]]
			ids = append(ids, obj.ID)
			if p := obj.PageOrZero(); p > 0 {
				if pageMin == 0 || p < pageMin {
					pageMin = p
				}
				if p > pageMax {
					pageMax = p
				}
			}
		}

		chunks = append(chunks, models.Chunk{
			Text:       utils.JoinTokens(tokens[start:end]),
			TokenCount: end - start,
			Modality:   models.ModalityText,
			ObjectIDs:  dedupe(ids),
			PageStart:  pageMin,
			PageEnd:    pageEnd(pageMax),
		})

		if end >= len(tokens) {
			break
		}
		start += step
	}
	return chunks
}

// imageChunks emits one chunk per retained IMAGE/FIGURE object whose
// binary was verified. The chunk carries the caption as text with a zero
// token count; the binary lives behind BlobKey.
func (c *Chunker) imageChunks(objects []models.ExtractedObject, verified VerifiedBinarySet) []models.Chunk {
	var chunks []models.Chunk
	for _, obj := range objects {
		if obj.ObjectType != models.ObjectImage && obj.ObjectType != models.ObjectFigure {
			continue
		}
		if !verified.Contains(obj.ID) {
			continue
		}
		page := obj.PageOrZero()
		chunks = append(chunks, models.Chunk{
			Text:       strings.TrimSpace(obj.Payload.Caption),
			TokenCount: 0,
			Modality:   models.ModalityImage,
			ObjectIDs:  []string{obj.ID},
			PageStart:  page,
			PageEnd:    pageEnd(page),
			BlobKey:    verified.BlobKey(obj.ID),
		})
	}
	return chunks
}

// tableChunks emits one chunk per retained TABLE object, rendered as
// markdown when a cell grid is available.
func (c *Chunker) tableChunks(objects []models.ExtractedObject) []models.Chunk {
	var chunks []models.Chunk
	for _, obj := range objects {
		if obj.ObjectType != models.ObjectTable {
			continue
		}
		text := RenderTableMarkdown(obj.Payload.CellGrid)
		if text == "" {
			text = fmt.Sprintf("[table page %d #%d]", obj.PageOrZero(), obj.Sequence)
		}
		page := obj.PageOrZero()
		chunks = append(chunks, models.Chunk{
			Text:       text,
			TokenCount: utils.CountTokens(text),
			Modality:   models.ModalityTable,
			ObjectIDs:  []string{obj.ID},
			PageStart:  page,
			PageEnd:    pageEnd(page),
		})
	}
	return chunks
}

// RenderTableMarkdown serializes a cell grid as a markdown table, treating
// the first row as the header. Returns "" for an empty grid.
func RenderTableMarkdown(grid [][]string) string {
	if len(grid) == 0 {
		return ""
	}

	cols := 0
	for _, row := range grid {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return ""
	}

	var sb strings.Builder
	writeRow := func(row []string) {
		sb.WriteString("|")
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(row) {
				cell = strings.ReplaceAll(strings.TrimSpace(row[i]), "|", "\\|")
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteString("\n")
	}

	writeRow(grid[0])
	sb.WriteString("|")
	for i := 0; i < cols; i++ {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")
	for _, row := range grid[1:] {
		writeRow(row)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// splitTokens windows a token list with overlap. The final window may be
// shorter than the window size but consecutive windows overlap by exactly
// overlap tokens.
func splitTokens(tokens []string, window, overlap int) [][]string {
	if len(tokens) == 0 {
		return nil
	}
	if window <= 0 {
		return [][]string{tokens}
	}
	step := window - overlap
	if step <= 0 {
		step = window
	}

	var out [][]string
	for start := 0; start < len(tokens); start += step {
		end := start + window
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, tokens[start:end])
		if end >= len(tokens) {
			break
		}
	}
	return out
}

func objectIDsInRange(assembled AssembledText, start, end int) []string {
	var ids []string
	for _, sp := range assembled.Spans {
		if sp.Start < end && sp.End > start && sp.ObjectID != "" {
			ids = append(ids, sp.ObjectID)
		}
	}
	return dedupe(ids)
}

func pageSpan(pages []int) (int, int) {
	minPage, maxPage := 0, 0
	for _, p := range pages {
		if minPage == 0 || p < minPage {
			minPage = p
		}
		if p > maxPage {
			maxPage = p
		}
	}
	return minPage, maxPage
}

// pageEnd converts an inclusive last page into the half-open end bound.
func pageEnd(maxPage int) int {
	if maxPage == 0 {
		return 0
	}
	return maxPage + 1
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
