package library

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	applog "bookbrain/internal/platform/log"
)

// ── Extractor 接口 ───────────────────────────────────────────

// ExtractResult 文档抽取结果。
type ExtractResult struct {
	Text  string `json:"text"`
	Pages int    `json:"pages,omitempty"`
	Items int    `json:"items,omitempty"` // EPUB 内容项数量
}

// Extractor 文档文本抽取器接口。
type Extractor interface {
	// Extract 抽取纯文本内容。
	Extract(reader io.Reader, filename string) (*ExtractResult, error)
	// SupportedTypes 支持的文件扩展名。
	SupportedTypes() []string
}

// ── 清洗辅助 ─────────────────────────────────────────────────

var (
	rePageStamp   = regexp.MustCompile(`(?i)\d*_book\.indb\s+\d+`)
	reTimestamp   = regexp.MustCompile(`\d+/\d+/\d+\s+\d+:\d+\s+[AP]M`)
	reHorizSpace  = regexp.MustCompile(`[ \t]+`)
	reTrailSpace  = regexp.MustCompile(`[ \t]+\n`)
	reMultiBlank  = regexp.MustCompile(`\n{3,}`)
	reHTMLTag     = regexp.MustCompile(`<[^>]+>`)
	reScriptBlock = regexp.MustCompile(`(?s)<script[^>]*>.*?</script>`)
	reStyleBlock  = regexp.MustCompile(`(?s)<style[^>]*>.*?</style>`)
)

// CleanText 抽取后的统一清洗：去除 PDF 页戳、折叠空白。
// 段落边界（空行）保留，后续分段依赖它。
func CleanText(text string) string {
	text = rePageStamp.ReplaceAllString(text, "")
	text = reHorizSpace.ReplaceAllString(text, " ")
	text = reTrailSpace.ReplaceAllString(text, "\n")
	text = reMultiBlank.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ── PDF Extractor ────────────────────────────────────────────

// PDFExtractor 按页序抽取 PDF 文本，页间以换行连接。
type PDFExtractor struct{}

func (e *PDFExtractor) SupportedTypes() []string {
	return []string{".pdf"}
}

func (e *PDFExtractor) Extract(reader io.Reader, filename string) (*ExtractResult, error) {
	// pdf 库需要 io.ReaderAt + size，先读到内存
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf data: %w", err)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	pages := r.NumPage()
	pageTexts := make([]string, 0, pages)

	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pageTexts = append(pageTexts, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// 单页失败不致命，贡献空串继续
			applog.Warn("[Library/PDF] Failed to extract page text", "file", filename, "page", i, "error", err)
			pageTexts = append(pageTexts, "")
			continue
		}
		pageTexts = append(pageTexts, strings.TrimSpace(text))
	}

	return &ExtractResult{
		Text:  strings.Join(pageTexts, "\n"),
		Pages: pages,
	}, nil
}

// ── EPUB Extractor ───────────────────────────────────────────

// EPUBExtractor 按 spine 顺序抽取 EPUB 内容项文本，项间以空行连接。
// EPUB 本质是 XHTML 的 zip 容器，语料中没有可用的 EPUB 库，这里走
// archive/zip + OPF 解析。
type EPUBExtractor struct{}

func (e *EPUBExtractor) SupportedTypes() []string {
	return []string{".epub"}
}

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Manifest []epubItem `xml:"manifest>item"`
	Spine    []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

type epubItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

func (e *EPUBExtractor) Extract(reader io.Reader, filename string) (*ExtractResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read epub data: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open epub container: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var container epubContainer
	if err := readZipXML(files, "META-INF/container.xml", &container); err != nil {
		return nil, fmt.Errorf("parse container.xml: %w", err)
	}
	if len(container.Rootfiles) == 0 {
		return nil, fmt.Errorf("epub container lists no rootfile")
	}

	opfPath := container.Rootfiles[0].FullPath
	var pkg epubPackage
	if err := readZipXML(files, opfPath, &pkg); err != nil {
		return nil, fmt.Errorf("parse opf %s: %w", opfPath, err)
	}

	manifest := make(map[string]epubItem, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		manifest[item.ID] = item
	}

	opfDir := path.Dir(opfPath)
	var parts []string
	for _, ref := range pkg.Spine {
		item, ok := manifest[ref.IDRef]
		if !ok || !strings.Contains(item.MediaType, "html") {
			continue
		}
		href := item.Href
		if opfDir != "." {
			href = path.Join(opfDir, href)
		}
		f, ok := files[href]
		if !ok {
			applog.Warn("[Library/EPUB] Spine item missing from archive", "file", filename, "href", href)
			continue
		}
		content, err := readZipFile(f)
		if err != nil {
			applog.Warn("[Library/EPUB] Failed to read content item", "file", filename, "href", href, "error", err)
			continue
		}
		parts = append(parts, stripMarkup(string(content)))
	}

	return &ExtractResult{
		Text:  strings.Join(parts, "\n\n"),
		Items: len(parts),
	}, nil
}

func readZipXML(files map[string]*zip.File, name string, v interface{}) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("missing %s", name)
	}
	data, err := readZipFile(f)
	if err != nil {
		return err
	}
	return xml.Unmarshal(data, v)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// stripMarkup 去除 XHTML 标记，仅保留文本内容。
func stripMarkup(s string) string {
	s = reScriptBlock.ReplaceAllString(s, "")
	s = reStyleBlock.ReplaceAllString(s, "")
	// 块级结束标签转段落边界，避免相邻段落粘连
	s = strings.NewReplacer("</p>", "\n\n", "</div>", "\n\n", "</h1>", "\n\n",
		"</h2>", "\n\n", "</h3>", "\n\n", "<br/>", "\n", "<br>", "\n").Replace(s)
	s = reHTMLTag.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}

// ── DOCX Extractor ───────────────────────────────────────────

// DOCXExtractor 抽取 Word 文档文本。
type DOCXExtractor struct{}

func (e *DOCXExtractor) SupportedTypes() []string {
	return []string{".docx"}
}

func (e *DOCXExtractor) Extract(reader io.Reader, filename string) (*ExtractResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read docx data: %w", err)
	}

	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	// docx 返回 XML，去标签取纯文本
	content := r.Editable().GetContent()
	content = strings.NewReplacer("</w:p>", "\n\n", "</w:br>", "\n").Replace(content)
	text := reHTMLTag.ReplaceAllString(content, "")
	text = reMultiBlank.ReplaceAllString(text, "\n\n")

	return &ExtractResult{
		Text: strings.TrimSpace(html.UnescapeString(text)),
	}, nil
}

// ── Plain Text Extractor ─────────────────────────────────────

// PlainTextExtractor 纯文本直通。
type PlainTextExtractor struct{}

func (e *PlainTextExtractor) SupportedTypes() []string {
	return []string{".txt", ".text"}
}

func (e *PlainTextExtractor) Extract(reader io.Reader, filename string) (*ExtractResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	return &ExtractResult{Text: strings.TrimSpace(string(data))}, nil
}
