package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
	"golang.org/x/net/html"
)

const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxBodyBytes = 10 << 20
)

// SetPDFLicense registers the UniDoc metered key. PDF extraction fails
// without one, so a bad key is logged rather than fatal.
func SetPDFLicense(key string) {
	if key == "" {
		log.Println("LOADER: UNIDOC_LICENSE_KEY not set, PDF processing may fail.")
		return
	}
	if err := license.SetMeteredKey(key); err != nil {
		log.Printf("LOADER ERROR: Failed to set UniDoc license key: %v. PDF processing will fail.", err)
	}
}

// Loader turns raw text, URLs and PDF streams into documents.
type Loader struct {
	httpClient   *http.Client
	maxBodyBytes int64
}

// NewLoader builds a loader. A nil client gets one with DefaultFetchTimeout.
func NewLoader(httpClient *http.Client, maxBodyBytes int64) *Loader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultFetchTimeout}
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Loader{httpClient: httpClient, maxBodyBytes: maxBodyBytes}
}

// ParseKind accepts the UI spellings ("Text", "URL", "PDF") case-insensitively.
func ParseKind(s string) (InputKind, error) {
	switch k := InputKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindText, KindURL, KindPDF:
		return k, nil
	default:
		return "", &LoadError{Kind: LoadUnsupportedKind, Input: summarize(s)}
	}
}

// Load converts payload into documents according to kind.
func (l *Loader) Load(ctx context.Context, kind InputKind, payload []byte) ([]Document, error) {
	switch kind {
	case KindText:
		return []Document{{Content: string(payload), Source: userInputSource}}, nil
	case KindURL:
		return l.fetchURL(ctx, strings.TrimSpace(string(payload)))
	case KindPDF:
		return extractPDFPages(payload, "upload.pdf")
	default:
		return nil, &LoadError{Kind: LoadUnsupportedKind, Input: string(kind)}
	}
}

// LoadFile reads a file from disk and returns its documents.
// It automatically handles different file types.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]Document, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".txt", ".md":
		f, err := os.Open(path)
		if err != nil {
			return nil, &LoadError{Kind: LoadParse, Input: path, Err: err}
		}
		defer f.Close()
		return loadText(ctx, f, path)
	case ".pdf":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{Kind: LoadParse, Input: path, Err: err}
		}
		return extractPDFPages(content, filepath.Base(path))
	default:
		return nil, &LoadError{Kind: LoadUnsupportedKind, Input: path, Err: fmt.Errorf("unsupported file type: %s", ext)}
	}
}

func (l *Loader) fetchURL(ctx context.Context, target string) ([]Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &LoadError{Kind: LoadNetwork, Input: summarize(target), Err: err}
	}
	req.Header.Set("User-Agent", "studybuddy/1.0")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, &LoadError{Kind: LoadNetwork, Input: summarize(target), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &LoadError{Kind: LoadNetwork, Input: summarize(target), Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBodyBytes+1))
	if err != nil {
		return nil, &LoadError{Kind: LoadNetwork, Input: summarize(target), Err: err}
	}
	if int64(len(body)) > l.maxBodyBytes {
		log.Printf("LOADER WARN: %s is larger than %d bytes, indexing only the first %d", target, l.maxBodyBytes, l.maxBodyBytes)
		body = body[:l.maxBodyBytes]
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/plain" || mediaType == "text/markdown" {
		return loadText(ctx, bytes.NewReader(body), target)
	}

	text, err := visibleText(body)
	if err != nil {
		return nil, &LoadError{Kind: LoadParse, Input: summarize(target), Err: err}
	}
	log.Printf("LOADER: Fetched %s (%d bytes, %d characters of text)", target, len(body), len(text))
	if text == "" {
		return nil, nil
	}
	return []Document{{Content: text, Source: target}}, nil
}

func loadText(ctx context.Context, r io.Reader, source string) ([]Document, error) {
	pages, err := documentloaders.NewText(r).Load(ctx)
	if err != nil {
		return nil, &LoadError{Kind: LoadParse, Input: source, Err: err}
	}
	docs := make([]Document, 0, len(pages))
	for _, p := range pages {
		docs = append(docs, Document{Content: p.PageContent, Source: source})
	}
	return docs, nil
}

// blockElements start a new line of text.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true, "ol": true, "p": true,
	"pre": true, "section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// visibleText returns the text a browser would render for the page body,
// one line per block element.
func visibleText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script,style,noscript,template,iframe,svg").Remove()

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.CommentNode:
			return
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			sb.WriteByte('\n')
		}
	}
	for _, n := range doc.Find("body").Nodes {
		walk(n)
	}

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// extractPDFPages uses UniPDF to get the text of every page, skipping pages
// with nothing extractable.
func extractPDFPages(data []byte, name string) ([]Document, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Kind: LoadParse, Input: name, Err: err}
	}

	encrypted, err := pdfReader.IsEncrypted()
	if err != nil {
		return nil, &LoadError{Kind: LoadParse, Input: name, Err: err}
	}
	if encrypted {
		ok, err := pdfReader.Decrypt([]byte(""))
		if err != nil || !ok {
			return nil, &LoadError{Kind: LoadParse, Input: name, Err: errors.New("pdf is encrypted")}
		}
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, &LoadError{Kind: LoadParse, Input: name, Err: err}
	}

	var docs []Document
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return nil, &LoadError{Kind: LoadParse, Input: name, Err: fmt.Errorf("page %d: %w", i, err)}
		}

		ex, err := extractor.New(page)
		if err != nil {
			return nil, &LoadError{Kind: LoadParse, Input: name, Err: fmt.Errorf("page %d: %w", i, err)}
		}

		text, err := ex.ExtractText()
		if err != nil {
			log.Printf("LOADER WARN: Skipping page %d of %s: %v", i, name, err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, Document{Content: text, Source: fmt.Sprintf("%s#page=%d", name, i)})
	}
	log.Printf("LOADER: Extracted %d of %d pages from %s", len(docs), numPages, name)
	return docs, nil
}
