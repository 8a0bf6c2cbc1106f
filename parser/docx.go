package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DOCXParser reads the paragraphs of word/document.xml in document order,
// table cells included, one paragraph per line. Explicit page breaks start a
// new page.
type DOCXParser struct{}

func (p *DOCXParser) SupportedFormats() []string { return []string{"docx"} }

func (p *DOCXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening DOCX: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("word/document.xml not found in DOCX")
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("opening document.xml: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	pages, err := parseDocxXML(data)
	if err != nil {
		return nil, fmt.Errorf("parsing DOCX XML: %w", err)
	}
	return &ParseResult{Pages: pages, Method: "native"}, nil
}

// parseDocxXML walks the document with a token decoder so paragraphs keep
// their order relative to tables.
func parseDocxXML(data []byte) ([]Page, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var (
		pages  []Page
		page   strings.Builder
		para   strings.Builder
		inPara bool
		inText bool
	)
	flushPage := func() {
		pages = append(pages, Page{Number: len(pages) + 1, Text: strings.TrimRight(page.String(), "\n")})
		page.Reset()
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				para.Reset()
			case "t":
				inText = inPara
			case "tab":
				if inPara {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if attr(t, "type") == "page" {
					page.WriteString(para.String())
					para.Reset()
					flushPage()
				} else if inPara {
					para.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				inPara = false
				page.WriteString(para.String())
				page.WriteByte('\n')
				para.Reset()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	if page.Len() > 0 || len(pages) == 0 {
		flushPage()
	}
	return pages, nil
}

func attr(e xml.StartElement, local string) string {
	for _, a := range e.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
