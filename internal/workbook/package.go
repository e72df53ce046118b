// Package workbook reads xlsx packages as streaming row sources. It opens the
// zip container directly and token-decodes the worksheet XML so that only one
// row is resident in memory at a time, regardless of workbook size.
package workbook

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"

	pkgerrors "loanetl/internal/errors"
)

const (
	workbookPart      = "xl/workbook.xml"
	relationshipsPart = "xl/_rels/workbook.xml.rels"
	sharedStringsPart = "xl/sharedStrings.xml"
)

// Package is an open xlsx container. It exclusively owns the underlying zip
// handle for its lifetime; Close must be called on every exit path.
type Package struct {
	path   string
	zr     *zip.ReadCloser
	files  map[string]*zip.File
	shared []string
}

// Open opens the xlsx package at path and eagerly resolves the shared-string
// table. The table is empty when the package stores every cell inline.
func Open(path string) (*Package, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook package: %w", err)
	}

	p := &Package{
		path:  path,
		zr:    zr,
		files: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		p.files[f.Name] = f
	}

	if err := p.loadSharedStrings(); err != nil {
		zr.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the zip handle.
func (p *Package) Close() error {
	return p.zr.Close()
}

// SharedStrings returns the resolved shared-string table.
func (p *Package) SharedStrings() []string {
	return p.shared
}

// xmlStringItem is one <si> entry: either a single <t> or rich-text runs.
type xmlStringItem struct {
	T    *string `xml:"t"`
	Runs []struct {
		T string `xml:"t"`
	} `xml:"r"`
}

func (si xmlStringItem) text() string {
	if si.T != nil {
		return *si.T
	}
	var out string
	for _, r := range si.Runs {
		out += r.T
	}
	return out
}

// loadSharedStrings streams xl/sharedStrings.xml if present.
func (p *Package) loadSharedStrings() error {
	f, ok := p.files[sharedStringsPart]
	if !ok {
		return nil
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", sharedStringsPart, err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return pkgerrors.MalformedPart(sharedStringsPart, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "si" {
			continue
		}
		var si xmlStringItem
		if err := dec.DecodeElement(&si, &se); err != nil {
			return pkgerrors.MalformedPart(sharedStringsPart, err)
		}
		p.shared = append(p.shared, si.text())
	}
}

// xmlWorkbook captures the sheet-order manifest.
type xmlWorkbook struct {
	Sheets struct {
		Sheet []struct {
			Name    string `xml:"name,attr"`
			SheetID string `xml:"sheetId,attr"`
			RID     string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
		} `xml:"sheet"`
	} `xml:"sheets"`
}

// xmlRelationships captures the workbook relationship map.
type xmlRelationships struct {
	Relationship []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// FirstSheetPath resolves the physical path of the first declared worksheet by
// joining the sheet-order manifest against the relationship map. A missing
// manifest, relationship file, or relationship entry is a FormatError.
func (p *Package) FirstSheetPath() (string, error) {
	var wb xmlWorkbook
	if err := p.decodePart(workbookPart, &wb); err != nil {
		return "", err
	}
	var rels xmlRelationships
	if err := p.decodePart(relationshipsPart, &rels); err != nil {
		return "", err
	}

	if len(wb.Sheets.Sheet) == 0 {
		return "", pkgerrors.MissingSheet()
	}
	rid := wb.Sheets.Sheet[0].RID

	for _, rel := range rels.Relationship {
		if rel.ID == rid {
			target := rel.Target
			for len(target) > 0 && target[0] == '/' {
				target = target[1:]
			}
			return "xl/" + target, nil
		}
	}
	return "", pkgerrors.MissingRelationship(rid)
}

// decodePart decodes one mandatory package part into v.
func (p *Package) decodePart(part string, v any) error {
	f, ok := p.files[part]
	if !ok {
		return pkgerrors.MissingPart(part)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", part, err)
	}
	defer rc.Close()

	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		return pkgerrors.MalformedPart(part, err)
	}
	return nil
}
