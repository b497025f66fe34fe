package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

type relationships struct {
	part string
	Rels []relationship `xml:"Relationship"`
}

func (r *relationships) byID(id string) (relationship, bool) {
	for _, rel := range r.Rels {
		if rel.ID == id {
			return rel, true
		}
	}
	return relationship{}, false
}

func (r *relationships) first(relType string) (relationship, bool) {
	for _, rel := range r.Rels {
		if rel.Type == relType {
			return rel, true
		}
	}
	return relationship{}, false
}

var ridPattern = regexp.MustCompile(`^rId(\d+)$`)

// nextID returns rIdN with N one past the highest numbered id in use.
func (r *relationships) nextID() string {
	highest := 0
	for _, rel := range r.Rels {
		if m := ridPattern.FindStringSubmatch(rel.ID); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
				highest = n
			}
		}
	}
	return "rId" + strconv.Itoa(highest+1)
}

// relsPart names the relationships part owned by source ("" is the package root).
func relsPart(source string) string {
	if source == "" {
		return rootRelsPart
	}
	return path.Join(path.Dir(source), "_rels", path.Base(source)+".rels")
}

// relationships parses the relationships of source. A missing part yields an empty set.
func (p *Presentation) relationships(source string) (*relationships, error) {
	rels := &relationships{part: relsPart(source)}
	data, ok := p.part(rels.part)
	if !ok {
		return rels, nil
	}
	if err := xml.Unmarshal(data, rels); err != nil {
		return nil, invalidTemplate("parse "+rels.part, err)
	}
	return rels, nil
}

// addRelationship appends a relationship to source's part and returns its id.
func (p *Presentation) addRelationship(source, relType, target string) (string, error) {
	rels, err := p.relationships(source)
	if err != nil {
		return "", err
	}
	id := rels.nextID()

	var entry bytes.Buffer
	entry.WriteString(`<Relationship Id="`)
	entry.WriteString(id)
	entry.WriteString(`" Type="`)
	entry.WriteString(relType)
	entry.WriteString(`" Target="`)
	_ = xml.EscapeText(&entry, []byte(target))
	entry.WriteString(`"/>`)

	data, ok := p.part(rels.part)
	if !ok {
		data = []byte(xml.Header + `<Relationships xmlns="` + nsPackageRels + `"></Relationships>`)
	}
	out, ok := insertBeforeClose(data, "Relationships", entry.String())
	if !ok {
		return "", invalidTemplate("malformed "+rels.part, nil)
	}
	p.put(rels.part, out)
	return id, nil
}

// insertBeforeClose inserts fragment before the last closing tag of element (any prefix).
// A self-closing root is expanded first.
func insertBeforeClose(data []byte, element, fragment string) ([]byte, bool) {
	closing := regexp.MustCompile(fmt.Sprintf(`</(?:[A-Za-z_][\w.-]*:)?%s\s*>`, regexp.QuoteMeta(element)))
	locs := closing.FindAllIndex(data, -1)
	if len(locs) == 0 {
		selfClosing := regexp.MustCompile(fmt.Sprintf(`<((?:[A-Za-z_][\w.-]*:)?%s)(\s[^>]*)?/>`, regexp.QuoteMeta(element)))
		m := selfClosing.FindSubmatchIndex(data)
		if m == nil {
			return nil, false
		}
		name := string(data[m[2]:m[3]])
		attrs := ""
		if m[4] >= 0 {
			attrs = string(data[m[4]:m[5]])
		}
		var out bytes.Buffer
		out.Write(data[:m[0]])
		out.WriteString("<" + name + strings.TrimRight(attrs, " \t\r\n") + ">")
		out.WriteString(fragment)
		out.WriteString("</" + name + ">")
		out.Write(data[m[1]:])
		return out.Bytes(), true
	}
	at := locs[len(locs)-1][0]
	out := make([]byte, 0, len(data)+len(fragment))
	out = append(out, data[:at]...)
	out = append(out, fragment...)
	out = append(out, data[at:]...)
	return out, true
}
