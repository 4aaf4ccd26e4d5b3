package pubmed

import (
	"encoding/xml"
	"strings"
)

// AbstractSection is one labelled part of a structured abstract. Label is empty
// for unstructured abstracts.
type AbstractSection struct {
	Label string
	Text  string
}

// Article is the subset of a PubMed record used for retrieval.
type Article struct {
	PMID            string
	Title           string
	Abstract        []AbstractSection
	Journal         string
	Authors         []string
	PublicationDate string
}

type articleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Journal struct {
				Title string `xml:"Title"`
				Issue struct {
					PubDate pubDate `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
			Title    text `xml:"ArticleTitle"`
			Abstract struct {
				Texts []abstractText `xml:"AbstractText"`
			} `xml:"Abstract"`
			Authors []author `xml:"AuthorList>Author"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
}

type pubDate struct {
	Year        string `xml:"Year"`
	Month       string `xml:"Month"`
	Day         string `xml:"Day"`
	MedlineDate string `xml:"MedlineDate"`
}

func (d pubDate) String() string {
	if d.MedlineDate != "" {
		return d.MedlineDate
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{d.Year, d.Month, d.Day} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

type abstractText struct {
	Label string
	Body  text
}

func (a *abstractText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			a.Label = attr.Value
		}
	}
	return a.Body.UnmarshalXML(d, start)
}

type author struct {
	LastName       string `xml:"LastName"`
	ForeName       string `xml:"ForeName"`
	Initials       string `xml:"Initials"`
	CollectiveName string `xml:"CollectiveName"`
}

func (a author) String() string {
	if a.CollectiveName != "" {
		return a.CollectiveName
	}
	first := a.ForeName
	if first == "" {
		first = a.Initials
	}
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(a.LastName))
}

// text collects all character data of an element, including text inside
// inline markup such as <i> or <sup>.
type text string

func (t *text) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err //nolint:wrapcheck // decoder error propagates as-is
		}
		switch v := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(v)
		}
	}
	*t = text(strings.Join(strings.Fields(b.String()), " "))
	return nil
}

func (p *pubmedArticle) toArticle() Article {
	art := p.Citation.Article
	a := Article{
		PMID:            strings.TrimSpace(p.Citation.PMID),
		Title:           string(art.Title),
		Journal:         strings.TrimSpace(art.Journal.Title),
		PublicationDate: art.Journal.Issue.PubDate.String(),
	}
	for _, t := range art.Abstract.Texts {
		if t.Body == "" {
			continue
		}
		a.Abstract = append(a.Abstract, AbstractSection{Label: t.Label, Text: string(t.Body)})
	}
	for _, au := range art.Authors {
		if name := au.String(); name != "" {
			a.Authors = append(a.Authors, name)
		}
	}
	return a
}
